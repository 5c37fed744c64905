package checkpoint

import (
	"encoding/binary"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/parsers/superblock"
	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

func loadSuperblock(t *testing.T, img *testimage.Image) *types.Superblock {
	t.Helper()
	sb, err := superblock.Load(img.Open(nil), discardLogger())
	require.NoError(t, err)
	return sb
}

func discardLogger() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

// resignPack recomputes the checksum of a pack's checkpoint block.
func resignPack(img *testimage.Image, idx int) {
	block := img.Block(testimage.PackAddr(idx))
	binary.LittleEndian.PutUint32(block[types.CPChecksumOffset:], checksum.CRC32(block[:types.CPChecksumOffset]))
}

func TestParse(t *testing.T) {
	img := testimage.New().Build()

	cp, err := Parse(img.Block(testimage.PackAddr(0)))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), cp.Version)
	assert.True(t, cp.HasFlag(types.CPUmountFlag))
	assert.False(t, cp.HasFlag(types.CPNatBitsFlag))
	assert.Equal(t, uint32(testimage.PackBlocks), cp.PackTotalBlockCount)
	assert.Equal(t, uint32(testimage.SITVerBitmapBytes), cp.SITVerBitmapBytesize)
	assert.Equal(t, uint32(testimage.NATVerBitmapBytes), cp.NATVerBitmapBytesize)
	assert.Equal(t, uint32(types.CPChecksumOffset), cp.ChecksumOffset)
	assert.Equal(t, uint32(0), cp.CurNodeSegno[0])
	assert.Equal(t, uint32(0xFFFFFFFF), cp.CurNodeSegno[1])
	assert.Equal(t, uint32(1), cp.CurDataSegno[0])
	assert.Equal(t, uint64(3600), cp.ElapsedTime)
	assert.Nil(t, cp.Payload)
}

func TestParse_ShortBuffer(t *testing.T) {
	_, err := Parse(make([]byte, 512))
	assert.ErrorIs(t, err, types.ErrShortBuffer)
}

func TestLoad_PackSelection(t *testing.T) {
	tests := []struct {
		name      string
		versions  [2]uint64
		wantPack  int
		wantVer   uint64
		wantError error
	}{
		{name: "second pack newer", versions: [2]uint64{5, 7}, wantPack: 1, wantVer: 7},
		{name: "first pack newer", versions: [2]uint64{9, 8}, wantPack: 0, wantVer: 9},
		{name: "tie prefers first pack", versions: [2]uint64{5, 5}, wantPack: 0, wantVer: 5},
		{name: "only first pack written", versions: [2]uint64{3, 0}, wantPack: 0, wantVer: 3},
		{name: "only second pack written", versions: [2]uint64{0, 4}, wantPack: 1, wantVer: 4},
		{name: "no pack written", versions: [2]uint64{0, 0}, wantError: types.ErrCheckpointNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testimage.New()
			b.Versions = tt.versions
			img := b.Build()
			sb := loadSuperblock(t, img)

			alloc := testimage.NewTrackingAllocator()
			cp, err := Load(img.Open(alloc), sb, discardLogger())
			assert.Zero(t, alloc.Outstanding())
			assert.Zero(t, alloc.DoubleFrees())

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, cp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPack, cp.PackIndex)
			assert.Equal(t, testimage.PackAddr(tt.wantPack), cp.PackStart)
			assert.Equal(t, tt.wantVer, cp.Version)
			require.Len(t, cp.Payload, int(sb.CheckpointBlocks())*types.BlockSize)
			assert.Equal(t, tt.wantVer, binary.LittleEndian.Uint64(cp.Payload))
		})
	}
}

func TestLoad_InvalidPackFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(img *testimage.Image)
	}{
		{
			name: "checksum mismatch",
			mutate: func(img *testimage.Image) {
				img.Flip(int(testimage.PackAddr(1))*types.BlockSize+20, 0x04)
			},
		},
		{
			name: "checksum offset out of range",
			mutate: func(img *testimage.Image) {
				block := img.Block(testimage.PackAddr(1))
				binary.LittleEndian.PutUint32(block[offChecksumOffset:], 100)
			},
		},
		{
			name: "pack longer than a segment",
			mutate: func(img *testimage.Image) {
				block := img.Block(testimage.PackAddr(1))
				binary.LittleEndian.PutUint32(block[offPackTotalBlockCount:], testimage.BlocksPerSeg+1)
				resignPack(img, 1)
			},
		},
		{
			name: "torn pack trailer",
			mutate: func(img *testimage.Image) {
				tail := img.Block(testimage.PackAddr(1) + testimage.PackBlocks - 1)
				binary.LittleEndian.PutUint64(tail[offVersion:], 6)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testimage.New()
			b.Versions = [2]uint64{5, 7}
			img := b.Build()
			tt.mutate(img)
			sb := loadSuperblock(t, img)

			logger, hook := logtest.NewNullLogger()
			cp, err := Load(img.Open(nil), sb, logrus.NewEntry(logger))
			require.NoError(t, err)
			assert.Equal(t, 0, cp.PackIndex)
			assert.Equal(t, uint64(5), cp.Version)

			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, "checkpoint pack rejected", hook.LastEntry().Message)
			assert.Equal(t, 1, hook.LastEntry().Data["pack"])
		})
	}
}

func TestLoad_VersionOnlyPacks(t *testing.T) {
	tests := []struct {
		name     string
		versions [2]uint64
		wantPack int
	}{
		{name: "second pack newer", versions: [2]uint64{5, 7}, wantPack: 1},
		{name: "tie prefers first pack", versions: [2]uint64{5, 5}, wantPack: 0},
		{name: "first pack newer", versions: [2]uint64{8, 2}, wantPack: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testimage.New().Build()
			sb := loadSuperblock(t, img)

			// Headers carry nothing but checkpoint_ver.
			for idx, ver := range tt.versions {
				block := img.Block(testimage.PackAddr(idx))
				clear(block)
				binary.LittleEndian.PutUint64(block[offVersion:], ver)
			}

			cp, err := Load(img.Open(nil), sb, discardLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.wantPack, cp.PackIndex)
			assert.Equal(t, tt.versions[tt.wantPack], cp.Version)
			assert.Len(t, cp.Payload, int(sb.CheckpointBlocks())*types.BlockSize)
		})
	}
}

func TestValidate(t *testing.T) {
	sb := &types.Superblock{CPPayload: 2, LogBlocksPerSeg: 3}

	signed := func(total uint32) ([]byte, *types.Checkpoint) {
		block := make([]byte, types.BlockSize)
		binary.LittleEndian.PutUint64(block[offVersion:], 9)
		binary.LittleEndian.PutUint32(block[offPackTotalBlockCount:], total)
		binary.LittleEndian.PutUint32(block[offChecksumOffset:], types.CPChecksumOffset)
		binary.LittleEndian.PutUint32(block[types.CPChecksumOffset:], checksum.CRC32(block[:types.CPChecksumOffset]))
		cp, err := Parse(block)
		require.NoError(t, err)
		return block, cp
	}

	tests := []struct {
		name    string
		build   func() ([]byte, *types.Checkpoint)
		wantErr error
	}{
		{
			name:  "full header",
			build: func() ([]byte, *types.Checkpoint) { return signed(5) },
		},
		{
			name:  "pack of exactly the checkpoint blocks",
			build: func() ([]byte, *types.Checkpoint) { return signed(3) },
		},
		{
			name:    "pack shorter than the checkpoint blocks",
			build:   func() ([]byte, *types.Checkpoint) { return signed(2) },
			wantErr: types.ErrCorrupted,
		},
		{
			name:    "pack longer than a segment",
			build:   func() ([]byte, *types.Checkpoint) { return signed(9) },
			wantErr: types.ErrCorrupted,
		},
		{
			name: "stale checksum",
			build: func() ([]byte, *types.Checkpoint) {
				block, cp := signed(5)
				block[40] ^= 0x01
				return block, cp
			},
			wantErr: types.ErrChecksumMismatch,
		},
		{
			name: "no checksum recorded",
			build: func() ([]byte, *types.Checkpoint) {
				block := make([]byte, types.BlockSize)
				binary.LittleEndian.PutUint64(block[offVersion:], 9)
				cp, err := Parse(block)
				require.NoError(t, err)
				return block, cp
			},
		},
		{
			name: "blank block",
			build: func() ([]byte, *types.Checkpoint) {
				block := make([]byte, types.BlockSize)
				cp, err := Parse(block)
				require.NoError(t, err)
				return block, cp
			},
			wantErr: types.ErrCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, cp := tt.build()
			err := Validate(sb, cp, block)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_AllocationFailure(t *testing.T) {
	img := testimage.New().Build()
	sb := loadSuperblock(t, img)

	// Header and trailer of pack 0, header of the blank pack 1, then the
	// payload read fails.
	alloc := testimage.NewTrackingAllocator()
	alloc.Limit = 3

	cp, err := Load(img.Open(alloc), sb, discardLogger())
	assert.ErrorIs(t, err, types.ErrAllocationFailure)
	assert.Nil(t, cp)
	assert.Zero(t, alloc.Outstanding())
}

func TestLoad_ReadFailure(t *testing.T) {
	img := testimage.New().Build()
	sb := loadSuperblock(t, img)
	img.Data = img.Data[:int(testimage.PackAddr(1))*types.BlockSize]

	_, err := Load(img.Open(nil), sb, discardLogger())
	assert.ErrorIs(t, err, types.ErrIO)
}
