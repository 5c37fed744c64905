package nat

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/parsers/checkpoint"
	"github.com/chenyuwen/myf2fs/internal/parsers/superblock"
	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// smallGeometry is four NAT segments of four blocks each, with four entries
// per block.
func smallGeometry() Geometry {
	g := NewGeometry(&types.Superblock{
		NATBlkAddr:      100,
		SegmentCountNAT: 4,
		LogBlocksPerSeg: 2,
	})
	g.EntriesPerBlock = 4
	return g
}

func mount(t *testing.T, img *testimage.Image) (*types.Superblock, *types.Checkpoint) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	log := logrus.NewEntry(logger)

	dev := img.Open(nil)
	sb, err := superblock.Load(dev, log)
	require.NoError(t, err)
	cp, err := checkpoint.Load(dev, sb, log)
	require.NoError(t, err)
	return sb, cp
}

func TestGeometry(t *testing.T) {
	g := smallGeometry()
	assert.Equal(t, uint32(4), g.BlocksPerSeg)
	assert.Equal(t, uint32(8), g.Blocks)
	assert.Equal(t, uint64(32), g.MaxNID())

	bi, slot := g.BlockIndex(10)
	assert.Equal(t, uint32(2), bi)
	assert.Equal(t, 2, slot)
}

func TestGeometry_BlockAddr(t *testing.T) {
	g := smallGeometry()

	tests := []struct {
		name   string
		nid    types.NodeID
		bitmap []byte
		want   types.BlockAddr
	}{
		{name: "current copy", nid: 10, bitmap: []byte{0x00}, want: 102},
		{name: "alternate copy", nid: 10, bitmap: []byte{0x04}, want: 106},
		{name: "other block's bit set", nid: 10, bitmap: []byte{0x20}, want: 102},
		{name: "first block", nid: 0, bitmap: []byte{0x00}, want: 100},
		{name: "second segment pair", nid: 17, bitmap: []byte{0x00}, want: 108},
		{name: "second segment pair alternate", nid: 17, bitmap: []byte{0x10}, want: 112},
		{name: "nil bitmap", nid: 10, want: 102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bitmap *VersionBitmap
			if tt.bitmap != nil {
				bitmap = NewVersionBitmap(tt.bitmap)
			}
			got, err := g.BlockAddr(tt.nid, bitmap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeometry_BlockAddrFromZeroBase(t *testing.T) {
	// segment_count_nat 4, four blocks per segment, four entries per block:
	// nid 10 lives in NAT block 2.
	g := smallGeometry()
	g.Base = 0

	cur, err := g.BlockAddr(10, NewVersionBitmap([]byte{0x00}))
	require.NoError(t, err)
	assert.Equal(t, types.BlockAddr(2), cur)

	alt, err := g.BlockAddr(10, NewVersionBitmap([]byte{0x04}))
	require.NoError(t, err)
	assert.Equal(t, types.BlockAddr(6), alt)
}

func TestGeometry_BlockAddrOutOfRange(t *testing.T) {
	g := smallGeometry()

	_, err := g.BlockAddr(32, NewVersionBitmap([]byte{0xFF}))
	assert.ErrorIs(t, err, types.ErrInvalidInode)

	_, err = Geometry{}.BlockAddr(1, nil)
	assert.ErrorIs(t, err, types.ErrCorrupted)
}

func TestGeometry_BlockAddrProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	g := smallGeometry()

	properties.Property("address depends only on inputs", prop.ForAll(
		func(nid uint32, bits uint8) bool {
			bitmap := NewVersionBitmap([]byte{bits})
			first, err1 := g.BlockAddr(types.NodeID(nid), bitmap)
			second, err2 := g.BlockAddr(types.NodeID(nid), NewVersionBitmap([]byte{bits}))
			return err1 == nil && err2 == nil && first == second
		},
		gen.UInt32Range(0, 31),
		gen.UInt8(),
	))

	properties.Property("address stays inside the NAT area", prop.ForAll(
		func(nid uint32, bits uint8) bool {
			addr, err := g.BlockAddr(types.NodeID(nid), NewVersionBitmap([]byte{bits}))
			return err == nil && addr >= g.Base && addr < g.Base+types.BlockAddr(4*g.BlocksPerSeg)
		},
		gen.UInt32Range(0, 31),
		gen.UInt8(),
	))

	properties.Property("the two copies are one segment apart", prop.ForAll(
		func(nid uint32) bool {
			bi, _ := g.BlockIndex(types.NodeID(nid))
			var set [1]byte
			set[0] = 1 << bi
			cur, _ := g.BlockAddr(types.NodeID(nid), NewVersionBitmap([]byte{0}))
			alt, _ := g.BlockAddr(types.NodeID(nid), NewVersionBitmap(set[:]))
			return alt-cur == types.BlockAddr(g.BlocksPerSeg)
		},
		gen.UInt32Range(0, 31),
	))

	properties.TestingRun(t)
}

func TestVersionBitmap_BitOrder(t *testing.T) {
	bitmap := NewVersionBitmap([]byte{0x81, 0x40})

	assert.True(t, bitmap.UseAlternate(0))
	assert.False(t, bitmap.UseAlternate(1))
	assert.True(t, bitmap.UseAlternate(7))
	assert.False(t, bitmap.UseAlternate(8))
	assert.False(t, bitmap.UseAlternate(9))
	assert.True(t, bitmap.UseAlternate(14))
	assert.False(t, bitmap.UseAlternate(15))
	assert.False(t, bitmap.UseAlternate(16))
	assert.Equal(t, uint32(16), bitmap.Len())
	assert.Equal(t, 3, bitmap.SetCount())
}

func TestBuildVersionBitmap(t *testing.T) {
	payload := make([]byte, types.BlockSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	tests := []struct {
		name      string
		cpPayload uint32
		flags     types.CheckpointFlag
		sitBytes  uint32
		natBytes  uint32
		wantStart int
		wantErr   error
	}{
		{name: "sit bitmap first", sitBytes: 64, natBytes: 16, wantStart: 192 + 64},
		{name: "sit bitmap in payload blocks", cpPayload: 2, sitBytes: 8192, natBytes: 16, wantStart: 192},
		{name: "large nat bitmap", flags: types.CPLargeNatBitmapFlag, sitBytes: 64, natBytes: 16, wantStart: 196},
		{name: "large flag wins over payload", cpPayload: 2, flags: types.CPLargeNatBitmapFlag, natBytes: 16, wantStart: 196},
		{name: "overruns payload", sitBytes: 64, natBytes: 4000, wantErr: types.ErrCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &types.Superblock{CPPayload: tt.cpPayload}
			cp := &types.Checkpoint{
				Flags:                tt.flags,
				SITVerBitmapBytesize: tt.sitBytes,
				NATVerBitmapBytesize: tt.natBytes,
				Payload:              payload,
			}

			bitmap, err := BuildVersionBitmap(sb, cp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bitmap)
				return
			}
			require.NoError(t, err)
			assert.True(t, bytes.Equal(payload[tt.wantStart:tt.wantStart+int(tt.natBytes)], bitmap.bits))
		})
	}
}

func TestBuildVersionBitmap_FromImage(t *testing.T) {
	for _, large := range []bool{false, true} {
		b := testimage.New()
		b.LargeNATBitmap = large
		b.UseAlternate(2)
		img := b.Build()
		sb, cp := mount(t, img)

		bitmap, err := BuildVersionBitmap(sb, cp)
		require.NoError(t, err)
		assert.Equal(t, uint32(testimage.NATBlocks), bitmap.Len())
		assert.Equal(t, byte(0x04), bitmap.bits[0], "large=%v", large)
		assert.True(t, bitmap.UseAlternate(2), "large=%v", large)
		assert.Equal(t, 1, bitmap.SetCount(), "large=%v", large)
	}
}

func TestParseEntry(t *testing.T) {
	img := testimage.New().Build()
	block := img.Block(testimage.NATBlockAddr(0, false))

	entry, err := ParseEntry(block, int(testimage.RootIno))
	require.NoError(t, err)
	assert.Equal(t, testimage.RootIno, entry.Ino)
	assert.Equal(t, img.NodeAddr(testimage.RootIno), entry.BlockAddr)
	assert.True(t, entry.BlockAddr.IsValid())

	entry, err = ParseEntry(block, 100)
	require.NoError(t, err)
	assert.Equal(t, types.NullAddr, entry.BlockAddr)

	_, err = ParseEntry(block, types.NATEntriesPerBlock)
	assert.ErrorIs(t, err, types.ErrCorrupted)

	_, err = ParseEntry(block[:100], 0)
	assert.ErrorIs(t, err, types.ErrShortBuffer)
}

func TestBuildNATBits(t *testing.T) {
	tests := []struct {
		name      string
		natBits   bool
		mutate    func(img *testimage.Image)
		wantValid bool
	}{
		{name: "valid", natBits: true, wantValid: true},
		{name: "flag not set", natBits: false, wantValid: false},
		{
			name:    "header mismatch",
			natBits: true,
			mutate: func(img *testimage.Image) {
				img.Flip(int(testimage.PackAddr(0)+testimage.BlocksPerSeg-1)*types.BlockSize, 0x01)
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testimage.New()
			b.NATBits = tt.natBits
			img := b.Build()
			if tt.mutate != nil {
				tt.mutate(img)
			}
			sb, cp := mount(t, img)

			alloc := testimage.NewTrackingAllocator()
			bits, err := BuildNATBits(img.Open(alloc), sb, cp)
			require.NoError(t, err)
			assert.Zero(t, alloc.Outstanding())

			assert.Equal(t, tt.wantValid, bits.Valid)
			assert.Equal(t, testimage.PackAddr(0)+testimage.BlocksPerSeg-1, bits.Start)
			assert.Equal(t, uint32(1), bits.Blocks)
			assert.Equal(t, types.BlockSize, bits.Len())

			full, empty := bits.Counts()
			if tt.wantValid {
				assert.Equal(t, 0, full)
				assert.Equal(t, testimage.NATBlocks-1, empty)
				assert.False(t, bits.EmptyBlock(0))
				assert.True(t, bits.EmptyBlock(1))
				assert.False(t, bits.FullBlock(1))
			} else {
				assert.Zero(t, full)
				assert.Zero(t, empty)
				assert.False(t, bits.EmptyBlock(1))
			}
		})
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name            string
		segmentCountNAT uint32
		logBlocksPerSeg uint32
		packStart       types.BlockAddr
		wantStart       types.BlockAddr
		wantBlocks      uint32
		wantBytes       uint32
	}{
		{
			// 8 NAT blocks: a one-byte bitmap in a single block.
			name:            "test image geometry",
			segmentCountNAT: testimage.SegmentCountNAT,
			logBlocksPerSeg: testimage.LogBlocksPerSeg,
			packStart:       testimage.PackAddr(1),
			wantStart:       testimage.PackAddr(1) + testimage.BlocksPerSeg - 1,
			wantBlocks:      1,
			wantBytes:       1,
		},
		{
			// 32768 NAT blocks: 4096/2 + 8 bytes still fit in one block.
			name:            "one block area",
			segmentCountNAT: 128,
			logBlocksPerSeg: 9,
			packStart:       512,
			wantStart:       1023,
			wantBlocks:      1,
			wantBytes:       4096,
		},
		{
			// 131072 NAT blocks: 16384/2 + 8 bytes need three blocks.
			name:            "three block area",
			segmentCountNAT: 512,
			logBlocksPerSeg: 9,
			packStart:       512,
			wantStart:       1021,
			wantBlocks:      3,
			wantBytes:       16384,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := &types.Superblock{SegmentCountNAT: tt.segmentCountNAT, LogBlocksPerSeg: tt.logBlocksPerSeg}
			cp := &types.Checkpoint{PackStart: tt.packStart}

			start, blocks, bitmapBytes, err := Layout(sb, cp)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantBlocks, blocks)
			assert.Equal(t, tt.wantBytes, bitmapBytes)
		})
	}
}

func TestLayout_TooLarge(t *testing.T) {
	// 800000 NAT blocks need a 13-block area in an 8-block segment.
	sb := &types.Superblock{SegmentCountNAT: 200000, LogBlocksPerSeg: 3}
	cp := &types.Checkpoint{PackTotalBlockCount: 5}

	_, _, _, err := Layout(sb, cp)
	assert.ErrorIs(t, err, types.ErrCorrupted)
}

func TestBuildNATBits_BitmapsOutgrowArea(t *testing.T) {
	b := testimage.New()
	b.NATBits = true
	img := b.Build()
	sb, cp := mount(t, img)

	// 32768 NAT blocks: the area is one block but the bitmaps need two.
	large := *sb
	large.SegmentCountNAT = 8192

	bits, err := BuildNATBits(img.Open(nil), &large, cp)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), bits.Blocks)
	assert.Equal(t, types.BlockSize, bits.Len())
	assert.Equal(t, cp.Version|uint64(cp.StoredChecksum())<<32, bits.Header)
	assert.False(t, bits.Valid)
	assert.False(t, bits.EmptyBlock(1))
}
