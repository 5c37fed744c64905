package services

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

func TestMount(t *testing.T) {
	b := testimage.New()
	b.Versions = [2]uint64{4, 9}
	b.NATBits = true
	b.Create(testimage.RootIno, "f", 10)
	img := b.Build()

	fs, _ := mountImage(t, img)

	info, err := fs.Info()
	require.NoError(t, err)
	assert.Equal(t, "testvol", info.VolumeName)
	assert.Equal(t, "1.16", info.Version)
	assert.Equal(t, 0, info.SuperblockCopy)
	assert.Equal(t, 1, info.CheckpointPack)
	assert.Equal(t, uint64(9), info.CheckpointVersion)
	assert.Contains(t, info.CheckpointFlags, "nat_bits")
	assert.Equal(t, uint32(testimage.NATBlocks), info.NATBlocks)
	assert.True(t, info.NATBitsValid)
	assert.Equal(t, testimage.NATBlocks-1, info.NATEmptyBlocks)
	assert.Equal(t, testimage.RootIno, info.RootIno)
	assert.Equal(t, uint32(testimage.BlocksPerSeg), info.BlocksPerSegment)

	assert.Equal(t, testimage.PackAddr(1), fs.Checkpoint().PackStart)
	assert.Equal(t, types.BlockAddr(testimage.NATBlkAddr), fs.NATGeometry().Base)
	assert.NotNil(t, fs.VersionBitmap())
	assert.NotNil(t, fs.NATBits())
	assert.Equal(t, testimage.RootIno, fs.Superblock().RootIno)
}

func TestMount_Errors(t *testing.T) {
	t.Run("nil device", func(t *testing.T) {
		_, err := Mount(nil, MountOptions{})
		assert.Error(t, err)
	})

	t.Run("no superblock", func(t *testing.T) {
		img := testimage.New().Build()
		img.Flip(testimage.SuperblockOffset(0), 0xFF)
		img.Flip(testimage.SuperblockOffset(1), 0xFF)

		alloc := testimage.NewTrackingAllocator()
		_, err := Mount(img.Open(alloc), MountOptions{Logger: discardLogger()})
		assert.ErrorIs(t, err, types.ErrSuperblockNotFound)
		assert.Zero(t, alloc.Outstanding())
	})

	t.Run("no checkpoint", func(t *testing.T) {
		b := testimage.New()
		b.Versions = [2]uint64{0, 0}

		alloc := testimage.NewTrackingAllocator()
		_, err := Mount(b.Build().Open(alloc), MountOptions{Logger: discardLogger()})
		assert.ErrorIs(t, err, types.ErrCheckpointNotFound)
		assert.Zero(t, alloc.Outstanding())
	})

	t.Run("nat_bits area larger than a segment", func(t *testing.T) {
		img := testimage.New().Build()
		for copyIdx := 0; copyIdx < types.SuperblockCopies; copyIdx++ {
			off := testimage.SuperblockOffset(copyIdx)
			raw := img.Data[off : off+types.SuperblockSize]
			binary.LittleEndian.PutUint32(raw[60:], 200000)
			binary.LittleEndian.PutUint32(raw[types.SuperChecksumOffset:], checksum.CRC32(raw[:types.SuperChecksumOffset]))
		}

		alloc := testimage.NewTrackingAllocator()
		_, err := Mount(img.Open(alloc), MountOptions{Logger: discardLogger()})
		assert.ErrorIs(t, err, types.ErrCorrupted)
		assert.Zero(t, alloc.Outstanding())
	})

	t.Run("NAT bitmap outside payload", func(t *testing.T) {
		img := testimage.New().Build()
		cp := img.Block(testimage.PackAddr(0))
		binary.LittleEndian.PutUint32(cp[160:], 8000)
		resignPack(img, 0)

		_, err := Mount(img.Open(nil), MountOptions{Logger: discardLogger()})
		assert.ErrorIs(t, err, types.ErrCorrupted)
	})
}

func TestUnmount(t *testing.T) {
	fs, alloc := mountImage(t, testimage.New().Build())

	root, err := fs.Root()
	require.NoError(t, err)
	fs.Unmount()

	// Handles outlive the mount.
	in, err := root.Node()
	require.NoError(t, err)
	assert.True(t, in.IsDir())
	require.NoError(t, root.Release())
	assert.Zero(t, alloc.Outstanding())
	assert.Nil(t, fs.Checkpoint())
	assert.Nil(t, fs.Superblock())
}

func TestUnmount_LaterCallsFail(t *testing.T) {
	b := testimage.New()
	b.Create(testimage.RootIno, "a", 1)
	b.Create(testimage.RootIno, "b", 1)
	fs, alloc := mountImage(t, b.Build())

	root, err := fs.Root()
	require.NoError(t, err)
	it, err := fs.OpenDir(root)
	require.NoError(t, err)
	_, err = it.Next()
	require.NoError(t, err)

	fs.Unmount()

	calls := map[string]func() error{
		"Root": func() error {
			_, err := fs.Root()
			return err
		},
		"LoadInode": func() error {
			_, err := fs.LoadInode(testimage.RootIno)
			return err
		},
		"ResolveNAT": func() error {
			_, err := fs.ResolveNAT(testimage.RootIno)
			return err
		},
		"Info": func() error {
			_, err := fs.Info()
			return err
		},
		"OpenDir": func() error {
			_, err := fs.OpenDir(root)
			return err
		},
		"Lookup": func() error {
			_, err := fs.Lookup("/a")
			return err
		},
		"Stat": func() error {
			_, err := fs.Stat("/")
			return err
		},
		"Walk": func() error {
			return fs.Walk("/", func(*FileNode) error { return nil })
		},
		"Next": func() error {
			_, err := it.Next()
			return err
		},
	}
	for name, call := range calls {
		assert.ErrorIs(t, call(), types.ErrUnmounted, name)
	}

	require.NoError(t, it.Close())
	require.NoError(t, root.Release())
	assert.Zero(t, alloc.Outstanding())
}

func TestResolveNAT(t *testing.T) {
	b := testimage.New()
	b.SkipNIDs(types.NATEntriesPerBlock)
	far := b.Create(testimage.RootIno, "far", 1)
	b.UseAlternate(1)
	img := b.Build()

	fs, alloc := mountImage(t, img)

	loc, err := fs.ResolveNAT(testimage.RootIno)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), loc.NATBlock)
	assert.Equal(t, int(testimage.RootIno), loc.NATSlot)
	assert.False(t, loc.UseAlternate)
	assert.Equal(t, testimage.NATBlockAddr(0, false), loc.NATBlockAddr)
	assert.Equal(t, img.NodeAddr(testimage.RootIno), loc.Entry.BlockAddr)

	loc, err = fs.ResolveNAT(far)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), loc.NATBlock)
	assert.True(t, loc.UseAlternate)
	assert.Equal(t, testimage.NATBlockAddr(1, true), loc.NATBlockAddr)
	assert.Equal(t, img.NodeAddr(far), loc.Entry.BlockAddr)

	_, err = fs.ResolveNAT(types.NodeID(testimage.NATBlocks * types.NATEntriesPerBlock))
	assert.ErrorIs(t, err, types.ErrInvalidInode)
	assert.Zero(t, alloc.Outstanding())
}
