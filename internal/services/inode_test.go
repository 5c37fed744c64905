package services

import (
	"encoding/binary"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

func TestLoadInode(t *testing.T) {
	b := testimage.New()
	file := b.Create(testimage.RootIno, "data.bin", 4242)
	img := b.Build()

	fs, alloc := mountImage(t, img)

	h, err := fs.LoadInode(file)
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, file, h.NID())
	assert.Equal(t, int32(1), h.RefCount())
	assert.Equal(t, img.NodeAddr(file), h.NATEntry().BlockAddr)

	in, err := h.Node()
	require.NoError(t, err)
	assert.True(t, in.IsRegular())
	assert.Equal(t, uint64(4242), in.Size)
	assert.Equal(t, "data.bin", in.Name())

	// The node block and the NAT block.
	assert.Equal(t, 2, alloc.Outstanding())
	require.NoError(t, h.Release())
	assert.Zero(t, alloc.Outstanding())
	assert.Zero(t, alloc.DoubleFrees())
}

func TestLoadInode_Errors(t *testing.T) {
	b := testimage.New()
	file := b.Create(testimage.RootIno, "f", 1)
	img := b.Build()

	tests := []struct {
		name    string
		nid     types.NodeID
		mutate  func(img *testimage.Image)
		opts    MountOptions
		wantErr error
	}{
		{name: "unused nid", nid: 77, wantErr: types.ErrInvalidInode},
		{name: "nid beyond NAT", nid: 1 << 30, wantErr: types.ErrInvalidInode},
		{
			name: "NEW_ADDR entry",
			nid:  file,
			mutate: func(img *testimage.Image) {
				nat := img.Block(testimage.NATBlockAddr(0, false))
				binary.LittleEndian.PutUint32(nat[int(file)*types.NATEntrySize+5:], uint32(types.NewAddr))
			},
			wantErr: types.ErrInvalidInode,
		},
		{
			name: "footer belongs to another node",
			nid:  file,
			mutate: func(img *testimage.Image) {
				node := img.Block(img.NodeAddr(file))
				binary.LittleEndian.PutUint32(node[types.NodeFooterOffset:], 99)
			},
			wantErr: types.ErrInvalidInode,
		},
		{
			name: "footer check disabled",
			nid:  file,
			mutate: func(img *testimage.Image) {
				node := img.Block(img.NodeAddr(file))
				binary.LittleEndian.PutUint32(node[types.NodeFooterOffset:], 99)
			},
			opts: MountOptions{SkipFooterCheck: true},
		},
		{
			name: "node block beyond device",
			nid:  file,
			mutate: func(img *testimage.Image) {
				nat := img.Block(testimage.NATBlockAddr(0, false))
				binary.LittleEndian.PutUint32(nat[int(file)*types.NATEntrySize+5:], testimage.TotalBlocks+10)
			},
			wantErr: types.ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := &testimage.Image{Data: append([]byte(nil), img.Data...)}
			if tt.mutate != nil {
				tt.mutate(copied)
			}

			alloc := testimage.NewTrackingAllocator()
			tt.opts.Logger = discardLogger()
			fs, err := Mount(copied.Open(alloc), tt.opts)
			require.NoError(t, err)

			h, err := fs.LoadInode(tt.nid)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, h)
			} else {
				require.NoError(t, err)
				require.NoError(t, h.Release())
			}
			assert.Zero(t, alloc.Outstanding())
		})
	}
}

func TestLoadInode_AllocationFailure(t *testing.T) {
	img := testimage.New().Build()

	alloc := testimage.NewTrackingAllocator()
	fs, err := Mount(img.Open(alloc), MountOptions{Logger: discardLogger()})
	require.NoError(t, err)

	// Let the NAT block through and fail the node block.
	alloc.Limit = alloc.Allocs() + 1
	_, err = fs.Root()
	assert.ErrorIs(t, err, types.ErrAllocationFailure)
	assert.Zero(t, alloc.Outstanding())
}

func TestInode_CloneRelease(t *testing.T) {
	fs, alloc := mountImage(t, testimage.New().Build())

	root, err := fs.Root()
	require.NoError(t, err)

	clone, err := root.Clone()
	require.NoError(t, err)
	assert.Equal(t, int32(2), root.RefCount())
	assert.Equal(t, root.NID(), clone.NID())

	require.NoError(t, root.Release())
	assert.False(t, root.Valid())
	assert.True(t, clone.Valid())
	assert.Equal(t, 2, alloc.Outstanding())

	_, err = root.Node()
	assert.ErrorIs(t, err, types.ErrInvalidInode)
	_, err = root.Clone()
	assert.ErrorIs(t, err, types.ErrInvalidInode)
	assert.ErrorIs(t, root.Release(), types.ErrInvalidInode)

	in, err := clone.Node()
	require.NoError(t, err)
	assert.True(t, in.IsDir())

	require.NoError(t, clone.Release())
	assert.Zero(t, alloc.Outstanding())
	assert.ErrorIs(t, clone.Release(), types.ErrInvalidInode)
	assert.Zero(t, alloc.DoubleFrees())
}

func TestInode_NilHandle(t *testing.T) {
	var h *Inode
	assert.False(t, h.Valid())
	assert.ErrorIs(t, h.Release(), types.ErrInvalidInode)
	_, err := h.Node()
	assert.ErrorIs(t, err, types.ErrInvalidInode)
	assert.Zero(t, h.NID())
	assert.Zero(t, h.RefCount())
}

// n clones followed by n+1 releases free the blocks exactly once.
func TestInode_RefCountProperty(t *testing.T) {
	img := testimage.New().Build()
	properties := gopter.NewProperties(nil)

	properties.Property("blocks are released with the last handle", prop.ForAll(
		func(clones int, order []int) bool {
			alloc := testimage.NewTrackingAllocator()
			fs, err := Mount(img.Open(alloc), MountOptions{Logger: discardLogger()})
			if err != nil {
				return false
			}

			root, err := fs.Root()
			if err != nil {
				return false
			}
			handles := []*Inode{root}
			for i := 0; i < clones; i++ {
				src := handles[order[i%len(order)]%len(handles)]
				h, err := src.Clone()
				if err != nil {
					return false
				}
				handles = append(handles, h)
			}

			for i, h := range handles {
				if alloc.Outstanding() != 2 {
					return false
				}
				if h.Release() != nil {
					return false
				}
				if i < len(handles)-1 && root.RefCount() != int32(len(handles)-1-i) {
					return false
				}
			}

			return alloc.Outstanding() == 0 &&
				alloc.DoubleFrees() == 0 &&
				handles[0].Release() != nil
		},
		gen.IntRange(0, 16),
		gen.SliceOfN(4, gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}
