package dentry

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/parsers/node"
	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

func TestInlineCapacity(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{size: 3488, want: 182},
		{size: 3688, want: 192},
		{size: 3464, want: 181},
		{size: 152, want: 7},
		{size: 0, want: 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InlineCapacity(tt.size), "size %d", tt.size)
	}
}

func TestInlineSource_Layout(t *testing.T) {
	area := make([]byte, 3488)
	source, err := InlineSource(area)
	require.NoError(t, err)

	tbl := source.(*table)
	assert.Equal(t, 182, tbl.Capacity())
	assert.Len(t, tbl.bitmap, 23)
	assert.Len(t, tbl.entries, 182*types.DirEntrySize)
	assert.Len(t, tbl.names, 182*types.SlotLen)

	// 23 bitmap bytes and 7 reserved bytes precede the entries.
	assert.Equal(t, 30, cap(area)-cap(tbl.entries))
}

func TestBlockSource(t *testing.T) {
	longName := strings.Repeat("x", 20)

	b := testimage.New()
	a := b.Create(testimage.RootIno, "a", 1)
	long := b.Create(testimage.RootIno, longName, 2)
	img := b.Build()

	source, err := BlockSource(img.Block(img.DataAddrs(testimage.RootIno)[0]))
	require.NoError(t, err)
	assert.Equal(t, types.NrDentryInBlock, source.Capacity())

	dot, err := source.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, ".", dot.Name)
	assert.Equal(t, testimage.RootIno, dot.Ino)

	dotdot, err := source.Entry(1)
	require.NoError(t, err)
	assert.Equal(t, "..", dotdot.Name)

	require.True(t, source.TestBit(2))
	first, err := source.Entry(2)
	require.NoError(t, err)
	assert.Equal(t, types.DirEntry{Hash: first.Hash, Ino: a, NameLen: 1, FileType: types.FileTypeRegular, Name: "a"}, first)
	assert.Equal(t, 1, first.Slots())

	// A 20-byte name covers three slots, all marked in the bitmap.
	for slot := 3; slot < 6; slot++ {
		assert.True(t, source.TestBit(slot), "slot %d", slot)
	}
	assert.False(t, source.TestBit(6))

	second, err := source.Entry(3)
	require.NoError(t, err)
	assert.Equal(t, longName, second.Name)
	assert.Equal(t, long, second.Ino)
	assert.Equal(t, 3, second.Slots())

	assert.False(t, source.TestBit(-1))
	assert.False(t, source.TestBit(types.NrDentryInBlock))
}

func TestInlineSource_FromInode(t *testing.T) {
	b := testimage.New()
	dir := b.Mkdir(testimage.RootIno, "inl", testimage.Inline())
	child := b.Create(dir, "child", 0)
	img := b.Build()

	in, err := node.ParseInode(img.Block(img.NodeAddr(dir)))
	require.NoError(t, err)
	layout, err := node.InlineLayout(&types.Superblock{}, in)
	require.NoError(t, err)
	area, err := layout.Data(in)
	require.NoError(t, err)

	source, err := InlineSource(area)
	require.NoError(t, err)
	assert.Equal(t, 192, source.Capacity())

	require.True(t, source.TestBit(2))
	entry, err := source.Entry(2)
	require.NoError(t, err)
	assert.Equal(t, "child", entry.Name)
	assert.Equal(t, child, entry.Ino)
	assert.False(t, source.TestBit(3))
}

func TestEntry_Errors(t *testing.T) {
	block := make([]byte, types.BlockSize)
	source, err := BlockSource(block)
	require.NoError(t, err)

	_, err = source.Entry(types.NrDentryInBlock)
	assert.ErrorIs(t, err, types.ErrCorrupted)

	// An empty name decodes without touching the name slots.
	entry, err := source.Entry(5)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), entry.NameLen)
	assert.Equal(t, 1, entry.Slots())

	// A name running past the last slot.
	off := types.DentryBitmapSize + types.DentryReservedSize + 213*types.DirEntrySize
	binary.LittleEndian.PutUint16(block[off+8:], 20)
	_, err = source.Entry(213)
	assert.ErrorIs(t, err, types.ErrCorrupted)

	_, err = BlockSource(block[:1000])
	assert.ErrorIs(t, err, types.ErrShortBuffer)

	_, err = InlineSource(nil)
	assert.ErrorIs(t, err, types.ErrShortBuffer)
}
