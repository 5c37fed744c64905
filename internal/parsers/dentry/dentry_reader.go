package dentry

import (
	"encoding/binary"
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// EntrySource is a directory entry table: a validity bitmap, an array of
// entries and an array of name slots. Dentry blocks and inline dentry
// areas share this shape with different capacities.
type EntrySource interface {
	// Capacity returns the number of entry slots.
	Capacity() int

	// TestBit reports whether slot i holds the start of an entry.
	TestBit(i int) bool

	// Entry decodes the entry starting at slot i and resolves its name.
	Entry(i int) (types.DirEntry, error)
}

// table is the shared EntrySource implementation over three views of one
// buffer.
type table struct {
	capacity int
	bitmap   []byte
	entries  []byte
	names    []byte
}

var _ EntrySource = (*table)(nil)

func newTable(data []byte, capacity, bitmapSize, reserved int) (*table, error) {
	entriesOff := bitmapSize + reserved
	namesOff := entriesOff + capacity*types.DirEntrySize
	end := namesOff + capacity*types.SlotLen
	if capacity <= 0 || len(data) < end {
		return nil, fmt.Errorf("%w: %d-slot dentry table needs %d bytes, got %d",
			types.ErrShortBuffer, capacity, end, len(data))
	}
	return &table{
		capacity: capacity,
		bitmap:   data[:bitmapSize],
		entries:  data[entriesOff:namesOff],
		names:    data[namesOff:end],
	}, nil
}

func (t *table) Capacity() int {
	return t.capacity
}

// Dentry bitmaps use little-endian bit order.
func (t *table) TestBit(i int) bool {
	if i < 0 || i >= t.capacity {
		return false
	}
	return t.bitmap[i/types.BitsPerByte]&(1<<(i%types.BitsPerByte)) != 0
}

func (t *table) Entry(i int) (types.DirEntry, error) {
	if i < 0 || i >= t.capacity {
		return types.DirEntry{}, fmt.Errorf("%w: dentry slot %d of %d", types.ErrCorrupted, i, t.capacity)
	}

	raw := t.entries[i*types.DirEntrySize : (i+1)*types.DirEntrySize]
	d := types.DirEntry{
		Hash:     binary.LittleEndian.Uint32(raw[0:4]),
		Ino:      types.NodeID(binary.LittleEndian.Uint32(raw[4:8])),
		NameLen:  binary.LittleEndian.Uint16(raw[8:10]),
		FileType: types.FileType(raw[10]),
	}
	if d.NameLen == 0 {
		return d, nil
	}

	if d.NameLen > types.MaxNameLen || i+d.Slots() > t.capacity {
		return types.DirEntry{}, fmt.Errorf("%w: dentry slot %d name of %d bytes overruns table",
			types.ErrCorrupted, i, d.NameLen)
	}
	start := i * types.SlotLen
	d.Name = string(t.names[start : start+int(d.NameLen)])

	return d, nil
}
