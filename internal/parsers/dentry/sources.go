package dentry

import (
	"github.com/chenyuwen/myf2fs/internal/types"
)

// entryBits is the per-slot cost in bits: the entry, its name slot and its
// bitmap bit.
const entryBits = (types.DirEntrySize+types.SlotLen)*types.BitsPerByte + 1

// BlockSource returns the entry table of a 4 KiB dentry block.
func BlockSource(block []byte) (EntrySource, error) {
	return newTable(block, types.NrDentryInBlock, types.DentryBitmapSize, types.DentryReservedSize)
}

// InlineCapacity returns the number of entry slots that fit in an inline
// area of size bytes.
func InlineCapacity(size int) int {
	return size * types.BitsPerByte / entryBits
}

// InlineSource returns the entry table stored in an inline area.
func InlineSource(area []byte) (EntrySource, error) {
	n := InlineCapacity(len(area))
	bitmapSize := (n + types.BitsPerByte - 1) / types.BitsPerByte
	reserved := len(area) - (types.DirEntrySize+types.SlotLen)*n - bitmapSize
	return newTable(area, n, bitmapSize, reserved)
}
