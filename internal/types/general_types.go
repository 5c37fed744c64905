// Package types implements the on-disk data structures of the Flash-Friendly
// File System (F2FS) that are needed to read its metadata.
// Layouts follow include/linux/f2fs_fs.h; all fields are little-endian.
package types

// General-Purpose Types
// Basic types that are used in a variety of contexts, and aren't associated with
// any particular on-disk area.

// BlockAddr is the index of a 4 KiB block on the device.
// F2FS stores block addresses as 32-bit values (block_t on disk).
type BlockAddr uint32

// NodeID identifies an inode or an indirect node block (nid_t).
type NodeID uint32

const (
	// BlockSize is the only block size this reader supports, in bytes.
	BlockSize = 4096

	// LogBlockSize is log2(BlockSize). Superblocks with a different
	// log_blocksize are rejected.
	LogBlockSize = 12

	// BitsPerByte is used for bitmap sizing.
	BitsPerByte = 8
)

const (
	// NullAddr marks an unallocated block.
	NullAddr BlockAddr = 0

	// NewAddr marks a block that has been reserved in memory but never
	// written to disk.
	NewAddr BlockAddr = 0xFFFFFFFF
)

// IsValid reports whether the address points at a real on-disk block.
func (a BlockAddr) IsValid() bool {
	return a != NullAddr && a != NewAddr
}

// AlignUp rounds n bytes up to a whole number of blocks and returns the
// block count.
func AlignUp(n uint64) uint64 {
	return (n + BlockSize - 1) / BlockSize
}
