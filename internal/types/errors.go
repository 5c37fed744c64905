package types

import "errors"

// Error kinds surfaced by the reader. Callers match them with errors.Is; the
// returned errors wrap these with the block address or node id involved.
var (
	// ErrIO reports a failed read or seek on the underlying device.
	ErrIO = errors.New("i/o error")

	// ErrSuperblockNotFound reports that neither superblock copy is valid.
	ErrSuperblockNotFound = errors.New("no valid superblock found")

	// ErrChecksumMismatch reports a CRC that does not match the stored value.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrCheckpointNotFound reports that neither checkpoint pack is valid.
	ErrCheckpointNotFound = errors.New("no valid checkpoint pack found")

	// ErrAllocationFailure reports that a backing buffer could not be
	// allocated, either because the allocator failed or because an on-disk
	// size is beyond what a sane image can hold.
	ErrAllocationFailure = errors.New("buffer allocation failed")

	// ErrInvalidInode reports a node id that resolves to no block, a node
	// block that does not belong to the requested node id, or use of an
	// inode handle that has already been released.
	ErrInvalidInode = errors.New("invalid inode")

	// ErrNotADirectory reports directory iteration on a non-directory inode.
	ErrNotADirectory = errors.New("not a directory")

	// ErrNotFound reports a path component that does not exist.
	ErrNotFound = errors.New("no such file or directory")

	// ErrIteratorExhausted reports a Next call after end of sequence was
	// already returned, or after Close.
	ErrIteratorExhausted = errors.New("directory iterator exhausted")

	// ErrCorrupted reports an on-disk value that is out of range.
	ErrCorrupted = errors.New("corrupted metadata")

	// ErrUnmounted reports use of a filesystem after Unmount.
	ErrUnmounted = errors.New("filesystem is unmounted")

	// ErrShortBuffer reports a buffer smaller than the record it must hold.
	ErrShortBuffer = errors.New("buffer too small for record")
)
