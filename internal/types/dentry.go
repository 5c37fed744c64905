package types

// Directory Entry Objects
// Directory entries live in dentry blocks, or inline in the directory inode
// when the inline_dentry flag is set. Both layouts are a validity bitmap,
// an array of fixed-size entries and an array of 8-byte name slots.

const (
	// DirEntrySize is the packed size of struct f2fs_dir_entry.
	DirEntrySize = 11

	// SlotLen is the number of name bytes per slot.
	SlotLen = 8

	// NrDentryInBlock is the number of entries in a dentry block.
	NrDentryInBlock = 214

	// DentryBitmapSize is the size of the dentry block's bitmap.
	DentryBitmapSize = (NrDentryInBlock + BitsPerByte - 1) / BitsPerByte

	// DentryReservedSize is the size of the padding after the bitmap.
	DentryReservedSize = BlockSize - (DirEntrySize+SlotLen)*NrDentryInBlock - DentryBitmapSize

	// DotSlots is the number of leading slots holding "." and "..".
	DotSlots = 2
)

// FileType is the file_type byte of a directory entry.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeChrdev
	FileTypeBlkdev
	FileTypeFIFO
	FileTypeSock
	FileTypeSymlink
)

var fileTypeNames = [...]string{"unknown", "file", "dir", "chrdev", "blkdev", "fifo", "socket", "symlink"}

// String returns a short name for the file type.
func (t FileType) String() string {
	if int(t) < len(fileTypeNames) {
		return fileTypeNames[t]
	}
	return "unknown"
}

// DirEntry is a decoded directory entry with its name resolved from the
// name slots.
type DirEntry struct {
	Hash     uint32
	Ino      NodeID
	NameLen  uint16
	FileType FileType
	Name     string
}

// Slots returns the number of name slots the entry occupies.
func (d DirEntry) Slots() int {
	if d.NameLen == 0 {
		return 1
	}
	return (int(d.NameLen) + SlotLen - 1) / SlotLen
}
