package types

// Node Objects
// Every node block (inode, direct node or indirect node) is one block that
// ends with a footer identifying the node. Inode blocks carry struct
// f2fs_inode before the footer.

const (
	// DefAddrsPerInode is the size of i_addr without extra attributes.
	DefAddrsPerInode = 923

	// DefNidsPerInode is the size of i_nid.
	DefNidsPerInode = 5

	// DefInlineReservedSize is the number of i_addr words reserved in front
	// of inline data.
	DefInlineReservedSize = 1

	// DefaultInlineXattrAddrs is the inline xattr size, in i_addr words, when
	// the flexible_inline_xattr feature is off.
	DefaultInlineXattrAddrs = 50

	// MaxNameLen is the longest file name F2FS stores.
	MaxNameLen = 255

	// InodeAddrOffset is the byte offset of i_addr in a node block.
	InodeAddrOffset = 360

	// NodeFooterOffset is the byte offset of the node footer.
	NodeFooterOffset = BlockSize - 24
)

// InlineFlag is a bit of i_inline.
type InlineFlag uint8

const (
	InlineXattr  InlineFlag = 0x01
	InlineData   InlineFlag = 0x02
	InlineDentry InlineFlag = 0x04
	DataExist    InlineFlag = 0x08
	InlineDots   InlineFlag = 0x10
	ExtraAttr    InlineFlag = 0x20
	PinFile      InlineFlag = 0x40
)

// File mode type bits, as in stat(2).
const (
	ModeTypeMask  uint16 = 0xF000
	ModeSocket    uint16 = 0xC000
	ModeSymlink   uint16 = 0xA000
	ModeRegular   uint16 = 0x8000
	ModeBlockDev  uint16 = 0x6000
	ModeDirectory uint16 = 0x4000
	ModeCharDev   uint16 = 0x2000
	ModeFIFO      uint16 = 0x1000
)

// Extent represents struct f2fs_extent, the largest cached extent of a file.
type Extent struct {
	FileOffset uint32
	BlockAddr  BlockAddr
	Len        uint32
}

// NodeFooter represents struct node_footer.
type NodeFooter struct {
	NID         NodeID
	Ino         NodeID
	Flag        uint32
	CPVersion   uint64
	NextBlkAddr BlockAddr
}

// IsInode reports whether the footer describes an inode block.
func (f NodeFooter) IsInode() bool {
	return f.NID == f.Ino
}

// Inode represents struct f2fs_inode as read from a node block.
type Inode struct {
	Mode         uint16
	Advise       uint8
	Inline       InlineFlag
	UID          uint32
	GID          uint32
	Links        uint32
	Size         uint64
	Blocks       uint64
	Atime        uint64
	Ctime        uint64
	Mtime        uint64
	AtimeNsec    uint32
	CtimeNsec    uint32
	MtimeNsec    uint32
	Generation   uint32
	CurrentDepth uint32
	XattrNID     NodeID
	Flags        uint32
	ParentIno    NodeID
	NameLen      uint32
	NameRaw      [MaxNameLen]byte
	DirLevel     uint8
	Extent       Extent

	// Extra attributes, valid when Inline has ExtraAttr.
	ExtraISize      uint16
	InlineXattrSize uint16
	ProjectID       uint32
	InodeChecksum   uint32
	Crtime          uint64
	CrtimeNsec      uint32

	Addrs  [DefAddrsPerInode]BlockAddr
	NIDs   [DefNidsPerInode]NodeID
	Footer NodeFooter

	// Raw is the node block the record was decoded from. Inline data and
	// inline dentries are read from it.
	Raw []byte
}

// HasInline reports whether all bits of f are set in i_inline.
func (in *Inode) HasInline(f InlineFlag) bool {
	return in.Inline&f == f
}

// FileType returns the mode's file type bits.
func (in *Inode) FileType() uint16 {
	return in.Mode & ModeTypeMask
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool {
	return in.FileType() == ModeDirectory
}

// IsRegular reports whether the inode is a regular file.
func (in *Inode) IsRegular() bool {
	return in.FileType() == ModeRegular
}

// IsSymlink reports whether the inode is a symbolic link.
func (in *Inode) IsSymlink() bool {
	return in.FileType() == ModeSymlink
}

// Name returns the name recorded in the inode at creation time.
func (in *Inode) Name() string {
	n := int(in.NameLen)
	if n > MaxNameLen {
		n = MaxNameLen
	}
	return string(in.NameRaw[:n])
}

// ExtraAddrs returns the number of leading i_addr words taken by extra
// attributes.
func (in *Inode) ExtraAddrs() int {
	if !in.HasInline(ExtraAttr) {
		return 0
	}
	return int(in.ExtraISize) / 4
}

// DataBlockAddr returns the address of the index-th data block held in
// i_addr, or NullAddr when index is past the direct pointers.
func (in *Inode) DataBlockAddr(index int) BlockAddr {
	i := in.ExtraAddrs() + index
	if index < 0 || i >= DefAddrsPerInode {
		return NullAddr
	}
	return in.Addrs[i]
}
