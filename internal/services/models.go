package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// FileNode represents a file or directory in the filesystem
type FileNode struct {
	Inode         types.NodeID
	Path          string
	Name          string
	FileType      types.FileType
	Mode          uint16
	Size          uint64
	Blocks        uint64
	ModifiedTime  time.Time
	ChangedTime   time.Time
	AccessedTime  time.Time
	UID           uint32
	GID           uint32
	IsDirectory   bool
	IsSymlink     bool
	ParentInode   types.NodeID
	HardLinkCount uint32
	InlineFlags   types.InlineFlag
	NodeBlock     types.BlockAddr
}

// NATLocation describes how a node id resolved through the NAT
type NATLocation struct {
	NID          types.NodeID
	NATBlock     uint32
	NATSlot      int
	NATBlockAddr types.BlockAddr
	UseAlternate bool
	Entry        types.NATEntry
}

// FilesystemInfo summarises a mounted filesystem
type FilesystemInfo struct {
	UUID             uuid.UUID
	VolumeName       string
	Version          string
	KernelVersion    string
	SuperblockCopy   int
	Features         []string
	BlockCount       uint64
	BlocksPerSegment uint32
	SegmentCount     uint32
	RootIno          types.NodeID

	CheckpointPack    int
	CheckpointVersion uint64
	CheckpointFlags   []string
	ValidBlockCount   uint64
	UserBlockCount    uint64
	ValidNodeCount    uint32
	ValidInodeCount   uint32
	FreeSegmentCount  uint32

	NATBlocks          uint32
	NATAlternateBlocks int
	NATBitsValid       bool
	NATFullBlocks      int
	NATEmptyBlocks     int
}
