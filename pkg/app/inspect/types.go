package inspect

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/chenyuwen/myf2fs/pkg/app"
)

// Kind selects what an inspection reports
type Kind string

const (
	KindSuperblock Kind = "super"
	KindCheckpoint Kind = "checkpoint"
	KindNAT        Kind = "nat"
	KindList       Kind = "ls"
	KindStat       Kind = "stat"
)

// Request represents an inspection request
type Request struct {
	Target app.ImageTarget
	Kind   Kind

	// Path inside the filesystem, for ls and stat
	Path      string
	Recursive bool

	// NIDs to resolve through the NAT, for nat
	NIDs []uint32

	MaxResults int
}

// Response represents inspection results. Only the section matching the
// request kind is set.
type Response struct {
	Kind        Kind              `json:"kind" yaml:"kind"`
	Image       string            `json:"image" yaml:"image"`
	Superblock  *SuperblockReport `json:"superblock,omitempty" yaml:"superblock,omitempty"`
	Checkpoint  *CheckpointReport `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`
	NAT         *NATReport        `json:"nat,omitempty" yaml:"nat,omitempty"`
	Files       []FileResult      `json:"files,omitempty" yaml:"files,omitempty"`
	TotalFound  int               `json:"total_found,omitempty" yaml:"total_found,omitempty"`
	Truncated   bool              `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	ElapsedTime time.Duration     `json:"elapsed_time" yaml:"elapsed_time"`
}

// SuperblockReport describes the accepted superblock copy
type SuperblockReport struct {
	Copy             int      `json:"copy"`
	UUID             string   `json:"uuid"`
	VolumeName       string   `json:"volume_name"`
	Version          string   `json:"version"`
	KernelVersion    string   `json:"kernel_version"`
	InitVersion      string   `json:"init_version"`
	Features         []string `json:"features"`
	Extensions       []string `json:"extensions,omitempty"`
	BlockCount       uint64   `json:"block_count"`
	BlocksPerSegment uint32   `json:"blocks_per_segment"`
	SegmentsPerSec   uint32   `json:"segments_per_section"`
	SectionsPerZone  uint32   `json:"sections_per_zone"`
	SegmentCount     uint32   `json:"segment_count"`
	CPPayload        uint32   `json:"cp_payload"`
	RootIno          uint32   `json:"root_ino"`
	NodeIno          uint32   `json:"node_ino"`
	MetaIno          uint32   `json:"meta_ino"`
	Areas            []Area   `json:"areas"`
}

// Area is one on-disk region of the filesystem
type Area struct {
	Name     string `json:"name"`
	StartBlk uint32 `json:"start_blkaddr"`
	Segments uint32 `json:"segments"`
}

// CheckpointReport describes the current checkpoint pack
type CheckpointReport struct {
	Pack                int          `json:"pack"`
	PackStart           uint32       `json:"pack_start"`
	Version             uint64       `json:"version"`
	Flags               []string     `json:"flags"`
	Checksum            string       `json:"checksum"`
	PackTotalBlockCount uint32       `json:"pack_total_block_count"`
	UserBlockCount      uint64       `json:"user_block_count"`
	ValidBlockCount     uint64       `json:"valid_block_count"`
	RsvdSegmentCount    uint32       `json:"rsvd_segment_count"`
	OverprovSegCount    uint32       `json:"overprov_segment_count"`
	FreeSegmentCount    uint32       `json:"free_segment_count"`
	ValidNodeCount      uint32       `json:"valid_node_count"`
	ValidInodeCount     uint32       `json:"valid_inode_count"`
	NextFreeNID         uint32       `json:"next_free_nid"`
	ElapsedTime         uint64       `json:"elapsed_time"`
	CurSegments         []CurSegment `json:"cur_segments"`
}

// CurSegment is one active log of the checkpoint
type CurSegment struct {
	Log    string `json:"log"`
	Segno  uint32 `json:"segno"`
	Blkoff uint16 `json:"blkoff"`
}

// NATReport describes the NAT and its version state
type NATReport struct {
	BaseAddr        uint32          `json:"base_addr"`
	Blocks          uint32          `json:"blocks"`
	EntriesPerBlock uint32          `json:"entries_per_block"`
	MaxNID          uint64          `json:"max_nid"`
	AlternateBlocks int             `json:"alternate_blocks"`
	NATBitsValid    bool            `json:"nat_bits_valid"`
	FullBlocks      int             `json:"full_blocks"`
	EmptyBlocks     int             `json:"empty_blocks"`
	Resolved        []NATResolution `json:"resolved,omitempty"`
}

// NATResolution is the NAT lookup of one node id
type NATResolution struct {
	NID          uint32 `json:"nid"`
	NATBlock     uint32 `json:"nat_block"`
	Slot         int    `json:"slot"`
	NATBlockAddr uint32 `json:"nat_block_addr"`
	Alternate    bool   `json:"alternate"`
	Ino          uint32 `json:"ino"`
	BlockAddr    uint32 `json:"block_addr"`
	Version      uint8  `json:"version"`
}

// FileResult represents one inode reached through a directory
type FileResult struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Inode       uint32    `json:"inode"`
	Type        string    `json:"type"`
	Mode        uint16    `json:"mode"`
	Permissions string    `json:"permissions"`
	Size        uint64    `json:"size"`
	Links       uint32    `json:"links"`
	UID         uint32    `json:"uid"`
	GID         uint32    `json:"gid"`
	Modified    time.Time `json:"modified"`
	NodeBlock   uint32    `json:"node_block"`
	Inline      bool      `json:"inline"`
}

// FormatSize returns a human-readable size string
func (f *FileResult) FormatSize() string {
	const unit = 1024
	if f.Size < unit {
		return fmt.Sprintf("%d B", f.Size)
	}
	div, exp := uint64(unit), 0
	for n := f.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(f.Size)/float64(div), "KMGTPE"[exp])
}

// permissionString renders an inode mode the way ls does
func permissionString(mode uint16, fileType string) string {
	perm := fs.FileMode(mode & 0o777)
	switch fileType {
	case "dir":
		perm |= fs.ModeDir
	case "symlink":
		perm |= fs.ModeSymlink
	case "chrdev":
		perm |= fs.ModeDevice | fs.ModeCharDevice
	case "blkdev":
		perm |= fs.ModeDevice
	case "fifo":
		perm |= fs.ModeNamedPipe
	case "socket":
		perm |= fs.ModeSocket
	}
	return perm.String()
}
