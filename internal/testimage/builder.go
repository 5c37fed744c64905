package testimage

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// BaseTime is the timestamp written into every inode.
const BaseTime = 1700000000

var le = binary.LittleEndian

type entrySpec struct {
	name     string
	ino      types.NodeID
	fileType types.FileType
}

type nodeSpec struct {
	nid      types.NodeID
	parent   types.NodeID
	name     string
	mode     uint16
	size     uint64
	inline   types.InlineFlag
	extra    uint16
	xattrLen uint16
	entries  []entrySpec
	holes    map[int]bool
	perBlock int

	// Filled in by Build.
	addr      types.BlockAddr
	dataAddrs []types.BlockAddr
}

// DirOption configures a directory added with Mkdir or New.
type DirOption func(*nodeSpec)

// Inline stores the directory's entries inline in its inode.
func Inline() DirOption {
	return func(n *nodeSpec) { n.inline |= types.InlineDentry | types.InlineDots }
}

// WithExtraAttr gives the inode extra attributes of isize bytes.
func WithExtraAttr(isize uint16) DirOption {
	return func(n *nodeSpec) {
		n.inline |= types.ExtraAttr
		n.extra = isize
	}
}

// WithInlineXattr reserves inline xattr space. size is only honoured when
// the image has the flexible_inline_xattr feature.
func WithInlineXattr(size uint16) DirOption {
	return func(n *nodeSpec) {
		n.inline |= types.InlineXattr
		n.xattrLen = size
	}
}

// WithHoles leaves the given data block indexes of a block-resident
// directory unallocated.
func WithHoles(indexes ...int) DirOption {
	return func(n *nodeSpec) {
		for _, i := range indexes {
			n.holes[i] = true
		}
	}
}

// WithEntriesPerBlock caps the named entries stored in each dentry block.
func WithEntriesPerBlock(count int) DirOption {
	return func(n *nodeSpec) { n.perBlock = count }
}

// Builder assembles an image. The zero value is not usable; call New.
type Builder struct {
	// Versions are the checkpoint versions of pack 0 and pack 1. A zero
	// version leaves the pack blank.
	Versions [types.CheckpointPacks]uint64

	// Features is written to the superblock. FeatureSbChecksum is set by
	// New.
	Features types.Feature

	// VolumeName is the volume label.
	VolumeName string

	// NATBits writes a valid nat_bits area and sets CPNatBitsFlag.
	NATBits bool

	// LargeNATBitmap sets CPLargeNatBitmapFlag and moves the NAT version
	// bitmap behind the 4-byte header.
	LargeNATBitmap bool

	nodes     map[types.NodeID]*nodeSpec
	order     []types.NodeID
	nextNID   types.NodeID
	alternate map[uint32]bool
}

// New returns a builder holding only the root directory.
func New(rootOpts ...DirOption) *Builder {
	b := &Builder{
		Versions:   [types.CheckpointPacks]uint64{1, 0},
		Features:   types.FeatureSbChecksum,
		VolumeName: "testvol",
		nodes:      make(map[types.NodeID]*nodeSpec),
		nextNID:    RootIno + 1,
		alternate:  make(map[uint32]bool),
	}
	b.addNode(RootIno, RootIno, "", types.ModeDirectory|0o755, rootOpts)
	return b
}

// Mkdir adds a directory under parent and returns its node id.
func (b *Builder) Mkdir(parent types.NodeID, name string, opts ...DirOption) types.NodeID {
	nid := b.allocNID()
	b.addNode(nid, parent, name, types.ModeDirectory|0o755, opts)
	b.AddEntry(parent, name, nid, types.FileTypeDir)
	return nid
}

// Create adds a regular file of size bytes under parent.
func (b *Builder) Create(parent types.NodeID, name string, size uint64) types.NodeID {
	nid := b.allocNID()
	n := b.addNode(nid, parent, name, types.ModeRegular|0o644, nil)
	n.size = size
	b.AddEntry(parent, name, nid, types.FileTypeRegular)
	return nid
}

// Symlink adds a symbolic link under parent.
func (b *Builder) Symlink(parent types.NodeID, name string) types.NodeID {
	nid := b.allocNID()
	b.addNode(nid, parent, name, types.ModeSymlink|0o777, nil)
	b.AddEntry(parent, name, nid, types.FileTypeSymlink)
	return nid
}

// AddEntry adds a raw directory entry to dir without creating an inode.
func (b *Builder) AddEntry(dir types.NodeID, name string, ino types.NodeID, ft types.FileType) {
	n, ok := b.nodes[dir]
	if !ok {
		panic(fmt.Sprintf("testimage: no directory %d", dir))
	}
	n.entries = append(n.entries, entrySpec{name: name, ino: ino, fileType: ft})
}

// UseAlternate marks NAT block bi as current in its alternate segment.
func (b *Builder) UseAlternate(bi uint32) {
	b.alternate[bi] = true
}

// SkipNIDs advances the node id allocator, so the next node lands in a
// later NAT block.
func (b *Builder) SkipNIDs(count uint32) {
	b.nextNID += types.NodeID(count)
}

func (b *Builder) allocNID() types.NodeID {
	nid := b.nextNID
	b.nextNID++
	return nid
}

func (b *Builder) addNode(nid, parent types.NodeID, name string, mode uint16, opts []DirOption) *nodeSpec {
	n := &nodeSpec{
		nid:      nid,
		parent:   parent,
		name:     name,
		mode:     mode,
		holes:    make(map[int]bool),
		perBlock: types.NrDentryInBlock,
	}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[nid] = n
	b.order = append(b.order, nid)
	return n
}

// Image is a built image with the addresses chosen for its nodes.
type Image struct {
	Data []byte

	nodes map[types.NodeID]*nodeSpec
}

// NodeAddr returns the block holding nid's inode.
func (img *Image) NodeAddr(nid types.NodeID) types.BlockAddr {
	return img.nodes[nid].addr
}

// DataAddrs returns the data block addresses of a block-resident directory,
// with NullAddr for holes.
func (img *Image) DataAddrs(nid types.NodeID) []types.BlockAddr {
	return img.nodes[nid].dataAddrs
}

// Block returns the bytes of block addr.
func (img *Image) Block(addr types.BlockAddr) []byte {
	off := int(addr) * types.BlockSize
	return img.Data[off : off+types.BlockSize]
}

// Build lays out the image.
func (b *Builder) Build() *Image {
	img := &Image{
		Data:  make([]byte, TotalBlocks*types.BlockSize),
		nodes: b.nodes,
	}

	next := types.BlockAddr(MainBlkAddr)
	alloc := func() types.BlockAddr {
		addr := next
		next++
		if next > TotalBlocks {
			panic("testimage: main area full")
		}
		return addr
	}

	for _, nid := range b.order {
		n := b.nodes[nid]
		n.addr = alloc()
		if n.mode&types.ModeTypeMask == types.ModeDirectory && n.inline&types.InlineDentry == 0 {
			b.layoutDentryBlocks(img, n, alloc)
		}
	}

	for _, nid := range b.order {
		b.writeInode(img, b.nodes[nid])
		b.writeNATEntry(img, b.nodes[nid])
	}

	b.writeSuperblock(img, 0)
	b.writeSuperblock(img, 1)
	for idx, ver := range b.Versions {
		if ver != 0 {
			b.writeCheckpoint(img, idx, ver, next)
		}
	}

	return img
}

func (b *Builder) currentVersion() uint64 {
	return max(b.Versions[0], b.Versions[1])
}

func (b *Builder) writeSuperblock(img *Image, copyIdx int) {
	sb := img.Data[SuperblockOffset(copyIdx) : SuperblockOffset(copyIdx)+types.SuperblockSize]

	le.PutUint32(sb[0:], types.SuperMagic)
	le.PutUint16(sb[4:], 1)
	le.PutUint16(sb[6:], 16)
	le.PutUint32(sb[8:], 9)
	le.PutUint32(sb[12:], 3)
	le.PutUint32(sb[16:], types.LogBlockSize)
	le.PutUint32(sb[20:], LogBlocksPerSeg)
	le.PutUint32(sb[24:], 1)
	le.PutUint32(sb[28:], 1)
	le.PutUint32(sb[32:], types.SuperChecksumOffset)
	le.PutUint64(sb[36:], TotalBlocks)
	le.PutUint32(sb[44:], SegmentCountMain)
	le.PutUint32(sb[48:], SegmentCount)
	le.PutUint32(sb[52:], SegmentCountCkpt)
	le.PutUint32(sb[56:], SegmentCountSIT)
	le.PutUint32(sb[60:], SegmentCountNAT)
	le.PutUint32(sb[64:], SegmentCountSSA)
	le.PutUint32(sb[68:], SegmentCountMain)
	le.PutUint32(sb[72:], Segment0BlkAddr)
	le.PutUint32(sb[76:], CPBlkAddr)
	le.PutUint32(sb[80:], SITBlkAddr)
	le.PutUint32(sb[84:], NATBlkAddr)
	le.PutUint32(sb[88:], SSABlkAddr)
	le.PutUint32(sb[92:], MainBlkAddr)
	le.PutUint32(sb[96:], uint32(RootIno))
	le.PutUint32(sb[100:], uint32(NodeIno))
	le.PutUint32(sb[104:], uint32(MetaIno))
	copy(sb[108:124], []byte{
		0x6f, 0x2d, 0x1c, 0x3a, 0x91, 0x5e, 0x4b, 0x07,
		0xa4, 0x52, 0x0e, 0x8c, 0x39, 0xd1, 0x7b, 0xe6,
	})
	for i, u := range utf16.Encode([]rune(b.VolumeName)) {
		if i >= types.MaxVolumeName {
			break
		}
		le.PutUint16(sb[124+2*i:], u)
	}
	le.PutUint32(sb[1148:], 2)
	copy(sb[1152:], "mp4")
	copy(sb[1160:], "jpg")
	copy(sb[1668:], "6.6.0-testimage")
	copy(sb[1924:], "6.6.0-testimage")
	le.PutUint32(sb[2180:], uint32(b.Features))

	if b.Features&types.FeatureSbChecksum != 0 {
		le.PutUint32(sb[types.SuperChecksumOffset:], checksum.CRC32(sb[:types.SuperChecksumOffset]))
	}
}

func (b *Builder) writeCheckpoint(img *Image, idx int, ver uint64, used types.BlockAddr) {
	start := PackAddr(idx)
	cp := img.Block(start)

	flags := types.CPUmountFlag
	if b.NATBits {
		flags |= types.CPNatBitsFlag
	}
	if b.LargeNATBitmap {
		flags |= types.CPLargeNatBitmapFlag
	}

	usedMain := uint64(used - MainBlkAddr)
	le.PutUint64(cp[0:], ver)
	le.PutUint64(cp[8:], SegmentCountMain*BlocksPerSeg)
	le.PutUint64(cp[16:], usedMain)
	le.PutUint32(cp[24:], 1)
	le.PutUint32(cp[28:], 2)
	le.PutUint32(cp[32:], SegmentCountMain-uint32((usedMain+BlocksPerSeg-1)/BlocksPerSeg))
	for i := 0; i < types.MaxActiveNodeLogs; i++ {
		le.PutUint32(cp[36+4*i:], 0xFFFFFFFF)
		le.PutUint32(cp[84+4*i:], 0xFFFFFFFF)
	}
	le.PutUint32(cp[36:], 0)
	le.PutUint16(cp[68:], uint16(usedMain))
	le.PutUint32(cp[84:], 1)
	le.PutUint32(cp[132:], uint32(flags))
	le.PutUint32(cp[136:], PackBlocks)
	le.PutUint32(cp[140:], 1)
	le.PutUint32(cp[144:], uint32(len(b.order)))
	le.PutUint32(cp[148:], uint32(len(b.order)))
	le.PutUint32(cp[152:], uint32(b.nextNID))
	le.PutUint32(cp[156:], SITVerBitmapBytes)
	le.PutUint32(cp[160:], NATVerBitmapBytes)
	le.PutUint32(cp[164:], types.CPChecksumOffset)
	le.PutUint64(cp[168:], 3600)

	natBitmap := cp[types.CPVersionBitmapOffset+SITVerBitmapBytes:]
	if b.LargeNATBitmap {
		natBitmap = cp[types.CPVersionBitmapOffset+4:]
	}
	for bi := range b.alternate {
		natBitmap[bi/8] |= 1 << (bi % 8)
	}

	crc := checksum.CRC32(cp[:types.CPChecksumOffset])
	le.PutUint32(cp[types.CPChecksumOffset:], crc)
	copy(img.Block(start+PackBlocks-1), cp)

	if b.NATBits {
		area := img.Block(start + BlocksPerSeg - 1)
		le.PutUint64(area[0:], ver|uint64(crc)<<32)
		// No NAT block is full; every block but the first is empty.
		empty := area[types.NATBitsHeaderSize+NATVerBitmapBytes:]
		for bi := uint32(1); bi < NATBlocks; bi++ {
			empty[bi/8] |= 1 << (bi % 8)
		}
	}
}

func (b *Builder) writeNATEntry(img *Image, n *nodeSpec) {
	bi := uint32(n.nid) / types.NATEntriesPerBlock
	slot := int(uint32(n.nid) % types.NATEntriesPerBlock)
	if bi >= NATBlocks {
		panic(fmt.Sprintf("testimage: nid %d beyond NAT", n.nid))
	}

	block := img.Block(NATBlockAddr(bi, b.alternate[bi]))
	e := block[slot*types.NATEntrySize:]
	e[0] = 0
	le.PutUint32(e[1:], uint32(n.nid))
	le.PutUint32(e[5:], uint32(n.addr))
}
