package testimage

import (
	"github.com/chenyuwen/myf2fs/internal/types"
)

type placedEntry struct {
	entrySpec
	slot int
}

// layoutDentryBlocks assigns dentry blocks to a block-resident directory.
func (b *Builder) layoutDentryBlocks(img *Image, n *nodeSpec, alloc func() types.BlockAddr) {
	if n.holes[0] {
		panic("testimage: data block 0 holds the dot entries and cannot be a hole")
	}

	var blocks [][]placedEntry

	index := -1
	slot, count := 0, 0
	nextBlock := func() {
		for index++; n.holes[index]; index++ {
			blocks = append(blocks, nil)
		}
		blocks = append(blocks, []placedEntry{})
		slot, count = 0, 0
	}

	nextBlock()
	blocks[index] = append(blocks[index], b.dots(n)...)
	slot = types.DotSlots

	for _, e := range n.entries {
		slots := (len(e.name) + types.SlotLen - 1) / types.SlotLen
		if slot+slots > types.NrDentryInBlock || count >= n.perBlock {
			nextBlock()
		}
		blocks[index] = append(blocks[index], placedEntry{entrySpec: e, slot: slot})
		slot += slots
		count++
	}

	// Trailing holes still count towards i_size.
	for n.holes[len(blocks)] {
		blocks = append(blocks, nil)
	}

	n.dataAddrs = make([]types.BlockAddr, len(blocks))
	for i, placed := range blocks {
		if placed == nil {
			n.dataAddrs[i] = types.NullAddr
			continue
		}
		addr := alloc()
		n.dataAddrs[i] = addr

		block := img.Block(addr)
		writeEntries(block, types.NrDentryInBlock, types.DentryBitmapSize, types.DentryReservedSize, placed)
	}
	n.size = uint64(len(blocks)) * types.BlockSize
}

func (b *Builder) dots(n *nodeSpec) []placedEntry {
	return []placedEntry{
		{entrySpec: entrySpec{name: ".", ino: n.nid, fileType: types.FileTypeDir}, slot: 0},
		{entrySpec: entrySpec{name: "..", ino: n.parent, fileType: types.FileTypeDir}, slot: 1},
	}
}

// writeEntries fills a dentry table: bitmap, reserved bytes, entries and
// name slots. Every slot a name covers gets its bitmap bit.
func writeEntries(area []byte, capacity, bitmapSize, reserved int, placed []placedEntry) {
	entries := area[bitmapSize+reserved:]
	names := entries[capacity*types.DirEntrySize:]

	for _, p := range placed {
		e := entries[p.slot*types.DirEntrySize:]
		le.PutUint32(e[0:], nameHash(p.name))
		le.PutUint32(e[4:], uint32(p.ino))
		le.PutUint16(e[8:], uint16(len(p.name)))
		e[10] = byte(p.fileType)
		copy(names[p.slot*types.SlotLen:], p.name)

		slots := max(1, (len(p.name)+types.SlotLen-1)/types.SlotLen)
		for i := 0; i < slots; i++ {
			bit := p.slot + i
			area[bit/8] |= 1 << (bit % 8)
		}
	}
}

// nameHash is a stand-in for the directory hash; readers in this module
// never check it.
func nameHash(name string) uint32 {
	var h uint32 = 0x811c9dc5
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 0x01000193
	}
	return h
}

func (b *Builder) writeInode(img *Image, n *nodeSpec) {
	block := img.Block(n.addr)

	isDir := n.mode&types.ModeTypeMask == types.ModeDirectory
	links := uint32(1)
	if isDir {
		links = 2
	}

	le.PutUint16(block[0:], n.mode)
	block[3] = byte(n.inline)
	le.PutUint32(block[4:], 1000)
	le.PutUint32(block[8:], 1000)
	le.PutUint32(block[12:], links)
	le.PutUint64(block[24:], uint64(len(n.dataAddrs))+1)
	for _, off := range []int{32, 40, 48} {
		le.PutUint64(block[off:], BaseTime+uint64(n.nid))
	}
	le.PutUint32(block[68:], 1)
	le.PutUint32(block[84:], uint32(n.parent))
	le.PutUint32(block[88:], uint32(len(n.name)))
	copy(block[92:92+types.MaxNameLen], n.name)

	extraAddrs := 0
	if n.inline&types.ExtraAttr != 0 {
		le.PutUint16(block[types.InodeAddrOffset:], n.extra)
		le.PutUint16(block[types.InodeAddrOffset+2:], n.xattrLen)
		le.PutUint64(block[types.InodeAddrOffset+12:], BaseTime)
		extraAddrs = int(n.extra) / 4
	}

	if isDir && n.inline&types.InlineDentry != 0 {
		b.writeInlineDentries(block, n, extraAddrs)
	}
	for i, addr := range n.dataAddrs {
		le.PutUint32(block[types.InodeAddrOffset+4*(extraAddrs+i):], uint32(addr))
	}
	le.PutUint64(block[16:], n.size)

	footer := block[types.NodeFooterOffset:]
	le.PutUint32(footer[0:], uint32(n.nid))
	le.PutUint32(footer[4:], uint32(n.nid))
	le.PutUint64(footer[12:], b.currentVersion())
	le.PutUint32(footer[20:], uint32(n.addr)+1)
}

func (b *Builder) writeInlineDentries(block []byte, n *nodeSpec, extraAddrs int) {
	xattrAddrs := 0
	if n.inline&types.InlineXattr != 0 {
		xattrAddrs = types.DefaultInlineXattrAddrs
		if b.Features&types.FeatureFlexibleInlineXattr != 0 {
			xattrAddrs = int(n.xattrLen)
		}
	}

	size := 4 * (types.DefAddrsPerInode - extraAddrs - xattrAddrs - types.DefInlineReservedSize)
	capacity := size * 8 / ((types.DirEntrySize+types.SlotLen)*8 + 1)
	bitmapSize := (capacity + 7) / 8
	reserved := size - (types.DirEntrySize+types.SlotLen)*capacity - bitmapSize

	placed := b.dots(n)
	slot := types.DotSlots
	for _, e := range n.entries {
		slots := (len(e.name) + types.SlotLen - 1) / types.SlotLen
		if slot+slots > capacity {
			panic("testimage: inline directory full")
		}
		placed = append(placed, placedEntry{entrySpec: e, slot: slot})
		slot += slots
	}

	start := types.InodeAddrOffset + 4*(extraAddrs+types.DefInlineReservedSize)
	writeEntries(block[start:start+size], capacity, bitmapSize, reserved, placed)
	n.size = uint64(size)
}
