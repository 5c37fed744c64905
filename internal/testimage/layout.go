// Package testimage builds small synthetic F2FS images for tests.
package testimage

import "github.com/chenyuwen/myf2fs/internal/types"

// Fixed geometry of every built image: 8-block segments, two checkpoint
// segments, two SIT segments, one NAT segment pair, one SSA segment and
// forty main segments.
const (
	LogBlocksPerSeg = 3
	BlocksPerSeg    = 1 << LogBlocksPerSeg

	Segment0BlkAddr = 8
	CPBlkAddr       = Segment0BlkAddr
	SITBlkAddr      = CPBlkAddr + 2*BlocksPerSeg
	NATBlkAddr      = SITBlkAddr + 2*BlocksPerSeg
	SSABlkAddr      = NATBlkAddr + 2*BlocksPerSeg
	MainBlkAddr     = SSABlkAddr + BlocksPerSeg

	SegmentCountCkpt = 2
	SegmentCountSIT  = 2
	SegmentCountNAT  = 2
	SegmentCountSSA  = 1
	SegmentCountMain = 40
	SegmentCount     = SegmentCountCkpt + SegmentCountSIT + SegmentCountNAT + SegmentCountSSA + SegmentCountMain

	TotalBlocks = Segment0BlkAddr + SegmentCount*BlocksPerSeg

	// PackBlocks is cp_pack_total_block_count: the checkpoint block, three
	// summary blocks and the trailing checkpoint copy.
	PackBlocks = 5

	// NATBlocks is the number of distinct NAT blocks.
	NATBlocks = (SegmentCountNAT / 2) << LogBlocksPerSeg

	SITVerBitmapBytes = ((SegmentCountSIT / 2) << LogBlocksPerSeg) / types.BitsPerByte
	NATVerBitmapBytes = NATBlocks / types.BitsPerByte

	NodeIno types.NodeID = 1
	MetaIno types.NodeID = 2
	RootIno types.NodeID = 3

	// DefaultExtraISize is the extra attribute size mkfs.f2fs writes.
	DefaultExtraISize = 24
)

// SuperblockOffset returns the byte offset of superblock copy copyIdx.
func SuperblockOffset(copyIdx int) int {
	return copyIdx*types.BlockSize + types.SuperOffset
}

// PackAddr returns the first block of checkpoint pack idx.
func PackAddr(idx int) types.BlockAddr {
	return types.BlockAddr(CPBlkAddr + idx*BlocksPerSeg)
}

// NATBlockAddr returns the physical address of one copy of NAT block bi.
func NATBlockAddr(bi uint32, alternate bool) types.BlockAddr {
	addr := NATBlkAddr + (bi/BlocksPerSeg)*BlocksPerSeg*2 + bi%BlocksPerSeg
	if alternate {
		addr += BlocksPerSeg
	}
	return types.BlockAddr(addr)
}
