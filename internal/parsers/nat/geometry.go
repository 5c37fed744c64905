package nat

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Geometry describes where NAT blocks live. NAT segments come in pairs;
// block i of the table has one copy in each segment of its pair.
type Geometry struct {
	// Base is nat_blkaddr.
	Base types.BlockAddr

	// BlocksPerSeg is 1 << log_blocks_per_seg.
	BlocksPerSeg uint32

	// EntriesPerBlock is the number of NAT entries in a block.
	EntriesPerBlock uint32

	// Blocks is the number of distinct NAT blocks, one copy each.
	Blocks uint32
}

// NewGeometry derives the NAT geometry from a superblock.
func NewGeometry(sb *types.Superblock) Geometry {
	return Geometry{
		Base:            sb.NATBlkAddr,
		BlocksPerSeg:    sb.BlocksPerSeg(),
		EntriesPerBlock: types.NATEntriesPerBlock,
		Blocks:          (sb.SegmentCountNAT / 2) << sb.LogBlocksPerSeg,
	}
}

// MaxNID returns the first node id past the table.
func (g Geometry) MaxNID() uint64 {
	return uint64(g.Blocks) * uint64(g.EntriesPerBlock)
}

// BlockIndex returns the NAT block index holding nid and the entry slot
// within it.
func (g Geometry) BlockIndex(nid types.NodeID) (block uint32, slot int) {
	return uint32(nid) / g.EntriesPerBlock, int(uint32(nid) % g.EntriesPerBlock)
}

// BlockAddr returns the current physical address of the NAT block holding
// nid. It depends only on its inputs.
func (g Geometry) BlockAddr(nid types.NodeID, bitmap *VersionBitmap) (types.BlockAddr, error) {
	if g.EntriesPerBlock == 0 || g.BlocksPerSeg == 0 {
		return types.NullAddr, fmt.Errorf("%w: empty NAT geometry", types.ErrCorrupted)
	}
	if uint64(nid) >= g.MaxNID() {
		return types.NullAddr, fmt.Errorf("%w: nid %d beyond NAT of %d entries", types.ErrInvalidInode, nid, g.MaxNID())
	}

	bi, _ := g.BlockIndex(nid)
	addr := uint32(g.Base) + (bi/g.BlocksPerSeg)*g.BlocksPerSeg*2 + bi%g.BlocksPerSeg
	if bitmap != nil && bitmap.UseAlternate(bi) {
		addr += g.BlocksPerSeg
	}
	return types.BlockAddr(addr), nil
}
