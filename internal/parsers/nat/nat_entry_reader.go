package nat

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// ParseEntry decodes the NAT entry at slot index of a NAT block.
func ParseEntry(block []byte, index int) (types.NATEntry, error) {
	if index < 0 || index >= types.NATEntriesPerBlock {
		return types.NATEntry{}, fmt.Errorf("%w: NAT slot %d", types.ErrCorrupted, index)
	}

	r, err := types.NewFieldReader(block, types.BlockSize)
	if err != nil {
		return types.NATEntry{}, fmt.Errorf("failed to parse NAT entry: %w", err)
	}

	off := index * types.NATEntrySize
	return types.NATEntry{
		Version:   r.U8(off),
		Ino:       types.NodeID(r.U32(off + 1)),
		BlockAddr: types.BlockAddr(r.U32(off + 5)),
	}, nil
}
