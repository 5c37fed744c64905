package node

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Inline describes the inline area of an inode: where it starts in the node
// block and how many bytes it may use.
type Inline struct {
	// Offset is the byte offset of the area within the node block.
	Offset int

	// Size is MAX_INLINE_DATA in bytes.
	Size int

	// XattrAddrs is the number of i_addr words taken by inline xattrs.
	XattrAddrs int
}

// InlineXattrAddrs returns the number of i_addr words reserved at the end of
// i_addr for inline extended attributes.
func InlineXattrAddrs(sb *types.Superblock, in *types.Inode) int {
	if !in.HasInline(types.InlineXattr) {
		return 0
	}
	if sb.HasFeature(types.FeatureFlexibleInlineXattr) {
		return int(in.InlineXattrSize)
	}
	return types.DefaultInlineXattrAddrs
}

// InlineLayout computes the inline area of an inode.
func InlineLayout(sb *types.Superblock, in *types.Inode) (Inline, error) {
	xattrAddrs := InlineXattrAddrs(sb, in)
	words := types.DefAddrsPerInode - in.ExtraAddrs() - xattrAddrs - types.DefInlineReservedSize
	if words <= 0 {
		return Inline{}, fmt.Errorf("%w: no inline space (extra %d words, xattr %d words)",
			types.ErrCorrupted, in.ExtraAddrs(), xattrAddrs)
	}

	return Inline{
		Offset:     types.InodeAddrOffset + (in.ExtraAddrs()+types.DefInlineReservedSize)*4,
		Size:       words * 4,
		XattrAddrs: xattrAddrs,
	}, nil
}

// Data returns the inline area of in's node block.
func (l Inline) Data(in *types.Inode) ([]byte, error) {
	end := l.Offset + l.Size
	if end > len(in.Raw) || end > types.NodeFooterOffset {
		return nil, fmt.Errorf("%w: inline area [%d, %d) overruns node block", types.ErrCorrupted, l.Offset, end)
	}
	return in.Raw[l.Offset:end], nil
}
