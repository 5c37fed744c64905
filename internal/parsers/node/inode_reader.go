package node

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Byte offsets of struct f2fs_inode and struct node_footer fields.
const (
	offMode         = 0
	offAdvise       = 2
	offInline       = 3
	offUID          = 4
	offGID          = 8
	offLinks        = 12
	offSize         = 16
	offBlocks       = 24
	offAtime        = 32
	offCtime        = 40
	offMtime        = 48
	offAtimeNsec    = 56
	offCtimeNsec    = 60
	offMtimeNsec    = 64
	offGeneration   = 68
	offCurrentDepth = 72
	offXattrNID     = 76
	offFlags        = 80
	offParentIno    = 84
	offNameLen      = 88
	offName         = 92
	offDirLevel     = 347
	offExtent       = 348
	offAddrs        = types.InodeAddrOffset
	offNIDs         = offAddrs + types.DefAddrsPerInode*4

	// Extra attributes overlay the head of i_addr.
	offExtraISize      = offAddrs
	offInlineXattrSize = offAddrs + 2
	offProjectID       = offAddrs + 4
	offInodeChecksum   = offAddrs + 8
	offCrtime          = offAddrs + 12
	offCrtimeNsec      = offAddrs + 20

	offFooterNID       = types.NodeFooterOffset
	offFooterIno       = offFooterNID + 4
	offFooterFlag      = offFooterNID + 8
	offFooterCPVersion = offFooterNID + 12
	offFooterNextBlk   = offFooterNID + 20
)

// ParseFooter decodes the footer of any node block.
func ParseFooter(block []byte) (types.NodeFooter, error) {
	r, err := types.NewFieldReader(block, types.BlockSize)
	if err != nil {
		return types.NodeFooter{}, fmt.Errorf("failed to parse node footer: %w", err)
	}
	return types.NodeFooter{
		NID:         types.NodeID(r.U32(offFooterNID)),
		Ino:         types.NodeID(r.U32(offFooterIno)),
		Flag:        r.U32(offFooterFlag),
		CPVersion:   r.U64(offFooterCPVersion),
		NextBlkAddr: types.BlockAddr(r.U32(offFooterNextBlk)),
	}, nil
}

// ParseInode decodes an inode node block. The returned record keeps block
// as Raw; the caller must keep the buffer alive while the record is used.
func ParseInode(block []byte) (*types.Inode, error) {
	r, err := types.NewFieldReader(block, types.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inode: %w", err)
	}

	in := &types.Inode{
		Mode:         r.U16(offMode),
		Advise:       r.U8(offAdvise),
		Inline:       types.InlineFlag(r.U8(offInline)),
		UID:          r.U32(offUID),
		GID:          r.U32(offGID),
		Links:        r.U32(offLinks),
		Size:         r.U64(offSize),
		Blocks:       r.U64(offBlocks),
		Atime:        r.U64(offAtime),
		Ctime:        r.U64(offCtime),
		Mtime:        r.U64(offMtime),
		AtimeNsec:    r.U32(offAtimeNsec),
		CtimeNsec:    r.U32(offCtimeNsec),
		MtimeNsec:    r.U32(offMtimeNsec),
		Generation:   r.U32(offGeneration),
		CurrentDepth: r.U32(offCurrentDepth),
		XattrNID:     types.NodeID(r.U32(offXattrNID)),
		Flags:        r.U32(offFlags),
		ParentIno:    types.NodeID(r.U32(offParentIno)),
		NameLen:      r.U32(offNameLen),
		DirLevel:     r.U8(offDirLevel),
		Extent: types.Extent{
			FileOffset: r.U32(offExtent),
			BlockAddr:  types.BlockAddr(r.U32(offExtent + 4)),
			Len:        r.U32(offExtent + 8),
		},
		Raw: block,
	}
	r.Copy(in.NameRaw[:], offName)

	if in.HasInline(types.ExtraAttr) {
		in.ExtraISize = r.U16(offExtraISize)
		in.InlineXattrSize = r.U16(offInlineXattrSize)
		in.ProjectID = r.U32(offProjectID)
		in.InodeChecksum = r.U32(offInodeChecksum)
		in.Crtime = r.U64(offCrtime)
		in.CrtimeNsec = r.U32(offCrtimeNsec)

		if in.ExtraISize%4 != 0 || int(in.ExtraISize)/4 >= types.DefAddrsPerInode {
			return nil, fmt.Errorf("%w: extra isize %d", types.ErrCorrupted, in.ExtraISize)
		}
	}

	for i := range in.Addrs {
		in.Addrs[i] = types.BlockAddr(r.U32(offAddrs + i*4))
	}
	for i := range in.NIDs {
		in.NIDs[i] = types.NodeID(r.U32(offNIDs + i*4))
	}

	in.Footer, err = ParseFooter(block)
	if err != nil {
		return nil, err
	}

	return in, nil
}
