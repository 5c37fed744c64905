package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/parsers/nat"
	"github.com/chenyuwen/myf2fs/internal/parsers/node"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// ResolveNAT reports where the NAT entry for nid lives and what it holds
func (fs *Filesystem) ResolveNAT(nid types.NodeID) (*NATLocation, error) {
	loc, block, err := fs.readNAT(nid)
	if err != nil {
		return nil, err
	}
	if err := block.Release(); err != nil {
		return nil, err
	}
	return loc, nil
}

func (fs *Filesystem) readNAT(nid types.NodeID) (*NATLocation, *interfaces.Block, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, nil, err
	}
	addr, err := fs.geometry.BlockAddr(nid, fs.versions)
	if err != nil {
		return nil, nil, err
	}

	block, err := fs.dev.ReadBlock(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read NAT block for nid %d: %w", nid, err)
	}

	bi, slot := fs.geometry.BlockIndex(nid)
	entry, err := nat.ParseEntry(block.Data, slot)
	if err != nil {
		block.Release()
		return nil, nil, err
	}

	return &NATLocation{
		NID:          nid,
		NATBlock:     bi,
		NATSlot:      slot,
		NATBlockAddr: addr,
		UseAlternate: fs.versions.UseAlternate(bi),
		Entry:        entry,
	}, block, nil
}

// LoadInode resolves nid through the NAT and loads its inode. The returned
// handle holds the node block and the NAT block until its last clone is
// released.
func (fs *Filesystem) LoadInode(nid types.NodeID) (*Inode, error) {
	loc, natBlock, err := fs.readNAT(nid)
	if err != nil {
		return nil, err
	}

	if !loc.Entry.BlockAddr.IsValid() {
		natBlock.Release()
		return nil, fmt.Errorf("%w: nid %d has no node block (0x%08X)", types.ErrInvalidInode, nid, loc.Entry.BlockAddr)
	}

	nodeBlock, err := fs.dev.ReadBlock(loc.Entry.BlockAddr)
	if err != nil {
		natBlock.Release()
		return nil, fmt.Errorf("failed to read node block for nid %d: %w", nid, err)
	}

	in, err := fs.parseInode(nid, nodeBlock)
	if err != nil {
		nodeBlock.Release()
		natBlock.Release()
		return nil, err
	}

	fs.log.WithFields(logrus.Fields{
		"nid":   nid,
		"block": loc.Entry.BlockAddr,
		"mode":  fmt.Sprintf("%06o", in.Mode),
	}).Trace("inode loaded")

	return newInode(nid, in, loc.Entry, nodeBlock, natBlock), nil
}

func (fs *Filesystem) parseInode(nid types.NodeID, block *interfaces.Block) (*types.Inode, error) {
	in, err := node.ParseInode(block.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inode %d: %w", nid, err)
	}

	if fs.checkFooter && (in.Footer.NID != nid || !in.Footer.IsInode()) {
		return nil, fmt.Errorf("%w: block %d footer nid %d ino %d, want %d",
			types.ErrInvalidInode, block.Address, in.Footer.NID, in.Footer.Ino, nid)
	}

	return in, nil
}
