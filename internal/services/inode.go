package services

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// inodeState is the loaded inode shared by every handle cloned from the
// same LoadInode call. It owns the node block and the NAT block that
// resolved it.
type inodeState struct {
	// refs is the number of live handles.
	refs atomic.Int32

	nid       types.NodeID
	node      *types.Inode
	natEntry  types.NATEntry
	nodeBlock *interfaces.Block
	natBlock  *interfaces.Block
}

func (s *inodeState) incRef() {
	s.refs.Add(1)
}

// decRef drops one reference and releases both blocks on the last one.
func (s *inodeState) decRef() error {
	refs := s.refs.Add(-1)
	switch {
	case refs < 0:
		panic(fmt.Sprintf("inode %d: reference count underflow", s.nid))
	case refs > 0:
		return nil
	}

	s.node = nil
	return errors.Join(s.nodeBlock.Release(), s.natBlock.Release())
}

// Inode is a handle on a loaded inode. Each handle is owned by one holder,
// who must Release it exactly once. Clone yields an independent handle on
// the same inode; the underlying blocks are released with the last handle.
type Inode struct {
	state    *inodeState
	released atomic.Bool
}

func newInode(nid types.NodeID, node *types.Inode, entry types.NATEntry, nodeBlock, natBlock *interfaces.Block) *Inode {
	s := &inodeState{
		nid:       nid,
		node:      node,
		natEntry:  entry,
		nodeBlock: nodeBlock,
		natBlock:  natBlock,
	}
	s.refs.Store(1)
	return &Inode{state: s}
}

// Valid reports whether the handle may be dereferenced
func (h *Inode) Valid() bool {
	return h != nil && h.state != nil && !h.released.Load()
}

// Clone returns a new handle on the same inode
func (h *Inode) Clone() (*Inode, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: clone of released handle", types.ErrInvalidInode)
	}
	h.state.incRef()
	return &Inode{state: h.state}, nil
}

// Release gives up this handle. Releasing a handle twice returns
// ErrInvalidInode.
func (h *Inode) Release() error {
	if h == nil || h.state == nil || !h.released.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: handle already released", types.ErrInvalidInode)
	}
	return h.state.decRef()
}

// Node returns the parsed inode record
func (h *Inode) Node() (*types.Inode, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: use of released handle", types.ErrInvalidInode)
	}
	return h.state.node, nil
}

// NID returns the node id the handle was loaded for
func (h *Inode) NID() types.NodeID {
	if h == nil || h.state == nil {
		return 0
	}
	return h.state.nid
}

// NATEntry returns the NAT entry that resolved the inode
func (h *Inode) NATEntry() types.NATEntry {
	if h == nil || h.state == nil {
		return types.NATEntry{}
	}
	return h.state.natEntry
}

// RefCount returns the number of live handles on the inode
func (h *Inode) RefCount() int32 {
	if h == nil || h.state == nil {
		return 0
	}
	return h.state.refs.Load()
}
