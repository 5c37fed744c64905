package services

import (
	"errors"
	"fmt"
	"io"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/parsers/dentry"
	"github.com/chenyuwen/myf2fs/internal/parsers/node"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// DirIterator walks the entries of a directory, loading the inode of each.
//
// The iterator owns the handle returned by Next and releases it on the
// following Next or on Close; callers that keep a child past that point
// must Clone it. Next returns io.EOF once at the end and
// ErrIteratorExhausted after that.
type DirIterator struct {
	fs  *Filesystem
	dir *Inode

	source dentry.EntrySource
	block  *interfaces.Block // backing dentry block; nil for inline dirs
	pos    int

	// Data block bookkeeping for block-resident directories.
	inline     bool
	blockIndex int
	dataBlocks int

	current *Inode
	entry   types.DirEntry
	ended   bool
	closed  bool
}

// OpenDir starts iterating dir. dir stays owned by the caller; the iterator
// keeps its own clone.
func (fs *Filesystem) OpenDir(dir *Inode) (*DirIterator, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	in, err := dir.Node()
	if err != nil {
		return nil, err
	}
	if !in.IsDir() {
		return nil, fmt.Errorf("%w: nid %d has mode %06o", types.ErrNotADirectory, dir.NID(), in.Mode)
	}

	clone, err := dir.Clone()
	if err != nil {
		return nil, err
	}

	it := &DirIterator{fs: fs, dir: clone, blockIndex: -1}

	if in.HasInline(types.InlineDentry) {
		err = it.openInline(in)
	} else {
		err = it.openBlocks(in)
	}
	if err != nil {
		it.Close()
		return nil, err
	}

	return it, nil
}

func (it *DirIterator) openInline(in *types.Inode) error {
	layout, err := node.InlineLayout(it.fs.sb, in)
	if err != nil {
		return err
	}
	area, err := layout.Data(in)
	if err != nil {
		return err
	}
	it.source, err = dentry.InlineSource(area)
	if err != nil {
		return err
	}
	it.inline = true
	it.pos = types.DotSlots
	return nil
}

func (it *DirIterator) openBlocks(in *types.Inode) error {
	it.dataBlocks = int(types.AlignUp(in.Size))

	// Only direct pointers held in the inode are walked.
	direct := types.DefAddrsPerInode - in.ExtraAddrs() - node.InlineXattrAddrs(it.fs.sb, in)
	if it.dataBlocks > direct {
		it.fs.log.WithField("nid", it.dir.NID()).
			Warnf("directory spans %d blocks, reading the first %d", it.dataBlocks, direct)
		it.dataBlocks = direct
	}

	err := it.nextBlock()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// nextBlock moves to the next allocated data block, skipping holes. It
// returns io.EOF when no block is left.
func (it *DirIterator) nextBlock() error {
	if it.block != nil {
		it.block.Release()
		it.block = nil
	}
	it.source = nil

	in, err := it.dir.Node()
	if err != nil {
		return err
	}

	for it.blockIndex++; it.blockIndex < it.dataBlocks; it.blockIndex++ {
		addr := in.DataBlockAddr(it.blockIndex)
		if !addr.IsValid() {
			continue
		}

		block, err := it.fs.dev.ReadBlock(addr)
		if err != nil {
			return fmt.Errorf("failed to read dentry block %d of nid %d: %w", it.blockIndex, it.dir.NID(), err)
		}
		source, err := dentry.BlockSource(block.Data)
		if err != nil {
			block.Release()
			return err
		}

		it.block = block
		it.source = source
		it.pos = 0
		if it.blockIndex == 0 {
			it.pos = types.DotSlots
		}
		return nil
	}

	return io.EOF
}

// Next loads the inode of the next entry
func (it *DirIterator) Next() (*Inode, error) {
	if it.closed || it.ended {
		return nil, types.ErrIteratorExhausted
	}
	if err := it.fs.checkMounted(); err != nil {
		return nil, err
	}

	for {
		if it.source != nil {
			child, err := it.scan()
			if child != nil || err != nil {
				return child, err
			}
		}

		if it.inline {
			return it.end()
		}
		if err := it.nextBlock(); err != nil {
			if errors.Is(err, io.EOF) {
				return it.end()
			}
			return nil, err
		}
	}
}

// scan looks for the next used slot in the current source. It returns nil,
// nil when the source is exhausted.
func (it *DirIterator) scan() (*Inode, error) {
	for it.pos < it.source.Capacity() {
		if !it.source.TestBit(it.pos) {
			it.pos++
			continue
		}

		d, err := it.source.Entry(it.pos)
		if err != nil {
			it.pos++
			return nil, err
		}
		if d.NameLen == 0 {
			it.pos++
			continue
		}
		it.pos += d.Slots()

		child, err := it.fs.LoadInode(d.Ino)
		if err != nil {
			return nil, fmt.Errorf("failed to load entry %q: %w", d.Name, err)
		}

		if it.current != nil {
			it.current.Release()
		}
		it.current = child
		it.entry = d
		return child, nil
	}
	return nil, nil
}

func (it *DirIterator) end() (*Inode, error) {
	it.ended = true
	return nil, io.EOF
}

// Entry returns the directory entry of the handle last returned by Next
func (it *DirIterator) Entry() types.DirEntry {
	return it.entry
}

// Current returns the handle last returned by Next, or nil
func (it *DirIterator) Current() *Inode {
	return it.current
}

// Close releases the current entry, the backing dentry block and the
// iterator's reference on the directory. Closing twice is a no-op.
func (it *DirIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	var errs []error
	if it.current != nil {
		errs = append(errs, it.current.Release())
		it.current = nil
	}
	if it.block != nil {
		errs = append(errs, it.block.Release())
		it.block = nil
	}
	it.source = nil
	errs = append(errs, it.dir.Release())

	return errors.Join(errs...)
}
