package services

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// WalkFunc is called by Walk for every entry below the starting directory.
// Returning ErrSkipDir from a directory entry skips its contents.
type WalkFunc func(node *FileNode) error

// ErrSkipDir tells Walk not to descend into the directory just visited
var ErrSkipDir = errors.New("skip this directory")

// Lookup resolves an absolute or root-relative path to an inode handle.
// The caller owns the returned handle.
func (fs *Filesystem) Lookup(p string) (*Inode, error) {
	cur, err := fs.Root()
	if err != nil {
		return nil, err
	}

	for _, name := range splitPath(p) {
		next, err := fs.lookupChild(cur, name)
		cur.Release()
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", p, err)
		}
		cur = next
	}

	return cur, nil
}

// lookupChild finds name in dir and returns a handle on it
func (fs *Filesystem) lookupChild(dir *Inode, name string) (*Inode, error) {
	if name == ".." {
		in, err := dir.Node()
		if err != nil {
			return nil, err
		}
		if dir.NID() == fs.sb.RootIno {
			return dir.Clone()
		}
		return fs.LoadInode(in.ParentIno)
	}

	it, err := fs.OpenDir(dir)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		child, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", types.ErrNotFound, name)
		}
		if err != nil {
			return nil, err
		}
		if it.Entry().Name == name {
			return child.Clone()
		}
	}
}

// ReadDir lists dir. Entries whose inode cannot be loaded abort the listing.
func (fs *Filesystem) ReadDir(dir *Inode) ([]*FileNode, error) {
	it, err := fs.OpenDir(dir)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var nodes []*FileNode
	for {
		child, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nodes, nil
		}
		if err != nil {
			return nodes, err
		}

		fn, err := newFileNode(child, it.Entry().Name)
		if err != nil {
			return nodes, err
		}
		fn.FileType = it.Entry().FileType
		nodes = append(nodes, fn)
	}
}

// Stat describes the inode at path
func (fs *Filesystem) Stat(p string) (*FileNode, error) {
	h, err := fs.Lookup(p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fn, err := newFileNode(h, path.Base("/"+strings.Trim(p, "/")))
	if err != nil {
		return nil, err
	}
	fn.Path = cleanPath(p)
	return fn, nil
}

// Walk visits every entry below the directory at p, depth first, in on-disk
// order. Directories already visited are not entered again.
func (fs *Filesystem) Walk(p string, fn WalkFunc) error {
	dir, err := fs.Lookup(p)
	if err != nil {
		return err
	}
	defer dir.Release()

	visited := map[types.NodeID]bool{dir.NID(): true}
	return fs.walk(dir, cleanPath(p), fn, visited)
}

func (fs *Filesystem) walk(dir *Inode, dirPath string, fn WalkFunc, visited map[types.NodeID]bool) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		entry.Path = path.Join(dirPath, entry.Name)
		err := fn(entry)
		if errors.Is(err, ErrSkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if !entry.IsDirectory || visited[entry.Inode] {
			continue
		}
		visited[entry.Inode] = true

		child, err := fs.LoadInode(entry.Inode)
		if err != nil {
			return err
		}
		err = fs.walk(child, entry.Path, fn, visited)
		child.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func newFileNode(h *Inode, name string) (*FileNode, error) {
	in, err := h.Node()
	if err != nil {
		return nil, err
	}

	return &FileNode{
		Inode:         h.NID(),
		Name:          name,
		FileType:      fileTypeFromMode(in.FileType()),
		Mode:          in.Mode,
		Size:          in.Size,
		Blocks:        in.Blocks,
		ModifiedTime:  time.Unix(int64(in.Mtime), int64(in.MtimeNsec)).UTC(),
		ChangedTime:   time.Unix(int64(in.Ctime), int64(in.CtimeNsec)).UTC(),
		AccessedTime:  time.Unix(int64(in.Atime), int64(in.AtimeNsec)).UTC(),
		UID:           in.UID,
		GID:           in.GID,
		IsDirectory:   in.IsDir(),
		IsSymlink:     in.IsSymlink(),
		ParentInode:   in.ParentIno,
		HardLinkCount: in.Links,
		InlineFlags:   in.Inline,
		NodeBlock:     h.NATEntry().BlockAddr,
	}, nil
}

func fileTypeFromMode(mode uint16) types.FileType {
	switch mode {
	case types.ModeRegular:
		return types.FileTypeRegular
	case types.ModeDirectory:
		return types.FileTypeDir
	case types.ModeCharDev:
		return types.FileTypeChrdev
	case types.ModeBlockDev:
		return types.FileTypeBlkdev
	case types.ModeFIFO:
		return types.FileTypeFIFO
	case types.ModeSocket:
		return types.FileTypeSock
	case types.ModeSymlink:
		return types.FileTypeSymlink
	}
	return types.FileTypeUnknown
}

func splitPath(p string) []string {
	var names []string
	for _, name := range strings.Split(p, "/") {
		if name == "" || name == "." {
			continue
		}
		names = append(names, name)
	}
	return names
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}
