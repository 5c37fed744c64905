package services

import "github.com/chenyuwen/myf2fs/internal/types"

// FileSystemService provides high-level filesystem operations
type FileSystemService interface {
	Root() (*Inode, error)
	LoadInode(nid types.NodeID) (*Inode, error)
	OpenDir(dir *Inode) (*DirIterator, error)
	Lookup(path string) (*Inode, error)
	ReadDir(dir *Inode) ([]*FileNode, error)
	Stat(path string) (*FileNode, error)
	Walk(path string, fn WalkFunc) error
	ResolveNAT(nid types.NodeID) (*NATLocation, error)
	Info() (*FilesystemInfo, error)
}

var _ FileSystemService = (*Filesystem)(nil)
