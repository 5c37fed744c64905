package services

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/parsers/checkpoint"
	"github.com/chenyuwen/myf2fs/internal/parsers/nat"
	"github.com/chenyuwen/myf2fs/internal/parsers/superblock"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// MountOptions configures Mount
type MountOptions struct {
	// Logger receives mount diagnostics; the standard logger when nil
	Logger *logrus.Entry

	// SkipFooterCheck disables the node footer sanity check in LoadInode
	SkipFooterCheck bool
}

// Filesystem is a mounted, read-only view of an F2FS image. It holds the
// validated superblock and checkpoint and the NAT version state derived
// from them; all of it is immutable until Unmount.
type Filesystem struct {
	dev         interfaces.BlockDeviceReader
	sb          *types.Superblock
	cp          *types.Checkpoint
	geometry    nat.Geometry
	versions    *nat.VersionBitmap
	natBits     *nat.NATBits
	checkFooter bool
	log         *logrus.Entry
	unmounted   atomic.Bool
}

// Mount validates the superblock, resolves the current checkpoint and builds
// the NAT version state
func Mount(dev interfaces.BlockDeviceReader, opts MountOptions) (*Filesystem, error) {
	if dev == nil {
		return nil, fmt.Errorf("block device cannot be nil")
	}
	if dev.BlockSize() != types.BlockSize {
		return nil, fmt.Errorf("unsupported device block size %d", dev.BlockSize())
	}

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	// Superblock
	sb, err := superblock.Load(dev, log)
	if err != nil {
		return nil, err
	}

	// Checkpoint
	cp, err := checkpoint.Load(dev, sb, log)
	if err != nil {
		return nil, err
	}

	// NAT version state
	versions, err := nat.BuildVersionBitmap(sb, cp)
	if err != nil {
		return nil, fmt.Errorf("failed to build NAT version bitmap: %w", err)
	}

	natBits, err := nat.BuildNATBits(dev, sb, cp)
	if err != nil {
		return nil, fmt.Errorf("failed to build NAT bitmap: %w", err)
	}

	fs := &Filesystem{
		dev:         dev,
		sb:          sb,
		cp:          cp,
		geometry:    nat.NewGeometry(sb),
		versions:    versions,
		natBits:     natBits,
		checkFooter: !opts.SkipFooterCheck,
		log:         log.WithField("component", "filesystem"),
	}

	fs.log.WithFields(logrus.Fields{
		"superblock_copy": sb.Copy,
		"checkpoint_pack": cp.PackIndex,
		"checkpoint_ver":  cp.Version,
		"nat_blocks":      fs.geometry.Blocks,
		"nat_bits_valid":  natBits.Valid,
	}).Debug("filesystem mounted")

	return fs, nil
}

// Unmount ends the mount. Inode handles still held by the caller stay
// usable until released; every later filesystem call, including Next on an
// open iterator, fails with ErrUnmounted.
func (fs *Filesystem) Unmount() {
	fs.unmounted.Store(true)
}

func (fs *Filesystem) checkMounted() error {
	if fs.unmounted.Load() {
		return types.ErrUnmounted
	}
	return nil
}

// Superblock returns the validated superblock, or nil after Unmount
func (fs *Filesystem) Superblock() *types.Superblock {
	if fs.unmounted.Load() {
		return nil
	}
	return fs.sb
}

// Checkpoint returns the current checkpoint, or nil after Unmount
func (fs *Filesystem) Checkpoint() *types.Checkpoint {
	if fs.unmounted.Load() {
		return nil
	}
	return fs.cp
}

// NATGeometry returns the NAT layout
func (fs *Filesystem) NATGeometry() nat.Geometry {
	return fs.geometry
}

// VersionBitmap returns the NAT version bitmap
func (fs *Filesystem) VersionBitmap() *nat.VersionBitmap {
	return fs.versions
}

// NATBits returns the nat_bits summary of the current checkpoint pack
func (fs *Filesystem) NATBits() *nat.NATBits {
	return fs.natBits
}

// Root loads the root directory inode
func (fs *Filesystem) Root() (*Inode, error) {
	return fs.LoadInode(fs.sb.RootIno)
}

// Info summarises the mounted filesystem
func (fs *Filesystem) Info() (*FilesystemInfo, error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}
	sb, cp := fs.sb, fs.cp
	full, empty := fs.natBits.Counts()

	return &FilesystemInfo{
		UUID:             sb.VolumeUUID(),
		VolumeName:       sb.VolumeName(),
		Version:          fmt.Sprintf("%d.%d", sb.MajorVer, sb.MinorVer),
		KernelVersion:    sb.KernelVersion(),
		SuperblockCopy:   sb.Copy,
		Features:         sb.Feature.Names(),
		BlockCount:       sb.BlockCount,
		BlocksPerSegment: sb.BlocksPerSeg(),
		SegmentCount:     sb.SegmentCount,
		RootIno:          sb.RootIno,

		CheckpointPack:    cp.PackIndex,
		CheckpointVersion: cp.Version,
		CheckpointFlags:   cp.Flags.Names(),
		ValidBlockCount:   cp.ValidBlockCount,
		UserBlockCount:    cp.UserBlockCount,
		ValidNodeCount:    cp.ValidNodeCount,
		ValidInodeCount:   cp.ValidInodeCount,
		FreeSegmentCount:  cp.FreeSegmentCount,

		NATBlocks:          fs.geometry.Blocks,
		NATAlternateBlocks: fs.versions.SetCount(),
		NATBitsValid:       fs.natBits.Valid,
		NATFullBlocks:      full,
		NATEmptyBlocks:     empty,
	}, nil
}
