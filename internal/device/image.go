package device

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// Image provides read-only block access to an F2FS filesystem stored in a
// file, a block device or any io.ReaderAt
type Image struct {
	reader        io.ReaderAt
	closer        io.Closer
	size          int64
	offset        int64 // Offset of the filesystem within the image
	alloc         Allocator
	maxReadBlocks uint32
	metrics       *Metrics
	log           *logrus.Entry
}

// Options configures an Image built with NewImage
type Options struct {
	// Offset is the byte offset of the filesystem within the reader
	Offset int64

	// Allocator provides block buffers; HeapAllocator when nil
	Allocator Allocator

	// MaxReadBlocks caps ReadBlockRange; DefaultMaxReadBlocks when zero
	MaxReadBlocks uint32

	// Metrics receives read statistics when non-nil
	Metrics *Metrics

	// Logger receives debug output; the standard logger when nil
	Logger *logrus.Entry
}

var _ interfaces.BlockDevice = (*Image)(nil)

// NewImage wraps r, which holds size bytes, as a block device
func NewImage(r io.ReaderAt, size int64, opts Options) *Image {
	img := &Image{
		reader:        r,
		size:          size,
		offset:        opts.Offset,
		alloc:         opts.Allocator,
		maxReadBlocks: opts.MaxReadBlocks,
		metrics:       opts.Metrics,
		log:           opts.Logger,
	}
	if img.alloc == nil {
		img.alloc = HeapAllocator{}
	}
	if img.maxReadBlocks == 0 {
		img.maxReadBlocks = DefaultMaxReadBlocks
	}
	if img.log == nil {
		img.log = logrus.NewEntry(logrus.StandardLogger())
	}
	img.log = img.log.WithField("component", "device")
	if c, ok := r.(io.Closer); ok {
		img.closer = c
	}
	return img
}

// Open opens an image file or block device and locates the filesystem
// within it
func Open(path string, config *Config, metrics *Metrics, log *logrus.Entry) (*Image, error) {
	if config == nil {
		config = DefaultConfig()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image: %v", types.ErrIO, err)
	}

	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: failed to size image: %v", types.ErrIO, err)
	}

	var alloc Allocator = HeapAllocator{}
	if config.BufferPool {
		alloc = NewPoolAllocator()
	}

	img := NewImage(file, size, Options{
		Offset:        config.PartitionOffset,
		Allocator:     alloc,
		MaxReadBlocks: config.MaxReadBlocks,
		Metrics:       metrics,
		Logger:        log,
	})

	if config.AutoDetectOffset {
		startTime := time.Now()
		offset, method, err := img.detectOffset()
		if err != nil {
			img.log.WithError(err).WithField("offset", config.PartitionOffset).Debug("using configured offset")
		} else {
			img.offset = offset
			img.log.WithFields(logrus.Fields{
				"offset":   offset,
				"method":   method,
				"duration": time.Since(startTime),
			}).Debug("filesystem located")
		}
	}

	return img, nil
}

// ReadBlock reads a single block at the specified address
func (img *Image) ReadBlock(address types.BlockAddr) (*interfaces.Block, error) {
	return img.read(address, 1, "block")
}

// ReadBlockRange reads count consecutive blocks into one buffer
func (img *Image) ReadBlockRange(start types.BlockAddr, count uint32) (*interfaces.Block, error) {
	if count == 0 || count > img.maxReadBlocks {
		return nil, fmt.Errorf("%w: range of %d blocks at %d", types.ErrAllocationFailure, count, start)
	}
	return img.read(start, count, "range")
}

func (img *Image) read(start types.BlockAddr, count uint32, kind string) (*interfaces.Block, error) {
	startTime := time.Now()
	length := int(count) * types.BlockSize

	if uint64(start)+uint64(count) > img.TotalBlocks() {
		img.observeError()
		return nil, fmt.Errorf("%w: blocks [%d, %d) beyond end of image (%d blocks)",
			types.ErrIO, start, uint64(start)+uint64(count), img.TotalBlocks())
	}

	buf, err := img.alloc.Alloc(length)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes for block %d: %v", types.ErrAllocationFailure, length, start, err)
	}

	off := img.offset + int64(start)*types.BlockSize
	n, err := img.reader.ReadAt(buf, off)
	if n < length {
		img.alloc.Free(buf)
		img.observeError()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: read block %d: %v", types.ErrIO, start, err)
	}

	if img.metrics != nil {
		img.metrics.BlocksRead.Add(float64(count))
		img.metrics.BytesRead.Add(float64(n))
		img.metrics.ReadDuration.Observe(time.Since(startTime).Seconds())
		img.metrics.ReadOperations.WithLabelValues(kind).Inc()
		img.metrics.BuffersInUse.Inc()
	}

	return interfaces.NewBlock(start, count, buf, img.free), nil
}

func (img *Image) free(buf []byte) {
	if img.metrics != nil {
		img.metrics.BuffersInUse.Dec()
	}
	img.alloc.Free(buf)
}

func (img *Image) observeError() {
	if img.metrics != nil {
		img.metrics.ReadErrors.Inc()
	}
}

// BlockSize returns the block size, always 4096 for F2FS
func (img *Image) BlockSize() uint32 {
	return types.BlockSize
}

// TotalBlocks returns the number of whole blocks after the filesystem offset
func (img *Image) TotalBlocks() uint64 {
	if img.size <= img.offset {
		return 0
	}
	return uint64(img.size-img.offset) / types.BlockSize
}

// Offset returns the byte offset of the filesystem within the image
func (img *Image) Offset() int64 {
	return img.offset
}

// Close closes the underlying file
func (img *Image) Close() error {
	if img.closer != nil {
		return img.closer.Close()
	}
	return nil
}

// hasSuperMagic reports whether an F2FS superblock magic sits at the given
// filesystem start, in either superblock copy
func (img *Image) hasSuperMagic(start int64) bool {
	var magic [4]byte
	for copyIdx := int64(0); copyIdx < types.SuperblockCopies; copyIdx++ {
		off := start + copyIdx*types.BlockSize + types.SuperOffset
		if _, err := img.reader.ReadAt(magic[:], off); err != nil {
			continue
		}
		if binary.LittleEndian.Uint32(magic[:]) == types.SuperMagic {
			return true
		}
	}
	return false
}
