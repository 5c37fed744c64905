// File: internal/interfaces/block_device.go
package interfaces

import (
	"errors"
	"io"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// ErrBlockReleased is returned when a block is released twice.
var ErrBlockReleased = errors.New("block already released")

// BlockDeviceReader provides methods for reading from block devices
type BlockDeviceReader interface {
	// ReadBlock reads a single block at the specified address
	ReadBlock(address types.BlockAddr) (*Block, error)

	// ReadBlockRange reads count consecutive blocks into one buffer
	ReadBlockRange(start types.BlockAddr, count uint32) (*Block, error)

	// BlockSize returns the size of a single block in bytes
	BlockSize() uint32

	// TotalBlocks returns the total number of blocks on the device
	TotalBlocks() uint64
}

// BlockDevice represents an open, read-only block device
type BlockDevice interface {
	BlockDeviceReader
	io.Closer
}

// Block is a buffer holding one or more consecutive blocks read from a
// device. The buffer is owned by whoever holds the Block and must be handed
// back with Release once no slice of Data is referenced any more.
type Block struct {
	// Address of the first block in the buffer
	Address types.BlockAddr

	// Count is the number of blocks held
	Count uint32

	// Data is the raw block contents, Count*BlockSize bytes
	Data []byte

	release func([]byte)
}

// NewBlock wraps data read at address. release is called with data exactly
// once, on the first Release.
func NewBlock(address types.BlockAddr, count uint32, data []byte, release func([]byte)) *Block {
	return &Block{Address: address, Count: count, Data: data, release: release}
}

// Release hands the buffer back to its allocator. A second Release returns
// ErrBlockReleased and does nothing.
func (b *Block) Release() error {
	if b.Data == nil {
		return ErrBlockReleased
	}
	data := b.Data
	b.Data = nil
	if b.release != nil {
		b.release(data)
	}
	return nil
}

// Released reports whether Release has been called.
func (b *Block) Released() bool {
	return b.Data == nil
}
