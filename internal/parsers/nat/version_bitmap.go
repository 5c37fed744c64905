package nat

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// largeNATBitmapHeader is the size of the crc word that precedes the NAT
// version bitmap when the checkpoint carries CPLargeNatBitmapFlag.
const largeNATBitmapHeader = 4

// VersionBitmap selects, for every NAT block, which of its two on-disk
// copies is current. It is a view into the checkpoint payload.
type VersionBitmap struct {
	bits []byte
}

// NewVersionBitmap wraps raw bitmap bytes.
func NewVersionBitmap(bits []byte) *VersionBitmap {
	return &VersionBitmap{bits: bits}
}

// BuildVersionBitmap locates the NAT version bitmap inside the checkpoint
// payload.
func BuildVersionBitmap(sb *types.Superblock, cp *types.Checkpoint) (*VersionBitmap, error) {
	var start uint64
	switch {
	case cp.HasFlag(types.CPLargeNatBitmapFlag):
		start = types.CPVersionBitmapOffset + largeNATBitmapHeader
	case sb.CPPayload == 0:
		// SIT bitmap first, NAT bitmap right after it.
		start = types.CPVersionBitmapOffset + uint64(cp.SITVerBitmapBytesize)
	default:
		// The SIT bitmap moved to the payload blocks.
		start = types.CPVersionBitmapOffset
	}

	end := start + uint64(cp.NATVerBitmapBytesize)
	if end > uint64(len(cp.Payload)) {
		return nil, fmt.Errorf("%w: NAT version bitmap [%d, %d) outside %d-byte checkpoint payload",
			types.ErrCorrupted, start, end, len(cp.Payload))
	}

	return &VersionBitmap{bits: cp.Payload[start:end]}, nil
}

// Len returns the number of NAT blocks the bitmap covers.
func (b *VersionBitmap) Len() uint32 {
	return uint32(len(b.bits)) * types.BitsPerByte
}

// UseAlternate reports whether the current copy of NAT block blockIndex is
// the one in the second segment of its pair. Bit i is bits[i/8] & (1 << i%8).
// Indexes past the bitmap read as unset.
func (b *VersionBitmap) UseAlternate(blockIndex uint32) bool {
	return testBitLSB(b.bits, blockIndex)
}

// SetCount returns the number of NAT blocks whose alternate copy is current.
func (b *VersionBitmap) SetCount() int {
	return popCount(b.bits)
}

func popCount(bits []byte) int {
	n := 0
	for _, b := range bits {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
