package nat

import (
	"encoding/binary"
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// NATBits holds the nat_bits area stored at the end of the checkpoint
// segment: a header word followed by the full and empty NAT block bitmaps.
// The bitmaps are only trustworthy when Valid is set.
type NATBits struct {
	// Valid is true when the checkpoint carries CPNatBitsFlag, both bitmaps
	// fit in the area and the header matches the checkpoint version and
	// checksum.
	Valid bool

	// Start is the first block of the area and Blocks its length.
	Start  types.BlockAddr
	Blocks uint32

	// Header is the stored cp_ver | crc<<32 word.
	Header uint64

	area  []byte
	full  []byte
	empty []byte
}

// Layout returns where the nat_bits area of a checkpoint pack lives and how
// large it is. The area holds align_up(bitmapBytes/2 + 8) bytes and ends
// with the segment holding the pack.
func Layout(sb *types.Superblock, cp *types.Checkpoint) (start types.BlockAddr, blocks uint32, bitmapBytes uint32, err error) {
	natBlocks := (sb.SegmentCountNAT / 2) << sb.LogBlocksPerSeg
	bitmapBytes = natBlocks / types.BitsPerByte
	blocks = uint32(types.AlignUp(uint64(bitmapBytes)/2 + types.NATBitsHeaderSize))

	if blocks >= sb.BlocksPerSeg() {
		return 0, 0, 0, fmt.Errorf("%w: nat_bits area of %d blocks in a %d-block segment",
			types.ErrCorrupted, blocks, sb.BlocksPerSeg())
	}
	start = cp.PackStart + types.BlockAddr(sb.BlocksPerSeg()-blocks)
	return start, blocks, bitmapBytes, nil
}

// BuildNATBits reads the nat_bits area of the current checkpoint pack into
// an owned buffer. A header mismatch is not an error; the result is
// returned with Valid unset.
func BuildNATBits(dev interfaces.BlockDeviceReader, sb *types.Superblock, cp *types.Checkpoint) (*NATBits, error) {
	start, blocks, bitmapBytes, err := Layout(sb, cp)
	if err != nil {
		return nil, err
	}

	area, err := dev.ReadBlockRange(start, blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to read nat_bits: %w", err)
	}
	defer area.Release()

	data := append([]byte(nil), area.Data...)
	bits := &NATBits{
		Start:  start,
		Blocks: blocks,
		Header: binary.LittleEndian.Uint64(data[:types.NATBitsHeaderSize]),
		area:   data,
	}

	// Large NAT tables can outgrow the area; such bitmaps are not read.
	bitmapsFit := uint64(types.NATBitsHeaderSize)+2*uint64(bitmapBytes) <= uint64(len(data))
	if bitmapsFit {
		bits.full = data[types.NATBitsHeaderSize : types.NATBitsHeaderSize+bitmapBytes]
		bits.empty = data[types.NATBitsHeaderSize+bitmapBytes : types.NATBitsHeaderSize+2*bitmapBytes]
	}

	// The area must not overlap the pack itself.
	fits := cp.PackTotalBlockCount+blocks <= sb.BlocksPerSeg()
	want := cp.Version | uint64(cp.StoredChecksum())<<32
	bits.Valid = fits && bitmapsFit && cp.HasFlag(types.CPNatBitsFlag) && bits.Header == want

	return bits, nil
}

// Len returns the size of the area in bytes
func (n *NATBits) Len() int {
	return len(n.area)
}

// FullBlock reports whether every entry of NAT block i is in use.
func (n *NATBits) FullBlock(i uint32) bool {
	return n.Valid && testBitLSB(n.full, i)
}

// EmptyBlock reports whether no entry of NAT block i is in use.
func (n *NATBits) EmptyBlock(i uint32) bool {
	return n.Valid && testBitLSB(n.empty, i)
}

// Counts returns the number of full and empty NAT blocks, or zeros when the
// bits are not valid.
func (n *NATBits) Counts() (full, empty int) {
	if !n.Valid {
		return 0, 0
	}
	return popCount(n.full), popCount(n.empty)
}

// testBitLSB numbers bits from the least significant bit of each byte.
func testBitLSB(bits []byte, nr uint32) bool {
	i := nr / types.BitsPerByte
	if uint64(i) >= uint64(len(bits)) {
		return false
	}
	return bits[i]&(1<<(nr%types.BitsPerByte)) != 0
}
