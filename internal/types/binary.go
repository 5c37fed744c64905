package types

import (
	"encoding/binary"
	"fmt"
)

// FieldReader reads fixed-width little-endian fields out of a byte slice
// whose length has been validated against the record size up front.
type FieldReader struct {
	data []byte
}

// NewFieldReader returns a reader over data after checking that it holds at
// least size bytes.
func NewFieldReader(data []byte, size int) (*FieldReader, error) {
	if len(data) < size {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, size, len(data))
	}
	return &FieldReader{data: data}, nil
}

// Len returns the number of readable bytes.
func (r *FieldReader) Len() int {
	return len(r.data)
}

// U8 reads the byte at off.
func (r *FieldReader) U8(off int) uint8 {
	return r.data[off]
}

// U16 reads a little-endian uint16 at off.
func (r *FieldReader) U16(off int) uint16 {
	return binary.LittleEndian.Uint16(r.data[off : off+2])
}

// U32 reads a little-endian uint32 at off.
func (r *FieldReader) U32(off int) uint32 {
	return binary.LittleEndian.Uint32(r.data[off : off+4])
}

// U64 reads a little-endian uint64 at off.
func (r *FieldReader) U64(off int) uint64 {
	return binary.LittleEndian.Uint64(r.data[off : off+8])
}

// Copy copies len(dst) bytes starting at off into dst.
func (r *FieldReader) Copy(dst []byte, off int) {
	copy(dst, r.data[off:off+len(dst)])
}

// Slice returns the n bytes at off without copying. Unlike the fixed-width
// readers it checks bounds, since callers compute off and n from on-disk
// values.
func (r *FieldReader) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return nil, fmt.Errorf("%w: range [%d, %d) outside %d-byte record", ErrCorrupted, off, off+n, len(r.data))
	}
	return r.data[off : off+n], nil
}
