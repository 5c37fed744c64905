package checksum

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Seed is the register value mkfs.f2fs starts from instead of all-ones.
const Seed = types.SuperMagic

// CRC32 computes the metadata checksum of data: the standard reflected
// IEEE CRC-32, seeded with all-ones and finalized by XOR with all-ones.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// SeededCRC32 is CRC32 with the register seeded to Seed. Both forms are
// accepted when verifying a stored checksum.
func SeededCRC32(data []byte) uint32 {
	return crc32.Update(^Seed, crc32.IEEETable, data)
}

// ChecksumInspector verifies a CRC stored inside the record it covers
type ChecksumInspector struct {
	Payload []byte // raw record, including the stored checksum
	Offset  uint32 // byte offset of the stored checksum; covers [0, Offset)
}

// NewChecksumInspector returns an inspector for the checksum stored at
// offset within payload
func NewChecksumInspector(payload []byte, offset uint32) *ChecksumInspector {
	return &ChecksumInspector{Payload: payload, Offset: offset}
}

// Stored returns the checksum recorded in the payload
func (c *ChecksumInspector) Stored() (uint32, error) {
	if uint64(c.Offset)+4 > uint64(len(c.Payload)) {
		return 0, fmt.Errorf("%w: checksum offset %d outside %d-byte record", types.ErrCorrupted, c.Offset, len(c.Payload))
	}
	return binary.LittleEndian.Uint32(c.Payload[c.Offset : c.Offset+4]), nil
}

// Calculated returns the checksum computed over the covered bytes
func (c *ChecksumInspector) Calculated() uint32 {
	return CRC32(c.covered())
}

func (c *ChecksumInspector) covered() []byte {
	end := int(c.Offset)
	if end > len(c.Payload) {
		end = len(c.Payload)
	}
	return c.Payload[:end]
}

// VerifyChecksum returns nil when the stored and computed checksums agree
func (c *ChecksumInspector) VerifyChecksum() error {
	stored, err := c.Stored()
	if err != nil {
		return err
	}
	calculated := c.Calculated()
	if calculated != stored && SeededCRC32(c.covered()) != stored {
		return fmt.Errorf("%w: stored 0x%08X, calculated 0x%08X", types.ErrChecksumMismatch, stored, calculated)
	}
	return nil
}
