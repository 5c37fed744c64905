package types

import "encoding/binary"

// Checkpoint Objects
// A checkpoint pack starts with a checkpoint block, optionally followed by
// cp_payload blocks holding an oversized SIT version bitmap, then orphan and
// summary blocks, and ends with a copy of the checkpoint block. Two packs
// exist, one segment apart.

const (
	// MaxActiveLogs is the number of log heads the on-disk layout reserves.
	MaxActiveLogs = 16

	// MaxActiveNodeLogs is the number of node log heads.
	MaxActiveNodeLogs = 8

	// MaxActiveDataLogs is the number of data log heads.
	MaxActiveDataLogs = 8

	// CheckpointPacks is the number of redundant checkpoint packs.
	CheckpointPacks = 2

	// CPVersionBitmapOffset is the byte offset of sit_nat_version_bitmap,
	// the trailing region shared by the SIT and NAT version bitmaps.
	CPVersionBitmapOffset = 192

	// CPMinChecksumOffset is the smallest valid checksum_offset, which is the
	// start of the version bitmap region.
	CPMinChecksumOffset = CPVersionBitmapOffset

	// CPChecksumOffset is the default checksum_offset: the last word of the
	// checkpoint block.
	CPChecksumOffset = BlockSize - 4
)

// CheckpointFlag is a bit of ckpt_flags.
type CheckpointFlag uint32

const (
	CPUmountFlag         CheckpointFlag = 0x00000001
	CPOrphanPresentFlag  CheckpointFlag = 0x00000002
	CPCompactSumFlag     CheckpointFlag = 0x00000004
	CPErrorFlag          CheckpointFlag = 0x00000008
	CPFsckFlag           CheckpointFlag = 0x00000010
	CPFastbootFlag       CheckpointFlag = 0x00000020
	CPCrcRecoveryFlag    CheckpointFlag = 0x00000040
	CPNatBitsFlag        CheckpointFlag = 0x00000080
	CPTrimmedFlag        CheckpointFlag = 0x00000100
	CPNoCrcRecoveryFlag  CheckpointFlag = 0x00000200
	CPLargeNatBitmapFlag CheckpointFlag = 0x00000400
	CPQuotaNeedFsckFlag  CheckpointFlag = 0x00000800
	CPDisabledFlag       CheckpointFlag = 0x00001000
	CPDisabledQuickFlag  CheckpointFlag = 0x00002000
	CPResizeFlag         CheckpointFlag = 0x00004000
)

var checkpointFlagNames = []struct {
	flag CheckpointFlag
	name string
}{
	{CPUmountFlag, "umount"},
	{CPOrphanPresentFlag, "orphan_present"},
	{CPCompactSumFlag, "compact_summary"},
	{CPErrorFlag, "error"},
	{CPFsckFlag, "fsck"},
	{CPFastbootFlag, "fastboot"},
	{CPCrcRecoveryFlag, "crc_recovery"},
	{CPNatBitsFlag, "nat_bits"},
	{CPTrimmedFlag, "trimmed"},
	{CPNoCrcRecoveryFlag, "nocrc_recovery"},
	{CPLargeNatBitmapFlag, "large_nat_bitmap"},
	{CPQuotaNeedFsckFlag, "quota_need_fsck"},
	{CPDisabledFlag, "disabled"},
	{CPDisabledQuickFlag, "disabled_quick"},
	{CPResizeFlag, "resize"},
}

// Names returns the names of the set flag bits in bit order.
func (f CheckpointFlag) Names() []string {
	var names []string
	for _, fn := range checkpointFlagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

// Checkpoint represents struct f2fs_checkpoint together with the assembled
// payload of the pack it was read from.
type Checkpoint struct {
	Version              uint64
	UserBlockCount       uint64
	ValidBlockCount      uint64
	RsvdSegmentCount     uint32
	OverprovSegmentCount uint32
	FreeSegmentCount     uint32
	CurNodeSegno         [MaxActiveNodeLogs]uint32
	CurNodeBlkoff        [MaxActiveNodeLogs]uint16
	CurDataSegno         [MaxActiveDataLogs]uint32
	CurDataBlkoff        [MaxActiveDataLogs]uint16
	Flags                CheckpointFlag
	PackTotalBlockCount  uint32
	PackStartSum         uint32
	ValidNodeCount       uint32
	ValidInodeCount      uint32
	NextFreeNid          NodeID
	SITVerBitmapBytesize uint32
	NATVerBitmapBytesize uint32
	ChecksumOffset       uint32
	ElapsedTime          uint64
	AllocType            [MaxActiveLogs]uint8

	// PackIndex is 0 for the pack at cp_blkaddr and 1 for the pack one
	// segment later.
	PackIndex int

	// PackStart is the first block of the chosen pack.
	PackStart BlockAddr

	// Payload holds the checkpoint block and the cp_payload blocks that
	// follow it, cp_payload+1 blocks in total.
	Payload []byte
}

// HasFlag reports whether all bits of f are set.
func (cp *Checkpoint) HasFlag(f CheckpointFlag) bool {
	return cp.Flags&f == f
}

// StoredChecksum returns the CRC stored at checksum_offset of the
// checkpoint block, or 0 when the payload is missing or the offset is out
// of range.
func (cp *Checkpoint) StoredChecksum() uint32 {
	off := int(cp.ChecksumOffset)
	if off < CPMinChecksumOffset || off > CPChecksumOffset || len(cp.Payload) < off+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(cp.Payload[off : off+4])
}

// VersionBitmapRegion returns the trailing SIT/NAT version bitmap region of
// the payload, starting at sit_nat_version_bitmap.
func (cp *Checkpoint) VersionBitmapRegion() []byte {
	if len(cp.Payload) <= CPVersionBitmapOffset {
		return nil
	}
	return cp.Payload[CPVersionBitmapOffset:]
}
