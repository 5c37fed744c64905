package types

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// Superblock Objects
// The superblock sits at byte offset 1024 of block 0, with a redundant copy
// at the same offset of block 1.

const (
	// SuperMagic identifies an F2FS superblock.
	SuperMagic uint32 = 0xF2F52010

	// SuperOffset is the byte offset of the superblock inside its block.
	SuperOffset = 1024

	// SuperblockSize is the size in bytes of struct f2fs_super_block.
	SuperblockSize = 3072

	// SuperChecksumOffset is the byte offset of the crc field inside the
	// superblock. A checksummed superblock must record this exact value in
	// checksum_offset.
	SuperChecksumOffset = 3068

	// SuperblockCopies is the number of redundant superblock copies.
	SuperblockCopies = 2

	// MaxVolumeName is the number of UTF-16 code units in volume_name.
	MaxVolumeName = 512

	// MaxExtension is the number of entries in extension_list.
	MaxExtension = 64

	// ExtensionLen is the size of one extension_list entry.
	ExtensionLen = 8

	// VersionLen is the size of the version strings.
	VersionLen = 256

	// MaxDevices is the number of entries in the device list.
	MaxDevices = 8

	// MaxQuotas is the number of quota inode slots.
	MaxQuotas = 3
)

// Feature flags stored in the superblock's feature field. This reader only
// detects them; none of the features change how metadata is located except
// SbChecksum, ExtraAttr and FlexibleInlineXattr.
type Feature uint32

const (
	FeatureEncrypt             Feature = 0x0001
	FeatureBlkZoned            Feature = 0x0002
	FeatureAtomicWrite         Feature = 0x0004
	FeatureExtraAttr           Feature = 0x0008
	FeatureProjectQuota        Feature = 0x0010
	FeatureInodeChecksum       Feature = 0x0020
	FeatureFlexibleInlineXattr Feature = 0x0040
	FeatureQuotaIno            Feature = 0x0080
	FeatureInodeCrtime         Feature = 0x0100
	FeatureLostFound           Feature = 0x0200
	FeatureVerity              Feature = 0x0400
	FeatureSbChecksum          Feature = 0x0800
	FeatureCasefold            Feature = 0x1000
	FeatureCompression         Feature = 0x2000
	FeatureReadOnly            Feature = 0x4000
)

var featureNames = []struct {
	flag Feature
	name string
}{
	{FeatureEncrypt, "encrypt"},
	{FeatureBlkZoned, "blkzoned"},
	{FeatureAtomicWrite, "atomic_write"},
	{FeatureExtraAttr, "extra_attr"},
	{FeatureProjectQuota, "project_quota"},
	{FeatureInodeChecksum, "inode_checksum"},
	{FeatureFlexibleInlineXattr, "flexible_inline_xattr"},
	{FeatureQuotaIno, "quota_ino"},
	{FeatureInodeCrtime, "inode_crtime"},
	{FeatureLostFound, "lost_found"},
	{FeatureVerity, "verity"},
	{FeatureSbChecksum, "sb_checksum"},
	{FeatureCasefold, "casefold"},
	{FeatureCompression, "compression"},
	{FeatureReadOnly, "readonly"},
}

// Names returns the names of the set feature bits in bit order.
func (f Feature) Names() []string {
	var names []string
	for _, fn := range featureNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

// Device is one entry of the superblock's device list.
type Device struct {
	Path          [64]byte
	TotalSegments uint32
}

// Superblock represents struct f2fs_super_block.
type Superblock struct {
	Magic              uint32
	MajorVer           uint16
	MinorVer           uint16
	LogSectorSize      uint32
	LogSectorsPerBlock uint32
	LogBlockSize       uint32
	LogBlocksPerSeg    uint32
	SegsPerSec         uint32
	SecsPerZone        uint32
	ChecksumOffset     uint32
	BlockCount         uint64
	SectionCount       uint32
	SegmentCount       uint32
	SegmentCountCkpt   uint32
	SegmentCountSIT    uint32
	SegmentCountNAT    uint32
	SegmentCountSSA    uint32
	SegmentCountMain   uint32
	Segment0BlkAddr    BlockAddr
	CPBlkAddr          BlockAddr
	SITBlkAddr         BlockAddr
	NATBlkAddr         BlockAddr
	SSABlkAddr         BlockAddr
	MainBlkAddr        BlockAddr
	RootIno            NodeID
	NodeIno            NodeID
	MetaIno            NodeID
	UUID               [16]byte
	VolumeNameRaw      [MaxVolumeName * 2]byte
	ExtensionCount     uint32
	ExtensionList      [MaxExtension][ExtensionLen]byte
	CPPayload          uint32
	Version            [VersionLen]byte
	InitVersion        [VersionLen]byte
	Feature            Feature
	EncryptionLevel    uint8
	EncryptPwSalt      [16]byte
	Devices            [MaxDevices]Device
	QuotaIno           [MaxQuotas]NodeID
	HotExtCount        uint8
	CRC                uint32

	// Copy records which redundant copy (0 or 1) this record was read from.
	Copy int
}

// HasFeature reports whether all bits of f are set.
func (sb *Superblock) HasFeature(f Feature) bool {
	return sb.Feature&f == f
}

// BlocksPerSeg returns the number of blocks in a segment.
func (sb *Superblock) BlocksPerSeg() uint32 {
	return 1 << sb.LogBlocksPerSeg
}

// CheckpointBlocks returns the number of blocks in a checkpoint payload
// (the header block plus cp_payload extra blocks).
func (sb *Superblock) CheckpointBlocks() uint32 {
	return sb.CPPayload + 1
}

// VolumeUUID returns the volume UUID.
func (sb *Superblock) VolumeUUID() uuid.UUID {
	return uuid.UUID(sb.UUID)
}

// VolumeName decodes the UTF-16LE volume label up to its first NUL.
func (sb *Superblock) VolumeName() string {
	raw := sb.VolumeNameRaw[:]
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			raw = raw[:i]
			break
		}
	}
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// KernelVersion returns the version string of the kernel that last wrote
// the image.
func (sb *Superblock) KernelVersion() string {
	return cString(sb.Version[:])
}

// Extensions returns the cold-file extension list.
func (sb *Superblock) Extensions() []string {
	n := int(sb.ExtensionCount)
	if n > MaxExtension {
		n = MaxExtension
	}
	exts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		exts = append(exts, cString(sb.ExtensionList[i][:]))
	}
	return exts
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
