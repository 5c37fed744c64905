package superblock

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Byte offsets of struct f2fs_super_block fields.
const (
	offMagic              = 0
	offMajorVer           = 4
	offMinorVer           = 6
	offLogSectorSize      = 8
	offLogSectorsPerBlock = 12
	offLogBlockSize       = 16
	offLogBlocksPerSeg    = 20
	offSegsPerSec         = 24
	offSecsPerZone        = 28
	offChecksumOffset     = 32
	offBlockCount         = 36
	offSectionCount       = 44
	offSegmentCount       = 48
	offSegmentCountCkpt   = 52
	offSegmentCountSIT    = 56
	offSegmentCountNAT    = 60
	offSegmentCountSSA    = 64
	offSegmentCountMain   = 68
	offSegment0BlkAddr    = 72
	offCPBlkAddr          = 76
	offSITBlkAddr         = 80
	offNATBlkAddr         = 84
	offSSABlkAddr         = 88
	offMainBlkAddr        = 92
	offRootIno            = 96
	offNodeIno            = 100
	offMetaIno            = 104
	offUUID               = 108
	offVolumeName         = 124
	offExtensionCount     = 1148
	offExtensionList      = 1152
	offCPPayload          = 1664
	offVersion            = 1668
	offInitVersion        = 1924
	offFeature            = 2180
	offEncryptionLevel    = 2184
	offEncryptPwSalt      = 2185
	offDevices            = 2201
	offQuotaIno           = 2745
	offHotExtCount        = 2757
	offCRC                = types.SuperChecksumOffset

	deviceEntrySize = 68
)

// Parse decodes a superblock record. data must start at the superblock,
// i.e. at byte SuperOffset of its block.
func Parse(data []byte) (*types.Superblock, error) {
	r, err := types.NewFieldReader(data, types.SuperblockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse superblock: %w", err)
	}

	sb := &types.Superblock{
		Magic:              r.U32(offMagic),
		MajorVer:           r.U16(offMajorVer),
		MinorVer:           r.U16(offMinorVer),
		LogSectorSize:      r.U32(offLogSectorSize),
		LogSectorsPerBlock: r.U32(offLogSectorsPerBlock),
		LogBlockSize:       r.U32(offLogBlockSize),
		LogBlocksPerSeg:    r.U32(offLogBlocksPerSeg),
		SegsPerSec:         r.U32(offSegsPerSec),
		SecsPerZone:        r.U32(offSecsPerZone),
		ChecksumOffset:     r.U32(offChecksumOffset),
		BlockCount:         r.U64(offBlockCount),
		SectionCount:       r.U32(offSectionCount),
		SegmentCount:       r.U32(offSegmentCount),
		SegmentCountCkpt:   r.U32(offSegmentCountCkpt),
		SegmentCountSIT:    r.U32(offSegmentCountSIT),
		SegmentCountNAT:    r.U32(offSegmentCountNAT),
		SegmentCountSSA:    r.U32(offSegmentCountSSA),
		SegmentCountMain:   r.U32(offSegmentCountMain),
		Segment0BlkAddr:    types.BlockAddr(r.U32(offSegment0BlkAddr)),
		CPBlkAddr:          types.BlockAddr(r.U32(offCPBlkAddr)),
		SITBlkAddr:         types.BlockAddr(r.U32(offSITBlkAddr)),
		NATBlkAddr:         types.BlockAddr(r.U32(offNATBlkAddr)),
		SSABlkAddr:         types.BlockAddr(r.U32(offSSABlkAddr)),
		MainBlkAddr:        types.BlockAddr(r.U32(offMainBlkAddr)),
		RootIno:            types.NodeID(r.U32(offRootIno)),
		NodeIno:            types.NodeID(r.U32(offNodeIno)),
		MetaIno:            types.NodeID(r.U32(offMetaIno)),
		ExtensionCount:     r.U32(offExtensionCount),
		CPPayload:          r.U32(offCPPayload),
		Feature:            types.Feature(r.U32(offFeature)),
		EncryptionLevel:    r.U8(offEncryptionLevel),
		HotExtCount:        r.U8(offHotExtCount),
		CRC:                r.U32(offCRC),
	}

	r.Copy(sb.UUID[:], offUUID)
	r.Copy(sb.VolumeNameRaw[:], offVolumeName)
	for i := range sb.ExtensionList {
		r.Copy(sb.ExtensionList[i][:], offExtensionList+i*types.ExtensionLen)
	}
	r.Copy(sb.Version[:], offVersion)
	r.Copy(sb.InitVersion[:], offInitVersion)
	r.Copy(sb.EncryptPwSalt[:], offEncryptPwSalt)
	for i := range sb.Devices {
		off := offDevices + i*deviceEntrySize
		r.Copy(sb.Devices[i].Path[:], off)
		sb.Devices[i].TotalSegments = r.U32(off + len(sb.Devices[i].Path))
	}
	for i := range sb.QuotaIno {
		sb.QuotaIno[i] = types.NodeID(r.U32(offQuotaIno + i*4))
	}

	return sb, nil
}
