package checkpoint

import (
	"fmt"

	"github.com/chenyuwen/myf2fs/internal/types"
)

// Byte offsets of struct f2fs_checkpoint fields.
const (
	offVersion              = 0
	offUserBlockCount       = 8
	offValidBlockCount      = 16
	offRsvdSegmentCount     = 24
	offOverprovSegmentCount = 28
	offFreeSegmentCount     = 32
	offCurNodeSegno         = 36
	offCurNodeBlkoff        = 68
	offCurDataSegno         = 84
	offCurDataBlkoff        = 116
	offFlags                = 132
	offPackTotalBlockCount  = 136
	offPackStartSum         = 140
	offValidNodeCount       = 144
	offValidInodeCount      = 148
	offNextFreeNid          = 152
	offSITVerBitmapBytesize = 156
	offNATVerBitmapBytesize = 160
	offChecksumOffset       = 164
	offElapsedTime          = 168
	offAllocType            = 176
)

// Parse decodes the checkpoint header at the start of data. The returned
// checkpoint has no payload attached.
func Parse(data []byte) (*types.Checkpoint, error) {
	r, err := types.NewFieldReader(data, types.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	cp := &types.Checkpoint{
		Version:              r.U64(offVersion),
		UserBlockCount:       r.U64(offUserBlockCount),
		ValidBlockCount:      r.U64(offValidBlockCount),
		RsvdSegmentCount:     r.U32(offRsvdSegmentCount),
		OverprovSegmentCount: r.U32(offOverprovSegmentCount),
		FreeSegmentCount:     r.U32(offFreeSegmentCount),
		Flags:                types.CheckpointFlag(r.U32(offFlags)),
		PackTotalBlockCount:  r.U32(offPackTotalBlockCount),
		PackStartSum:         r.U32(offPackStartSum),
		ValidNodeCount:       r.U32(offValidNodeCount),
		ValidInodeCount:      r.U32(offValidInodeCount),
		NextFreeNid:          types.NodeID(r.U32(offNextFreeNid)),
		SITVerBitmapBytesize: r.U32(offSITVerBitmapBytesize),
		NATVerBitmapBytesize: r.U32(offNATVerBitmapBytesize),
		ChecksumOffset:       r.U32(offChecksumOffset),
		ElapsedTime:          r.U64(offElapsedTime),
	}

	for i := 0; i < types.MaxActiveNodeLogs; i++ {
		cp.CurNodeSegno[i] = r.U32(offCurNodeSegno + i*4)
		cp.CurNodeBlkoff[i] = r.U16(offCurNodeBlkoff + i*2)
	}
	for i := 0; i < types.MaxActiveDataLogs; i++ {
		cp.CurDataSegno[i] = r.U32(offCurDataSegno + i*4)
		cp.CurDataBlkoff[i] = r.U16(offCurDataBlkoff + i*2)
	}
	r.Copy(cp.AllocType[:], offAllocType)

	return cp, nil
}
