package checkpoint

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// pack is a checkpoint header that passed validation, with the block it
// was read from.
type pack struct {
	index int
	start types.BlockAddr
	cp    *types.Checkpoint
}

// Validate checks a checkpoint header against the superblock. block is the
// raw first block of the pack. An all-zero block is a pack that was never
// written. The stored CRC is verified when checksum_offset is recorded and
// the pack length is bounded when cp_pack_total_block_count is recorded.
func Validate(sb *types.Superblock, cp *types.Checkpoint, block []byte) error {
	if isBlank(block) {
		return fmt.Errorf("%w: blank checkpoint block", types.ErrCorrupted)
	}

	if cp.ChecksumOffset != 0 {
		if cp.ChecksumOffset < types.CPMinChecksumOffset || cp.ChecksumOffset > types.CPChecksumOffset {
			return fmt.Errorf("%w: checksum offset %d out of range", types.ErrCorrupted, cp.ChecksumOffset)
		}
		if err := checksum.NewChecksumInspector(block, cp.ChecksumOffset).VerifyChecksum(); err != nil {
			return err
		}
	}

	if cp.PackTotalBlockCount != 0 {
		minBlocks := sb.CheckpointBlocks()
		if cp.PackTotalBlockCount < minBlocks || cp.PackTotalBlockCount > sb.BlocksPerSeg() {
			return fmt.Errorf("%w: pack of %d blocks, want [%d, %d]",
				types.ErrCorrupted, cp.PackTotalBlockCount, minBlocks, sb.BlocksPerSeg())
		}
	}

	return nil
}

func isBlank(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}

// Load resolves the current checkpoint. Both packs are validated; the one
// with the greater version wins and pack 0 wins a tie. The winning pack's
// checkpoint block and cp_payload blocks are read into the returned
// checkpoint's Payload.
func Load(dev interfaces.BlockDeviceReader, sb *types.Superblock, log *logrus.Entry) (*types.Checkpoint, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "checkpoint")

	var (
		current *pack
		lastErr error
	)
	for idx := 0; idx < types.CheckpointPacks; idx++ {
		start := sb.CPBlkAddr + types.BlockAddr(uint32(idx)*sb.BlocksPerSeg())
		p, err := readPack(dev, sb, idx, start)
		if errors.Is(err, types.ErrIO) {
			return nil, err
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"pack":  idx,
				"block": start,
			}).WithError(err).Warn("checkpoint pack rejected")
			lastErr = err
			continue
		}
		if current == nil || p.cp.Version > current.cp.Version {
			current = p
		}
	}

	if current == nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCheckpointNotFound, lastErr)
	}

	payload, err := dev.ReadBlockRange(current.start, sb.CheckpointBlocks())
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint payload: %w", err)
	}
	defer payload.Release()

	cp := current.cp
	cp.PackIndex = current.index
	cp.PackStart = current.start
	cp.Payload = append([]byte(nil), payload.Data...)

	log.WithFields(logrus.Fields{
		"pack":    cp.PackIndex,
		"version": cp.Version,
		"flags":   cp.Flags.Names(),
	}).Debug("checkpoint resolved")

	return cp, nil
}

func readPack(dev interfaces.BlockDeviceReader, sb *types.Superblock, idx int, start types.BlockAddr) (*pack, error) {
	head, err := dev.ReadBlock(start)
	if err != nil {
		return nil, err
	}
	defer head.Release()

	cp, err := Parse(head.Data)
	if err != nil {
		return nil, err
	}
	if err := Validate(sb, cp, head.Data); err != nil {
		return nil, err
	}

	// A pack longer than its checkpoint blocks ends with a copy of the
	// checkpoint block; a torn write leaves the two with different versions.
	if cp.PackTotalBlockCount <= sb.CheckpointBlocks() {
		return &pack{index: idx, start: start, cp: cp}, nil
	}
	tail, err := dev.ReadBlock(start + types.BlockAddr(cp.PackTotalBlockCount-1))
	if err != nil {
		return nil, err
	}
	defer tail.Release()

	tailCP, err := Parse(tail.Data)
	if err != nil {
		return nil, err
	}
	if tailCP.Version != cp.Version {
		return nil, fmt.Errorf("%w: pack trailer version %d, header version %d",
			types.ErrCorrupted, tailCP.Version, cp.Version)
	}

	return &pack{index: idx, start: start, cp: cp}, nil
}
