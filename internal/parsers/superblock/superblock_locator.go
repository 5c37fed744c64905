package superblock

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/interfaces"
	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/types"
)

// maxLogBlocksPerSeg bounds the segment size at 512 blocks, the largest
// F2FS supports.
const maxLogBlocksPerSeg = 9

// Validate checks a superblock copy. raw is the record the copy was parsed
// from and is needed to recompute the checksum.
func Validate(sb *types.Superblock, raw []byte) error {
	if sb.Magic != types.SuperMagic {
		return fmt.Errorf("invalid superblock magic: got 0x%08X, want 0x%08X", sb.Magic, types.SuperMagic)
	}

	if sb.HasFeature(types.FeatureSbChecksum) {
		if sb.ChecksumOffset != types.SuperChecksumOffset {
			return fmt.Errorf("%w: checksum offset %d, want %d",
				types.ErrChecksumMismatch, sb.ChecksumOffset, types.SuperChecksumOffset)
		}
		if err := checksum.NewChecksumInspector(raw, sb.ChecksumOffset).VerifyChecksum(); err != nil {
			return err
		}
	}

	if sb.LogBlockSize != types.LogBlockSize {
		return fmt.Errorf("%w: unsupported log block size %d", types.ErrCorrupted, sb.LogBlockSize)
	}
	if sb.LogBlocksPerSeg > maxLogBlocksPerSeg {
		return fmt.Errorf("%w: log blocks per segment %d", types.ErrCorrupted, sb.LogBlocksPerSeg)
	}

	return nil
}

// Load reads superblock copies in order and returns the first that
// validates. Invalid copies are logged and skipped; read failures abort.
func Load(dev interfaces.BlockDeviceReader, log *logrus.Entry) (*types.Superblock, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "superblock")

	var lastErr error
	for copyIdx := 0; copyIdx < types.SuperblockCopies; copyIdx++ {
		sb, err := loadCopy(dev, copyIdx)
		if errors.Is(err, types.ErrIO) {
			return nil, err
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"copy":  copyIdx,
				"block": copyIdx,
			}).WithError(err).Warn("superblock copy rejected")
			lastErr = err
			continue
		}

		log.WithFields(logrus.Fields{
			"copy":     copyIdx,
			"version":  fmt.Sprintf("%d.%d", sb.MajorVer, sb.MinorVer),
			"features": sb.Feature.Names(),
		}).Debug("superblock loaded")
		return sb, nil
	}

	return nil, fmt.Errorf("%w: %w", types.ErrSuperblockNotFound, lastErr)
}

func loadCopy(dev interfaces.BlockDeviceReader, copyIdx int) (*types.Superblock, error) {
	block, err := dev.ReadBlock(types.BlockAddr(copyIdx))
	if err != nil {
		return nil, err
	}
	defer block.Release()

	raw := block.Data[types.SuperOffset:]
	sb, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(sb, raw[:types.SuperblockSize]); err != nil {
		return nil, err
	}

	sb.Copy = copyIdx
	return sb, nil
}
