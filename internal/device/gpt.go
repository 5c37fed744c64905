package device

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// GPT layout constants for 512-byte sector images.
const (
	gptSectorSize         = 512
	gptHeaderOffset       = gptSectorSize
	gptSignature          = "EFI PART"
	gptEntriesStartOffset = 2 * gptSectorSize
	gptEntrySize          = 128
	gptMaxEntries         = 128
)

var errNoFilesystem = errors.New("F2FS filesystem not found in image")

// detectOffset finds the F2FS filesystem within the image and returns the
// detection method
func (img *Image) detectOffset() (int64, string, error) {
	// Method 1: raw, unpartitioned filesystem
	if img.hasSuperMagic(0) {
		return 0, "raw", nil
	}

	// Method 2: first GPT partition holding an F2FS superblock
	offset, err := img.scanGPTPartitions()
	if err == nil {
		return offset, "gpt", nil
	}
	img.log.WithError(err).Debug("GPT scan failed")

	// Method 3: configured offset
	if img.offset != 0 && img.hasSuperMagic(img.offset) {
		return img.offset, "configured", nil
	}

	return 0, "", errNoFilesystem
}

// scanGPTPartitions walks the GPT partition entries and returns the byte
// offset of the first partition that starts with an F2FS superblock.
// Partition type GUIDs are not checked: F2FS has none of its own and usually
// sits in a generic Linux data partition.
func (img *Image) scanGPTPartitions() (int64, error) {
	buf := make([]byte, gptEntriesStartOffset+gptEntrySize*gptMaxEntries)
	n, err := img.reader.ReadAt(buf, 0)
	if n < gptEntriesStartOffset+gptEntrySize {
		return 0, fmt.Errorf("buffer too small for GPT parsing: %v", err)
	}
	buf = buf[:n]

	if string(buf[gptHeaderOffset:gptHeaderOffset+len(gptSignature)]) != gptSignature {
		return 0, fmt.Errorf("no valid GPT signature found")
	}

	for entryIdx := 0; entryIdx < gptMaxEntries; entryIdx++ {
		entryOffset := gptEntriesStartOffset + entryIdx*gptEntrySize
		if entryOffset+gptEntrySize > len(buf) {
			break
		}
		entry := buf[entryOffset : entryOffset+gptEntrySize]

		// Bytes 32-39 contain start LBA (little-endian)
		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		if startLBA == 0 {
			continue
		}

		start := int64(startLBA) * gptSectorSize
		if img.hasSuperMagic(start) {
			img.log.WithField("partition", entryIdx+1).Debug("found F2FS partition")
			return start, nil
		}
	}

	return 0, fmt.Errorf("no F2FS partition found in GPT table")
}
