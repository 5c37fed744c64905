package services

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/chenyuwen/myf2fs/internal/parsers/checksum"
	"github.com/chenyuwen/myf2fs/internal/testimage"
	"github.com/chenyuwen/myf2fs/internal/types"
)

func discardLogger() *logrus.Entry {
	logger, _ := logtest.NewNullLogger()
	return logrus.NewEntry(logger)
}

// mountImage mounts img over a tracking allocator. The allocator has
// nothing outstanding once mount returns.
func mountImage(t *testing.T, img *testimage.Image) (*Filesystem, *testimage.TrackingAllocator) {
	t.Helper()

	alloc := testimage.NewTrackingAllocator()
	fs, err := Mount(img.Open(alloc), MountOptions{Logger: discardLogger()})
	require.NoError(t, err)
	require.Zero(t, alloc.Outstanding())
	return fs, alloc
}

// drain reads every remaining entry name from it.
func drain(t *testing.T, it *DirIterator) []string {
	t.Helper()

	var names []string
	for {
		child, err := it.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return names
		}
		require.True(t, child.Valid())
		names = append(names, it.Entry().Name)
	}
}

// resignPack recomputes the checksum of a pack's checkpoint block.
func resignPack(img *testimage.Image, idx int) {
	block := img.Block(testimage.PackAddr(idx))
	binary.LittleEndian.PutUint32(block[types.CPChecksumOffset:], checksum.CRC32(block[:types.CPChecksumOffset]))
}
