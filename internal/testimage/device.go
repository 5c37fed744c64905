package testimage

import (
	"bytes"

	"github.com/chenyuwen/myf2fs/internal/device"
)

// Open wraps the image in a block device that draws its buffers from alloc.
func (img *Image) Open(alloc device.Allocator) *device.Image {
	return device.NewImage(bytes.NewReader(img.Data), int64(len(img.Data)), device.Options{Allocator: alloc})
}

// Flip xors one byte of the image.
func (img *Image) Flip(off int, mask byte) {
	img.Data[off] ^= mask
}
