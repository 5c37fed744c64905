// Package services opens F2FS images for callers outside this module.
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chenyuwen/myf2fs/internal/device"
	"github.com/chenyuwen/myf2fs/internal/services"
)

// Options configures Open
type Options struct {
	// Config selects the filesystem offset, buffer pooling and read limits;
	// DefaultConfig when nil
	Config *device.Config

	// Metrics receives block device statistics when non-nil
	Metrics *device.Metrics

	// Logger receives diagnostics; the standard logger when nil
	Logger *logrus.Entry
}

// Session is an open image with its filesystem mounted
type Session struct {
	image *device.Image
	fs    *services.Filesystem
}

// Open opens the image at path and mounts the filesystem in it
func Open(path string, opts Options) (*Session, error) {
	config := opts.Config
	if config == nil {
		config = device.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	img, err := device.Open(path, config, opts.Metrics, log)
	if err != nil {
		return nil, err
	}

	fs, err := services.Mount(img, services.MountOptions{
		Logger:          log,
		SkipFooterCheck: !config.VerifyNodeFooter,
	})
	if err != nil {
		img.Close()
		return nil, fmt.Errorf("failed to mount %s: %w", path, err)
	}

	return &Session{image: img, fs: fs}, nil
}

// Filesystem returns the mounted filesystem
func (s *Session) Filesystem() services.FileSystemService {
	return s.fs
}

// Mounted returns the concrete mounted filesystem
func (s *Session) Mounted() *services.Filesystem {
	return s.fs
}

// Offset returns where the filesystem starts within the image
func (s *Session) Offset() int64 {
	return s.image.Offset()
}

// Close unmounts the filesystem and closes the image. Inode handles must be
// released first.
func (s *Session) Close() error {
	s.fs.Unmount()
	return s.image.Close()
}
