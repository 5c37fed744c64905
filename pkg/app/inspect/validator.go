package inspect

import (
	"fmt"
	"strings"

	"github.com/chenyuwen/myf2fs/internal/types"
	"github.com/chenyuwen/myf2fs/pkg/app"
)

// maxResultsLimit bounds ls output
const maxResultsLimit = 100000

// Validate validates an inspection request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}

	switch r.Kind {
	case KindSuperblock, KindCheckpoint:
	case KindNAT:
		for _, nid := range r.NIDs {
			if nid == 0 {
				return app.NewError(app.ErrCodeInvalidInput, "node id 0 is never allocated", nil)
			}
		}
	case KindList, KindStat:
		if err := validatePath(r.Path); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid path", err)
		}
	default:
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unknown inspection %q", r.Kind), nil)
	}

	if r.Kind == KindStat && r.Recursive {
		return app.NewError(app.ErrCodeInvalidInput, "stat does not take --recursive", nil)
	}

	if r.MaxResults < 1 || r.MaxResults > maxResultsLimit {
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("max results must be between 1 and %d", maxResultsLimit), nil)
	}

	return nil
}

// validatePath checks that every component of p fits in a directory entry
func validatePath(p string) error {
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	for _, name := range strings.Split(p, "/") {
		if len(name) > types.MaxNameLen {
			return fmt.Errorf("component %.16q... longer than %d bytes", name, types.MaxNameLen)
		}
	}
	return nil
}
