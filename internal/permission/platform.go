package permission

import (
	"context"
	"sync"
)

// Desktop is the permission surface of a desktop session. There is no
// prompt: permission is granted once asked if a notifier exists.
type Desktop struct {
	available bool

	mu        sync.Mutex
	requested bool
}

// NewDesktop creates the platform; available reports whether a notifier exists
func NewDesktop(available bool) *Desktop {
	return &Desktop{available: available}
}

func (d *Desktop) State() PlatformState {
	if !d.available {
		return PlatformDenied
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.requested {
		return PlatformGranted
	}
	return PlatformDefault
}

func (d *Desktop) Request(ctx context.Context) (PlatformState, error) {
	if err := ctx.Err(); err != nil {
		return PlatformDefault, err
	}
	if !d.available {
		return PlatformDenied, nil
	}
	d.mu.Lock()
	d.requested = true
	d.mu.Unlock()
	return PlatformGranted, nil
}
