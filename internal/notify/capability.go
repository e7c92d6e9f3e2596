// Package notify delivers reminders and transient messages to the user.
package notify

import "context"

// Capability is a platform sink that may or may not exist on this host.
// The zero value is Unavailable.
type Capability[T any] struct {
	send func(context.Context, T) error
}

// Available wraps a send function as a usable capability
func Available[T any](send func(context.Context, T) error) Capability[T] {
	return Capability[T]{send: send}
}

// Unavailable returns a capability that drops everything
func Unavailable[T any]() Capability[T] {
	return Capability[T]{}
}

// IsAvailable reports whether the host supports this sink
func (c Capability[T]) IsAvailable() bool {
	return c.send != nil
}

// Send delivers v. It reports false without an error when the sink is unavailable.
func (c Capability[T]) Send(ctx context.Context, v T) (bool, error) {
	if c.send == nil {
		return false, nil
	}
	if err := c.send(ctx, v); err != nil {
		return false, err
	}
	return true, nil
}
