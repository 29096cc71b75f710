package health

import (
	"context"
	"errors"
)

// Pinger is anything that can report its own reachability, such as the
// entity store or the execution log storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// RunningCheck fails while running reports false. It is used for
// background loops like the delay scheduler.
func RunningCheck(name string, running func() bool) CheckFunc {
	return func(ctx context.Context) error {
		if !running() {
			return errors.New(name + " is not running")
		}
		return nil
	}
}
