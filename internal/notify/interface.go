package notify

import (
	"context"

	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// Dispatcher delivers a one-shot message describing a state transition.
// Delivery is best-effort: failures are reported to the caller for logging
// and are never fatal.
type Dispatcher interface {
	Send(ctx context.Context, transition thermal.Transition, suppressedIfForeground bool) error
}
