package liveactivity

import (
	"context"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

// SessionHandle identifies a live status session owned by a publisher.
type SessionHandle struct {
	ID        string        `json:"id"`
	State     thermal.Level `json:"-"`
	StateCode string        `json:"state"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Publisher is the externally-visible live status surface. Start may fail
// (insufficient entitlement, surface not running); such failures are
// recoverable and must never crash the caller. ListActiveSessions supports
// reconciliation after a process relaunch where a session outlived the
// previous process.
type Publisher interface {
	Start(ctx context.Context, initial thermal.Level) (SessionHandle, error)
	Update(ctx context.Context, handle SessionHandle, state thermal.Level) error
	End(ctx context.Context, handle SessionHandle) error
	ListActiveSessions(ctx context.Context) ([]SessionHandle, error)
}

// StatusProvider supplies the read-only data served on the status endpoints.
type StatusProvider interface {
	CurrentState() thermal.Level
	IsDurable() bool
}
