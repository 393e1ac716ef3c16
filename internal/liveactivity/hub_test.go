package liveactivity

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

type fakeProvider struct {
	state   thermal.Level
	durable bool
}

func (f fakeProvider) CurrentState() thermal.Level { return f.state }
func (f fakeProvider) IsDurable() bool             { return f.durable }

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	sessionFile := filepath.Join(t.TempDir(), "sessions.json")
	h := NewHub("127.0.0.1:0", sessionFile, fakeProvider{state: thermal.Normal, durable: true})
	h.running = true
	return h, sessionFile
}

func TestStartCreatesSession(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Fair)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, thermal.Fair, handle.State)
	assert.Equal(t, "fair", handle.StateCode)

	sessions, err := h.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, handle.ID, sessions[0].ID)
}

func TestStartFailsWhenNotRunning(t *testing.T) {
	h, _ := newTestHub(t)
	h.running = false

	_, err := h.Start(context.Background(), thermal.Normal)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrPublisherUnavailable))
}

func TestStartHonorsCancelledContext(t *testing.T) {
	h, _ := newTestHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Start(ctx, thermal.Normal)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrPublisherTimeout))
}

func TestUpdateChangesSessionState(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Normal)
	require.NoError(t, err)

	require.NoError(t, h.Update(ctx, handle, thermal.Critical))

	sessions, err := h.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, thermal.Critical, sessions[0].State)
	assert.Equal(t, "critical", sessions[0].StateCode)
}

func TestUpdateUnknownSession(t *testing.T) {
	h, _ := newTestHub(t)

	err := h.Update(context.Background(), SessionHandle{ID: "ghost"}, thermal.Fair)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrSessionNotFound))
}

func TestEndRemovesSession(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Serious)
	require.NoError(t, err)

	require.NoError(t, h.End(ctx, handle))

	sessions, err := h.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestEndUnknownSessionIsNoop(t *testing.T) {
	h, _ := newTestHub(t)
	assert.NoError(t, h.End(context.Background(), SessionHandle{ID: "ghost"}))
}

func TestSessionsSurviveRelaunch(t *testing.T) {
	h, sessionFile := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Serious)
	require.NoError(t, err)

	// A fresh hub over the same state file adopts the session.
	relaunched := NewHub("127.0.0.1:0", sessionFile, fakeProvider{})
	sessions, err := relaunched.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, handle.ID, sessions[0].ID)
	assert.Equal(t, thermal.Serious, sessions[0].State, "state must be restored from its code")
}

func TestEndedSessionNotRestoredOnRelaunch(t *testing.T) {
	h, sessionFile := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Fair)
	require.NoError(t, err)
	require.NoError(t, h.End(ctx, handle))

	relaunched := NewHub("127.0.0.1:0", sessionFile, fakeProvider{})
	sessions, err := relaunched.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestConcurrentUpdatesPersistLatestState(t *testing.T) {
	h, sessionFile := newTestHub(t)
	ctx := context.Background()

	handle, err := h.Start(ctx, thermal.Normal)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Update(ctx, handle, thermal.Fair))
		}()
	}
	wg.Wait()

	require.NoError(t, h.Update(ctx, handle, thermal.Critical))

	// The state file must reflect the last update, not a stale snapshot.
	relaunched := NewHub("127.0.0.1:0", sessionFile, fakeProvider{})
	sessions, err := relaunched.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, thermal.Critical, sessions[0].State)
}

func TestCorruptSessionFileDiscarded(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(sessionFile, []byte("{not json"), 0o644))

	h := NewHub("127.0.0.1:0", sessionFile, fakeProvider{})
	sessions, err := h.ListActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStatusEndpoint(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "sessions.json")
	h := NewHub("127.0.0.1:0", sessionFile, fakeProvider{state: thermal.Serious, durable: false})
	h.running = true

	_, err := h.Start(context.Background(), thermal.Serious)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/status", nil)

	h.handleStatus(c)

	require.Equal(t, 200, w.Code)

	var body struct {
		State    string          `json:"state"`
		Durable  bool            `json:"durable"`
		Sessions []SessionHandle `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "serious", body.State)
	assert.False(t, body.Durable)
	assert.Len(t, body.Sessions, 1)
}
