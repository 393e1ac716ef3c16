package liveactivity

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

const (
	clientSendBuffer = 8
	writeDeadline    = 5 * time.Second
	sessionFilePerm  = 0o644
)

// Frame is a single message pushed to live surface subscribers.
type Frame struct {
	Type      string `json:"type"` // start, update, end
	Session   string `json:"session"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is the concrete Publisher: an HTTP status feed with a websocket live
// surface. Sessions are persisted to a state file so a relaunched process can
// reconcile sessions that outlived it.
type Hub struct {
	listen      string
	sessionFile string
	provider    StatusProvider

	srv      *http.Server
	upgrader websocket.Upgrader

	// fileMu orders session snapshot and file write together so an older
	// snapshot can never overwrite a newer one on disk.
	fileMu sync.Mutex

	mu       sync.Mutex
	running  bool
	clients  map[*client]struct{}
	sessions map[string]SessionHandle
}

func NewHub(listen, sessionFile string, provider StatusProvider) *Hub {
	h := &Hub{
		listen:      listen,
		sessionFile: sessionFile,
		provider:    provider,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:     make(map[*client]struct{}),
		sessions:    make(map[string]SessionHandle),
	}
	h.loadSessions()
	return h
}

// Run starts the HTTP server and serves until Shutdown. The returned error is
// nil on graceful shutdown.
func (h *Hub) Run() error {
	errFactory := errors.New()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/status", h.handleStatus)
	router.GET("/live", h.handleLive)

	h.mu.Lock()
	h.srv = &http.Server{Addr: h.listen, Handler: router}
	h.running = true
	srv := h.srv
	h.mu.Unlock()

	logger.Info().Str("listen", h.listen).Msg("Live status feed listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		return errFactory.Wrap(ErrServerInit, err)
	}

	return nil
}

// Shutdown stops the HTTP server and disconnects all subscribers.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	srv := h.srv
	h.running = false
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func (h *Hub) handleStatus(c *gin.Context) {
	h.mu.Lock()
	sessions := make([]SessionHandle, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"state":    h.provider.CurrentState().String(),
		"durable":  h.provider.IsDurable(),
		"sessions": sessions,
	})
}

func (h *Hub) handleLive(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writePump(cl)
	go h.readPump(cl)
}

func (h *Hub) writePump(cl *client) {
	for msg := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	cl.conn.Close()
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[cl]; ok {
			close(cl.send)
			delete(h.clients, cl)
		}
		h.mu.Unlock()
		cl.conn.Close()
	}()

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) broadcast(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			// Slow subscriber: drop the frame rather than block the publisher.
		}
	}
}

// Start begins a live status session with the given initial state.
func (h *Hub) Start(ctx context.Context, initial thermal.Level) (SessionHandle, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return SessionHandle{}, errFactory.Wrap(ErrPublisherTimeout, err)
	}

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return SessionHandle{}, errFactory.New(ErrPublisherUnavailable)
	}
	now := time.Now()
	handle := SessionHandle{
		ID:        uuid.New().String(),
		State:     initial,
		StateCode: initial.String(),
		StartedAt: now,
		UpdatedAt: now,
	}
	h.sessions[handle.ID] = handle
	h.mu.Unlock()

	h.persistSessions()
	h.broadcast(Frame{
		Type:      "start",
		Session:   handle.ID,
		State:     initial.String(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})

	return handle, nil
}

// Update publishes a new state on an existing session.
func (h *Hub) Update(ctx context.Context, handle SessionHandle, state thermal.Level) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrPublisherTimeout, err)
	}

	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return errFactory.New(ErrPublisherUnavailable)
	}
	session, ok := h.sessions[handle.ID]
	if !ok {
		h.mu.Unlock()
		return errFactory.WithData(ErrSessionNotFound, handle.ID)
	}
	now := time.Now()
	session.State = state
	session.StateCode = state.String()
	session.UpdatedAt = now
	h.sessions[handle.ID] = session
	h.mu.Unlock()

	h.persistSessions()
	h.broadcast(Frame{
		Type:      "update",
		Session:   handle.ID,
		State:     state.String(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})

	return nil
}

// End terminates a session. Ending an unknown session is a no-op success so
// teardown paths stay idempotent.
func (h *Hub) End(ctx context.Context, handle SessionHandle) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrPublisherTimeout, err)
	}

	h.mu.Lock()
	session, ok := h.sessions[handle.ID]
	if ok {
		delete(h.sessions, handle.ID)
	}
	h.mu.Unlock()

	if !ok {
		return nil
	}

	h.persistSessions()
	h.broadcast(Frame{
		Type:      "end",
		Session:   session.ID,
		State:     session.StateCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})

	return nil
}

// ListActiveSessions returns the sessions the publisher believes are running,
// including sessions restored from the state file after a relaunch.
func (h *Hub) ListActiveSessions(_ context.Context) ([]SessionHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]SessionHandle, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (h *Hub) loadSessions() {
	if h.sessionFile == "" {
		return
	}

	data, err := os.ReadFile(h.sessionFile)
	if err != nil {
		return
	}

	var sessions []SessionHandle
	if err := json.Unmarshal(data, &sessions); err != nil {
		logger.Debug().Err(err).Msg("Discarding unreadable session state file")
		return
	}

	h.mu.Lock()
	for _, s := range sessions {
		s.State = thermal.LevelFromString(s.StateCode)
		h.sessions[s.ID] = s
	}
	h.mu.Unlock()

	if len(sessions) > 0 {
		logger.Info().Int("sessions", len(sessions)).Msg("Restored live status sessions")
	}
}

func (h *Hub) persistSessions() {
	if h.sessionFile == "" {
		return
	}

	h.fileMu.Lock()
	defer h.fileMu.Unlock()

	h.mu.Lock()
	sessions := make([]SessionHandle, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	data, err := json.Marshal(sessions)
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(h.sessionFile), 0o755); err != nil {
		logger.Debug().Err(err).Msg("Failed to create session state directory")
		return
	}
	if err := os.WriteFile(h.sessionFile, data, sessionFilePerm); err != nil {
		logger.Debug().Err(err).Msg("Failed to persist session state")
	}
}
