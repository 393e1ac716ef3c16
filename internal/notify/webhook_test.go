package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

func TestNewWebhookDispatcherRejectsEmptyURL(t *testing.T) {
	_, err := NewWebhookDispatcher("", "dev")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidTarget))
}

func TestWebhookSendPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
	}))
	defer srv.Close()

	d, err := NewWebhookDispatcher(srv.URL, "phone-1")
	require.NoError(t, err)

	tr := thermal.Transition{From: thermal.Fair, To: thermal.Critical}
	require.NoError(t, d.Send(context.Background(), tr, true))

	assert.Equal(t, "fair", received["from"])
	assert.Equal(t, "critical", received["to"])
	assert.Equal(t, "phone-1", received["device_label"])
	assert.Equal(t, true, received["suppressed_if_foreground"])
	assert.Contains(t, received, "timestamp")
}

func TestWebhookSendDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d, err := NewWebhookDispatcher(srv.URL, "dev")
	require.NoError(t, err)

	sendErr := d.Send(context.Background(), thermal.Transition{From: thermal.Normal, To: thermal.Fair}, false)
	require.Error(t, sendErr)
	assert.True(t, errors.HasCode(sendErr, ErrDenied))
}

func TestWebhookSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, err := NewWebhookDispatcher(srv.URL, "dev")
	require.NoError(t, err)

	sendErr := d.Send(context.Background(), thermal.Transition{From: thermal.Normal, To: thermal.Fair}, false)
	require.Error(t, sendErr)
	assert.True(t, errors.HasCode(sendErr, ErrDispatchFailed))
}

func TestWebhookSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	d, err := NewWebhookDispatcher(srv.URL, "dev")
	require.NoError(t, err)

	sendErr := d.Send(context.Background(), thermal.Transition{From: thermal.Normal, To: thermal.Fair}, false)
	require.Error(t, sendErr)
	assert.True(t, errors.HasCode(sendErr, ErrDispatchFailed))
}

func TestNoopDispatcher(t *testing.T) {
	assert.NoError(t, NoopDispatcher{}.Send(context.Background(), thermal.Transition{}, true))
}
