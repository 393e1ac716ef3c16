package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/thermal"
)

const dispatchTimeout = 5 * time.Second

// WebhookDispatcher POSTs transition messages as JSON to a configured URL.
type WebhookDispatcher struct {
	url         string
	deviceLabel string
	client      *http.Client
}

func NewWebhookDispatcher(url, deviceLabel string) (*WebhookDispatcher, error) {
	if url == "" {
		return nil, errors.New().New(ErrInvalidTarget)
	}
	return &WebhookDispatcher{
		url:         url,
		deviceLabel: deviceLabel,
		client:      &http.Client{Timeout: dispatchTimeout},
	}, nil
}

func (d *WebhookDispatcher) Send(ctx context.Context, transition thermal.Transition, suppressedIfForeground bool) error {
	errFactory := errors.New()

	payload, err := json.Marshal(map[string]any{
		"from":                     transition.From.String(),
		"to":                       transition.To.String(),
		"device_label":             d.deviceLabel,
		"timestamp":                time.Now().UTC().Format(time.RFC3339Nano),
		"suppressed_if_foreground": suppressedIfForeground,
	})
	if err != nil {
		return errFactory.Wrap(ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return errFactory.Wrap(ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return errFactory.WithData(ErrDenied, resp.Status)
	case resp.StatusCode >= 300:
		return errFactory.WithData(ErrDispatchFailed, resp.Status)
	}

	return nil
}

// NoopDispatcher is used when no notification target is configured.
type NoopDispatcher struct{}

func (NoopDispatcher) Send(context.Context, thermal.Transition, bool) error {
	return nil
}
