package liveactivity

import "github.com/wangshicheng1995/phonetemp/internal/errors"

const (
	ErrPublisherUnavailable = errors.ErrorCode("publisher_unavailable")
	ErrSessionNotFound      = errors.ErrorCode("publisher_session_not_found")
	ErrPublisherTimeout     = errors.ErrorCode("publisher_timeout")
	ErrServerInit           = errors.ErrorCode("publisher_server_init_failed")
)
