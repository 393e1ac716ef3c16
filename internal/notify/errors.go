package notify

import "github.com/wangshicheng1995/phonetemp/internal/errors"

const (
	ErrDispatchFailed = errors.ErrorCode("notification_dispatch_failed")
	ErrDenied         = errors.ErrorCode("notification_denied")
	ErrInvalidTarget  = errors.ErrorCode("notification_invalid_target")
)
