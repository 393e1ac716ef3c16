package thermal

import "github.com/wangshicheng1995/phonetemp/internal/errors"

const (
	ErrSourceUnavailable = errors.ErrorCode("thermal_source_unavailable")
	ErrSourceRead        = errors.ErrorCode("thermal_source_read_failed")
)
