package thermal

import (
	"os"
	"strconv"
	"strings"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
)

// Thresholds in millidegrees Celsius for bucketing a sysfs zone temperature
// into the four canonical levels.
const (
	sysfsFairThreshold     = 60000
	sysfsSeriousThreshold  = 75000
	sysfsCriticalThreshold = 90000
)

// SysfsSource reads a Linux thermal zone temperature file and buckets it into
// raw levels 0..3.
type SysfsSource struct {
	path string
}

func NewSysfsSource(path string) *SysfsSource {
	return &SysfsSource{path: path}
}

func (s *SysfsSource) ReadRawLevel() (int, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, errFactory.Wrap(ErrSourceRead, err)
	}

	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errFactory.Wrap(ErrSourceRead, err)
	}

	switch {
	case milli >= sysfsCriticalThreshold:
		return int(Critical), nil
	case milli >= sysfsSeriousThreshold:
		return int(Serious), nil
	case milli >= sysfsFairThreshold:
		return int(Fair), nil
	default:
		return int(Normal), nil
	}
}
