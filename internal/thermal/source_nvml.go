package thermal

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/wangshicheng1995/phonetemp/internal/errors"
	"github.com/wangshicheng1995/phonetemp/internal/logger"
)

// Thresholds in degrees Celsius for bucketing a GPU core temperature into the
// four canonical levels.
const (
	nvmlFairThreshold     = 65
	nvmlSeriousThreshold  = 80
	nvmlCriticalThreshold = 90
)

// NVMLSource reads the first NVIDIA GPU's core temperature and buckets it into
// raw levels 0..3.
type NVMLSource struct {
	device nvml.Device
}

func NewNVMLSource() (*NVMLSource, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, errFactory.WithData(ErrSourceUnavailable, nvml.ErrorString(ret))
	}

	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, errFactory.WithData(ErrSourceUnavailable, nvml.ErrorString(ret))
	}

	if name, ret := device.GetName(); ret == nvml.SUCCESS {
		logger.Info().Msgf("Detected GPU: %v", name)
	}

	return &NVMLSource{device: device}, nil
}

func (s *NVMLSource) ReadRawLevel() (int, error) {
	temp, ret := s.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, errors.New().WithData(ErrSourceRead, fmt.Sprintf("nvml: %v", nvml.ErrorString(ret)))
	}

	switch {
	case int(temp) >= nvmlCriticalThreshold:
		return int(Critical), nil
	case int(temp) >= nvmlSeriousThreshold:
		return int(Serious), nil
	case int(temp) >= nvmlFairThreshold:
		return int(Fair), nil
	default:
		return int(Normal), nil
	}
}

// Close releases the NVML handle.
func (s *NVMLSource) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return errors.New().WithData(ErrSourceUnavailable, nvml.ErrorString(ret))
	}
	return nil
}
