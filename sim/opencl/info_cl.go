//go:build cl

package opencl

import (
	"fmt"
	"strings"

	"github.com/jgillich/go-opencl/cl"

	"laue/sim"
)

// Get information about the available OpenCL platforms and devices.
func GetPlatformInfo() ([]PlatformInfo, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sim.ErrBackendUnavailable, err)
	}

	infoList := make([]PlatformInfo, 0, len(platforms))
	for _, p := range platforms {
		info := PlatformInfo{
			Profile: p.Profile(),
			Version: p.Version(),
			Name:    p.Name(),
			Vendor:  p.Vendor(),
		}

		devices, derr := p.GetDevices(cl.DeviceTypeAll)
		if derr != nil {
			infoList = append(infoList, info)
			continue
		}
		for _, d := range devices {
			info.Devices = append(info.Devices, DeviceInfo{
				Name:            d.Name(),
				Vendor:          d.Vendor(),
				Type:            d.Type().String(),
				Speed:           deviceSpeed(d),
				DoublePrecision: strings.Contains(d.Extensions(), "cl_khr_fp64"),
			})
		}
		infoList = append(infoList, info)
	}

	return infoList, nil
}
