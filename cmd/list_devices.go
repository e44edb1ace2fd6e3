package cmd

import (
	"bytes"
	"fmt"

	"github.com/urfave/cli"

	"laue/sim/opencl"
)

// List available opencl devices.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	platforms, err := opencl.GetPlatformInfo()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nSystem provides %d opencl platform(s):\n\n", len(platforms)))
	for pIdx, platform := range platforms {
		buf.WriteString(fmt.Sprintf(
			"[Platform %02d]\n  Name    %s\n  Version %s\n  Profile %s\n  Devices %d\n\n",
			pIdx, platform.Name, platform.Version, platform.Profile, len(platform.Devices),
		))
		for dIdx, device := range platform.Devices {
			buf.WriteString(fmt.Sprintf(
				"  [Device %02d]\n    Name  %s\n    Type  %s\n    Speed %d\n    FP64  %t\n\n",
				dIdx, device.Name, device.Type, device.Speed, device.DoublePrecision,
			))
		}
	}

	logger.Notice(buf.String())
	return nil
}
