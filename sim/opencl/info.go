// Package opencl provides an accelerator execution backend that evaluates
// the diffraction integration on an OpenCL device. The real implementation
// is compiled in with the "cl" build tag; without it the package exposes
// stubs that report the accelerator as unavailable so that callers always
// degrade to the reference backend.
package opencl

import (
	"bytes"
	"fmt"
	"regexp"
)

var indentRegex = regexp.MustCompile("(?m)^")

// Information about an OpenCL device.
type DeviceInfo struct {
	Name   string
	Vendor string
	Type   string

	// Speed estimate derived from compute units and clock frequency.
	Speed uint32

	// Whether the device advertises double precision support.
	DoublePrecision bool
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf(
		"Name:   %s\nVendor: %s\nType:   %s\nSpeed:  %d\nFP64:   %t",
		d.Name, d.Vendor, d.Type, d.Speed, d.DoublePrecision,
	)
}

// Information about a system's OpenCL platform and its devices.
type PlatformInfo struct {
	Profile string
	Version string
	Name    string
	Vendor  string
	Devices []DeviceInfo
}

func (pl PlatformInfo) String() string {
	var buf bytes.Buffer

	buf.WriteString(
		fmt.Sprintf(
			"Version: %s\nName:    %s\nVendor:  %s\nDevices:\n",
			pl.Version, pl.Name, pl.Vendor,
		),
	)

	for dIdx, d := range pl.Devices {
		buf.WriteString(fmt.Sprintf("  Device %02d:\n", dIdx))
		buf.WriteString(indentRegex.ReplaceAllString(d.String(), "    "))
		buf.WriteString("\n\n")
	}

	return buf.String()
}
