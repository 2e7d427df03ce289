package gpu

import (
	"fmt"

	"github.com/robvanmieghem/go-opencl/cl"

	"github.com/tari-project/graxil/internal/util"
)

// Device wraps one detected OpenCL GPU
type Device struct {
	cl           *cl.Device
	deviceID     int
	platformName string
}

// DetectDevices enumerates all OpenCL GPU devices across platforms
func DetectDevices() ([]*Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, fmt.Errorf("enumerating OpenCL platforms: %w", err)
	}

	var devices []*Device
	id := 0
	for _, platform := range platforms {
		clDevices, err := platform.GetDevices(cl.DeviceTypeGPU)
		if err != nil {
			util.Debugf("Platform %s has no GPU devices: %v", platform.Name(), err)
			continue
		}
		for _, d := range clDevices {
			devices = append(devices, &Device{
				cl:           d,
				deviceID:     id,
				platformName: platform.Name(),
			})
			id++
		}
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no OpenCL GPU devices found")
	}
	return devices, nil
}

// Name returns the device name
func (d *Device) Name() string {
	return d.cl.Name()
}

// DeviceID returns the sequential detection index
func (d *Device) DeviceID() int {
	return d.deviceID
}

// PlatformName returns the OpenCL platform this device belongs to
func (d *Device) PlatformName() string {
	return d.platformName
}

// Vendor returns the device vendor string
func (d *Device) Vendor() string {
	return d.cl.Vendor()
}

// MaxComputeUnits returns the device's compute unit count
func (d *Device) MaxComputeUnits() int {
	return d.cl.MaxComputeUnits()
}

// MaxWorkGroupSize returns the device's work group size limit
func (d *Device) MaxWorkGroupSize() int {
	return d.cl.MaxWorkGroupSize()
}

// GlobalMemSize returns the device memory size in bytes
func (d *Device) GlobalMemSize() int64 {
	return d.cl.GlobalMemSize()
}

// Descriptor builds the serializable descriptor for the information file
func (d *Device) Descriptor() DeviceDescriptor {
	return DeviceDescriptor{
		Name:             d.Name(),
		DeviceID:         d.deviceID,
		PlatformName:     d.platformName,
		Vendor:           d.Vendor(),
		MaxWorkGroupSize: d.MaxWorkGroupSize(),
		MaxComputeUnits:  d.MaxComputeUnits(),
		GlobalMemSize:    uint64(d.GlobalMemSize()),
		DeviceType:       "GPU",
	}
}

// Info returns a one-line summary for logs
func (d *Device) Info() string {
	return fmt.Sprintf("%s (%s, %d CU, %d MB)",
		d.Name(), d.platformName, d.MaxComputeUnits(), d.GlobalMemSize()/(1024*1024))
}
