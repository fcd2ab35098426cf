package wgpu

import "github.com/gogpu/gputypes"

// Option configures a Device.
type Option func(*options)

type options struct {
	limits     gputypes.Limits
	spirv      bool
	skipChecks bool
	ownsDevice bool
}

func defaultOptions() options {
	return options{limits: gputypes.DefaultLimits()}
}

// WithLimits sets the limits the device was opened with.
// Defaults to gputypes.DefaultLimits().
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

// WithSPIRV compiles WGSL shader sources to SPIR-V with naga before
// creating shader modules.
func WithSPIRV() Option {
	return func(o *options) {
		o.spirv = true
	}
}

// WithSkipErrorChecks reports Caps.SkipErrorChecks.
func WithSkipErrorChecks() Option {
	return func(o *options) {
		o.skipChecks = true
	}
}

// WithOwnedDevice makes Device.Destroy also destroy the HAL device.
func WithOwnedDevice() Option {
	return func(o *options) {
		o.ownsDevice = true
	}
}
