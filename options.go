package ge

import "github.com/gogpu/ge/backend/wgpu"

// Option configures a recording context during creation.
//
// Example:
//
//	cfg, err := ge.LoadConfig("ge.toml")
//	if err != nil {
//		return err
//	}
//	dc, err := ge.NewDirectContext(device, ge.WithConfig(cfg))
type Option func(*options)

// options holds optional configuration for context creation.
type options struct {
	config      Config
	ownsDevice  bool
	wgpuOptions []wgpu.Option
}

// defaultOptions returns the default context options.
func defaultOptions() options {
	return options{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithResourceBudget sets the texture cache budget in bytes, rounded up to
// whole MiB.
func WithResourceBudget(bytes int64) Option {
	return func(o *options) {
		o.config.ResourceBudgetMB = int((bytes + 1<<20 - 1) >> 20)
	}
}

// WithBufferBlockSize sets the minimum vertex and instance pool block size.
func WithBufferBlockSize(n int64) Option {
	return func(o *options) {
		o.config.BufferBlockSize = n
	}
}

// WithPipelineCacheSize sets the soft limit on cached pipeline states.
func WithPipelineCacheSize(n int) Option {
	return func(o *options) {
		o.config.PipelineCacheSize = n
	}
}

// WithOwnedDevice makes Close destroy the device.
func WithOwnedDevice() Option {
	return func(o *options) {
		o.ownsDevice = true
	}
}

// WithBackendOptions passes options to the wgpu backend created by
// NewDirectContextFromProvider.
func WithBackendOptions(opts ...wgpu.Option) Option {
	return func(o *options) {
		o.wgpuOptions = append(o.wgpuOptions, opts...)
	}
}
