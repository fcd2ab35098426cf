package ge

import (
	"testing"

	"github.com/gogpu/ge/backend/wgpu"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.config != DefaultConfig() {
		t.Errorf("defaultOptions().config = %+v, want DefaultConfig()", o.config)
	}
	if o.ownsDevice {
		t.Error("defaultOptions() owns the device")
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		check func(t *testing.T, o *options)
	}{
		{"ResourceBudget", WithResourceBudget(3<<20 + 1), func(t *testing.T, o *options) {
			if o.config.ResourceBudgetMB != 4 {
				t.Errorf("ResourceBudgetMB = %d, want 4", o.config.ResourceBudgetMB)
			}
		}},
		{"BufferBlockSize", WithBufferBlockSize(1 << 12), func(t *testing.T, o *options) {
			if o.config.BufferBlockSize != 1<<12 {
				t.Errorf("BufferBlockSize = %d, want 4096", o.config.BufferBlockSize)
			}
		}},
		{"PipelineCacheSize", WithPipelineCacheSize(7), func(t *testing.T, o *options) {
			if o.config.PipelineCacheSize != 7 {
				t.Errorf("PipelineCacheSize = %d, want 7", o.config.PipelineCacheSize)
			}
		}},
		{"OwnedDevice", WithOwnedDevice(), func(t *testing.T, o *options) {
			if !o.ownsDevice {
				t.Error("ownsDevice = false")
			}
		}},
		{"BackendOptions", WithBackendOptions(wgpu.WithSPIRV(), wgpu.WithSkipErrorChecks()), func(t *testing.T, o *options) {
			if len(o.wgpuOptions) != 2 {
				t.Errorf("len(wgpuOptions) = %d, want 2", len(o.wgpuOptions))
			}
		}},
		{"Config", WithConfig(Config{ResourceBudgetMB: 1}), func(t *testing.T, o *options) {
			if o.config.ResourceBudgetMB != 1 || o.config.CpuBufferSlots != 0 {
				t.Errorf("config = %+v, want the given config", o.config)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			tt.check(t, &o)
		})
	}
}

func TestNewDirectContextInvalidConfig(t *testing.T) {
	_, err := NewDirectContext(newTestDevice(), WithBufferBlockSize(3))
	if err == nil {
		t.Fatal("NewDirectContext with block size 3 succeeded")
	}
}
