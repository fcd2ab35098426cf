package ge

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/ge/alloc"
	"github.com/gogpu/ge/backend/wgpu"
	"github.com/gogpu/ge/bufpool"
	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/pipeline"
	"github.com/gogpu/ge/resource"
	"github.com/gogpu/ge/surface"
)

// RecordingContext records surface work. It is implemented only by
// *DirectContext, which owns a device and executes work at Flush, and
// *DeferredContext, which records work for a DirectContext to replay.
//
// A RecordingContext and everything created from it must be used from one
// goroutine at a time.
type RecordingContext interface {
	// Caps returns the device capabilities work is recorded against.
	Caps() gpucore.Caps

	// ProxyProvider returns the provider of texture proxies for surfaces
	// recorded by this context.
	ProxyProvider() *surface.ProxyProvider

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	base() *recorder
}

// recorder is the state shared by both context kinds: the proxy provider
// and the tasks recorded since the last flush or snap.
type recorder struct {
	caps    gpucore.Caps
	proxies *surface.ProxyProvider
	tasks   []task
	closed  bool
}

func (r *recorder) base() *recorder { return r }

// Caps implements RecordingContext.
func (r *recorder) Caps() gpucore.Caps { return r.caps }

// ProxyProvider implements RecordingContext.
func (r *recorder) ProxyProvider() *surface.ProxyProvider { return r.proxies }

// IsClosed implements RecordingContext.
func (r *recorder) IsClosed() bool { return r.closed }

// NumPendingTasks returns the number of tasks recorded since the last
// flush or snap.
func (r *recorder) NumPendingTasks() int { return len(r.tasks) }

// addTask takes ownership of t, releasing it if the context is closed.
func (r *recorder) addTask(t task) error {
	if r.closed {
		t.release()
		return ErrContextClosed
	}
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *recorder) takeTasks() []task {
	tasks := r.tasks
	r.tasks = nil
	return tasks
}

func (r *recorder) close() {
	releaseTasks(r.takeTasks())
	r.closed = true
}

func releaseTasks(tasks []task) {
	for _, t := range tasks {
		t.release()
	}
}

// Stats reports DirectContext activity since creation.
type Stats struct {
	Flushes        int
	FlushesDropped int
	TasksExecuted  int
	TasksDropped   int
	DrawsSkipped   int

	Resources resource.Stats
	Pipelines pipeline.CacheStats
	Vertices  bufpool.Stats
	Instances bufpool.Stats
	Indices   bufpool.Stats
}

// DirectContext owns a device and the caches, pools and allocator that
// turn recorded tasks into GPU work.
type DirectContext struct {
	recorder

	device     gpucore.Device
	ownsDevice bool
	config     Config

	resources  *resource.Provider
	allocator  *alloc.Allocator
	cpuBuffers *bufpool.CpuBufferCache
	vertices   *bufpool.VertexPool
	instances  *bufpool.InstancePool
	indices    *bufpool.AllocPool
	pipelines  *pipeline.Cache

	stats Stats
}

var (
	_ RecordingContext = (*DirectContext)(nil)
	_ RecordingContext = (*DeferredContext)(nil)
)

// NewDirectContext returns a context executing work on device. The device
// stays owned by the caller unless WithOwnedDevice is given.
func NewDirectContext(device gpucore.Device, opts ...Option) (*DirectContext, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	cfg := o.config

	resources := resource.NewProvider(device, resource.NewCache(cfg.ResourceBudget()))
	cpuBuffers := bufpool.NewCpuBufferCache(cfg.CpuBufferSlots, int(cfg.BufferBlockSize))
	dc := &DirectContext{
		recorder: recorder{
			caps:    device.Caps(),
			proxies: surface.NewProxyProvider(resources),
		},
		device:     device,
		ownsDevice: o.ownsDevice,
		config:     cfg,
		resources:  resources,
		allocator:  alloc.New(resources),
		cpuBuffers: cpuBuffers,
		vertices:   bufpool.NewVertexPool(device, cpuBuffers, cfg.BufferBlockSize),
		instances:  bufpool.NewInstancePool(device, cpuBuffers, cfg.BufferBlockSize),
		indices:    bufpool.NewAllocPool(device, cpuBuffers, gpucore.BufferUsageIndex, cfg.IndexBlockSize),
		pipelines:  pipeline.NewCache(device, cfg.PipelineCacheSize),
	}
	propagateLogger(device)
	Logger().Info("ge: direct context created",
		"budgetMB", cfg.ResourceBudgetMB,
		"maxTextureSize", dc.caps.MaxTextureSize,
		"maxTextureSamplers", dc.caps.MaxTextureSamplers)
	return dc, nil
}

// NewDirectContextFromProvider wraps the HAL device of a host provider,
// such as a gogpu window, in the wgpu backend. The backend wrapper is
// destroyed by Close; the host device is not.
func NewDirectContextFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*DirectContext, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	device, err := wgpu.FromProvider(provider, o.wgpuOptions...)
	if err != nil {
		return nil, fmt.Errorf("ge: wrap provider device: %w", err)
	}
	dc, err := NewDirectContext(device, append(opts, WithOwnedDevice())...)
	if err != nil {
		device.Destroy()
		return nil, err
	}
	return dc, nil
}

// Device returns the device work executes on.
func (dc *DirectContext) Device() gpucore.Device { return dc.device }

// Config returns the configuration the context was created with.
func (dc *DirectContext) Config() Config { return dc.config }

// ResourceProvider returns the provider of textures and buffers.
func (dc *DirectContext) ResourceProvider() *resource.Provider { return dc.resources }

// PipelineCache returns the pipeline state cache.
func (dc *DirectContext) PipelineCache() *pipeline.Cache { return dc.pipelines }

// Stats returns activity counters and a snapshot of the caches and pools.
func (dc *DirectContext) Stats() Stats {
	s := dc.stats
	s.Resources = dc.resources.Cache().Stats()
	s.Pipelines = dc.pipelines.Stats()
	s.Vertices = dc.vertices.Pool().Stats()
	s.Instances = dc.instances.Pool().Stats()
	s.Indices = dc.indices.Stats()
	return s
}

// SetResourceBudget changes the texture cache budget, purging idle
// textures if the cache is now over it.
func (dc *DirectContext) SetResourceBudget(bytes int64) {
	dc.resources.Cache().SetMaxBytes(bytes)
}

// PurgeUnlockedResources destroys every cached texture nothing references.
func (dc *DirectContext) PurgeUnlockedResources() {
	dc.resources.Cache().PurgeUnlocked()
}

// Replay queues the tasks of a recording made by a DeferredContext. A
// recording can be replayed once.
func (dc *DirectContext) Replay(rec *Recording) error {
	if dc.closed {
		return ErrContextClosed
	}
	if rec == nil || rec.consumed {
		return ErrRecordingReplayed
	}
	maxSize := dc.caps.MaxTextureSize
	for _, t := range rec.tasks {
		var err error
		t.visitProxies(func(p *surface.TextureProxy) {
			if err == nil && maxSize > 0 && (p.Width() > maxSize || p.Height() > maxSize) {
				err = fmt.Errorf("%w: proxy %d is %dx%d, device allows %d",
					surface.ErrInvalidDesc, p.ID(), p.Width(), p.Height(), maxSize)
			}
		})
		if err != nil {
			return fmt.Errorf("ge: replay: %w", err)
		}
	}
	rec.consumed = true
	dc.tasks = append(dc.tasks, rec.tasks...)
	Logger().Debug("ge: recording replayed", "tasks", len(rec.tasks))
	rec.tasks = nil
	return nil
}

// Flush instantiates the textures the pending tasks use, uploads their
// geometry and executes them.
//
// If the textures of all tasks do not fit the resource budget, tasks are
// retried one at a time and those that still do not fit are dropped, along
// with later tasks that use their targets; the returned error then wraps
// ErrOverBudget. If instantiation fails for any other reason the rest of
// the flush is dropped and the error wraps ErrFlushDropped. Task references
// are released in every case.
func (dc *DirectContext) Flush() error {
	if dc.closed {
		return ErrContextClosed
	}
	tasks := dc.takeTasks()
	defer releaseTasks(tasks)

	dc.pipelines.ReleaseRetired()
	if len(tasks) == 0 {
		return nil
	}
	dc.stats.Flushes++

	err := dc.allocate(tasks)
	switch {
	case err == nil:
		err = dc.execute(tasks)
		dc.allocator.Reset()
		return err

	case errors.Is(err, ErrOverBudget):
		dc.allocator.Reset()
		Logger().Warn("ge: flush over budget, executing tasks one at a time", "tasks", len(tasks))
		return dc.flushEach(tasks)

	default:
		dc.allocator.Reset()
		dc.stats.FlushesDropped++
		dc.stats.TasksDropped += len(tasks)
		Logger().Warn("ge: flush dropped", "tasks", len(tasks), "err", err)
		return fmt.Errorf("%w: %w", ErrFlushDropped, err)
	}
}

// flushEach allocates and executes tasks one at a time. Tasks that do not
// fit the budget are dropped, and so is every later task that uses a
// surface a dropped task should have drawn into. Any other allocation
// failure drops the rest of the flush.
func (dc *DirectContext) flushEach(tasks []task) error {
	var errs []error
	stale := make(map[*surface.TextureProxy]bool)
	dropped := 0
	overBudget := func() error {
		if dropped == 0 {
			return nil
		}
		dc.stats.TasksDropped += dropped
		return fmt.Errorf("%w: %d of %d", ErrOverBudget, dropped, len(tasks))
	}

	for i, t := range tasks {
		if touches(t, stale) {
			dropped++
			stale[t.writes()] = true
			continue
		}
		one := []task{t}
		err := dc.allocate(one)
		switch {
		case err == nil:
			if err := dc.execute(one); err != nil {
				stale[t.writes()] = true
				errs = append(errs, err)
			}
			dc.allocator.Reset()
		case errors.Is(err, ErrOverBudget):
			dc.allocator.Reset()
			dropped++
			stale[t.writes()] = true
		default:
			dc.allocator.Reset()
			rest := len(tasks) - i
			dc.stats.FlushesDropped++
			dc.stats.TasksDropped += rest
			Logger().Warn("ge: flush dropped", "tasks", rest, "err", err)
			errs = append(errs, overBudget(), fmt.Errorf("%w: %w", ErrFlushDropped, err))
			return errors.Join(errs...)
		}
	}
	errs = append(errs, overBudget())
	return errors.Join(errs...)
}

// allocate plans and assigns textures for tasks, one allocator operation
// per task. It returns ErrOverBudget if the plan does not fit the budget.
func (dc *DirectContext) allocate(tasks []task) error {
	a := dc.allocator
	for _, t := range tasks {
		op := a.CurOp()
		t.visitProxies(func(p *surface.TextureProxy) {
			a.AddInterval(p, op, op, true)
		})
		a.IncOps()
	}
	if err := a.PlanAssignment(); err != nil {
		return err
	}
	if !a.MakeBudgetHeadroom() {
		return ErrOverBudget
	}
	return a.Assign()
}

// execute writes the geometry of tasks, uploads it and runs the tasks.
// Each task is submitted on its own since pipeline states rewrite one
// uniform buffer per draw.
func (dc *DirectContext) execute(tasks []task) error {
	var errs []error
	ready := make([]task, 0, len(tasks))
	stale := make(map[*surface.TextureProxy]bool)
	for _, t := range tasks {
		if touches(t, stale) {
			dc.stats.TasksDropped++
			stale[t.writes()] = true
			continue
		}
		if err := t.prepare(dc); err != nil {
			Logger().Warn("ge: task dropped while writing geometry", "err", err)
			dc.stats.TasksDropped++
			stale[t.writes()] = true
			errs = append(errs, err)
			continue
		}
		ready = append(ready, t)
	}
	defer dc.resetPools()

	if err := dc.flushPools(); err != nil {
		dc.stats.TasksDropped += len(ready)
		return errors.Join(append(errs, fmt.Errorf("%w: upload: %w", ErrFlushDropped, err))...)
	}
	for _, t := range ready {
		if touches(t, stale) {
			dc.stats.TasksDropped++
			stale[t.writes()] = true
			continue
		}
		if err := t.execute(dc); err != nil {
			dc.stats.TasksDropped++
			stale[t.writes()] = true
			errs = append(errs, err)
			continue
		}
		dc.stats.TasksExecuted++
	}
	return errors.Join(errs...)
}

func (dc *DirectContext) flushPools() error {
	return errors.Join(dc.vertices.Flush(), dc.instances.Flush(), dc.indices.Flush())
}

func (dc *DirectContext) resetPools() {
	dc.vertices.Reset()
	dc.instances.Reset()
	dc.indices.Reset()
}

// Close releases pending tasks, pools, pipeline states and cached
// textures, and the device if the context owns it. Surface contexts still
// open on this context can only be closed afterwards.
func (dc *DirectContext) Close() error {
	if dc.closed {
		return ErrContextClosed
	}
	dc.recorder.close()
	dc.allocator.Reset()
	dc.vertices.Destroy()
	dc.instances.Destroy()
	dc.indices.Destroy()
	dc.cpuBuffers.ReleaseAll()
	dc.pipelines.Destroy()
	dc.resources.Cache().ReleaseAll()
	if dc.ownsDevice {
		dc.device.Destroy()
	}
	Logger().Info("ge: direct context closed",
		"flushes", dc.stats.Flushes, "tasksExecuted", dc.stats.TasksExecuted)
	return nil
}

// DeferredContext records work without a device. Snap packages the
// recorded tasks into a Recording that a DirectContext replays.
type DeferredContext struct {
	recorder
}

// NewDeferredContext returns a context recording against caps, normally
// the Caps of the DirectContext that will replay its recordings.
func NewDeferredContext(caps gpucore.Caps) *DeferredContext {
	return &DeferredContext{
		recorder: recorder{
			caps:    caps,
			proxies: surface.NewDeferredProxyProvider(caps),
		},
	}
}

// Snap moves the tasks recorded so far into a Recording.
func (d *DeferredContext) Snap() (*Recording, error) {
	if d.closed {
		return nil, ErrContextClosed
	}
	return &Recording{tasks: d.takeTasks()}, nil
}

// Close releases pending tasks. Recordings already snapped stay valid.
func (d *DeferredContext) Close() error {
	if d.closed {
		return ErrContextClosed
	}
	d.recorder.close()
	return nil
}

// Recording is a sequence of tasks from a DeferredContext. It holds
// references to the proxies its tasks use until it is replayed or
// released.
type Recording struct {
	tasks    []task
	consumed bool
}

// NumTasks returns the number of recorded tasks.
func (r *Recording) NumTasks() int { return len(r.tasks) }

// Release drops a recording that will not be replayed.
func (r *Recording) Release() {
	if r.consumed {
		return
	}
	r.consumed = true
	releaseTasks(r.tasks)
	r.tasks = nil
}
