package alloc

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/gputest"
	"github.com/gogpu/ge/resource"
	"github.com/gogpu/ge/surface"
)

type fixture struct {
	dev *gputest.Device
	pp  *surface.ProxyProvider
	rp  *resource.Provider
	a   *Allocator
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	rp := resource.NewProvider(dev, resource.NewCache(maxBytes))
	return &fixture{dev: dev, pp: surface.NewProxyProvider(rp), rp: rp, a: New(rp)}
}

func (f *fixture) proxy(t *testing.T, w, h int) *surface.TextureProxy {
	t.Helper()
	p, err := f.pp.CreateTextureProxy(surface.ProxyDesc{
		Width: w, Height: h,
		Format:     gputypes.TextureFormatRGBA8Unorm,
		Renderable: true,
		Budgeted:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatalf("PlanAssignment: %v", err)
	}
	if err := f.a.Assign(); err != nil {
		t.Fatalf("Assign: %v", err)
	}
}

func TestDisjointIntervalsShareRegister(t *testing.T) {
	f := newFixture(t, 0)
	p1 := f.proxy(t, 64, 64)
	p2 := f.proxy(t, 64, 64)
	f.a.AddInterval(p1, 0, 2, true)
	f.a.AddInterval(p2, 3, 5, true)
	f.run(t)

	if f.a.NumRegisters() != 1 {
		t.Fatalf("NumRegisters = %d, want 1", f.a.NumRegisters())
	}
	if f.a.RegisterIndex(p1) != f.a.RegisterIndex(p2) {
		t.Error("disjoint proxies got different registers")
	}
	if p1.PeekTexture() == nil || p1.PeekTexture() != p2.PeekTexture() {
		t.Error("proxies do not share a texture")
	}
	if len(f.dev.Textures) != 1 {
		t.Errorf("created %d textures, want 1", len(f.dev.Textures))
	}
	if p1.Resource().RefCount() != 2 {
		t.Errorf("shared texture RefCount = %d, want 2", p1.Resource().RefCount())
	}
}

func TestOverlappingIntervalsGetDistinctRegisters(t *testing.T) {
	f := newFixture(t, 0)
	p1 := f.proxy(t, 64, 64)
	p2 := f.proxy(t, 64, 64)
	f.a.AddInterval(p1, 0, 3, true)
	f.a.AddInterval(p2, 1, 5, true)
	f.run(t)

	if f.a.NumRegisters() != 2 {
		t.Fatalf("NumRegisters = %d, want 2", f.a.NumRegisters())
	}
	if p1.PeekTexture() == p2.PeekTexture() {
		t.Error("overlapping proxies share a texture")
	}
}

func TestRegisterNotRecycledWithOutsideRefs(t *testing.T) {
	f := newFixture(t, 0)
	p1 := f.proxy(t, 64, 64)
	p1.Ref() // held by someone who reads it after the flush
	p2 := f.proxy(t, 64, 64)
	f.a.AddInterval(p1, 0, 1, true)
	f.a.AddInterval(p2, 2, 3, true)
	f.run(t)

	if f.a.NumRegisters() != 2 {
		t.Errorf("NumRegisters = %d, want 2", f.a.NumRegisters())
	}
}

func TestRegisterNotRecycledAcrossShapes(t *testing.T) {
	f := newFixture(t, 0)
	p1 := f.proxy(t, 64, 64)
	p2 := f.proxy(t, 32, 64)
	f.a.AddInterval(p1, 0, 0, true)
	f.a.AddInterval(p2, 1, 1, true)
	f.run(t)

	if f.a.NumRegisters() != 2 {
		t.Errorf("NumRegisters = %d, want 2", f.a.NumRegisters())
	}
}

func TestAddIntervalExtends(t *testing.T) {
	f := newFixture(t, 0)
	p := f.proxy(t, 8, 8)
	f.a.AddInterval(p, 2, 3, true)
	f.a.AddInterval(p, 2, 7, true)
	f.a.AddInterval(p, 4, 5, false)

	ivs := f.a.Intervals()
	if len(ivs) != 1 {
		t.Fatalf("intervals = %d, want 1", len(ivs))
	}
	if iv := ivs[0]; iv.Start() != 2 || iv.End() != 7 || iv.Uses() != 2 {
		t.Errorf("interval = [%d, %d] uses %d, want [2, 7] uses 2", iv.Start(), iv.End(), iv.Uses())
	}
}

func TestIntervalsSortedByStart(t *testing.T) {
	f := newFixture(t, 0)
	starts := []int{4, 1, 3, 1, 0}
	for _, s := range starts {
		f.a.AddInterval(f.proxy(t, 8, 8), s, s+1, true)
	}
	prev := -1
	for _, iv := range f.a.Intervals() {
		if iv.Start() < prev {
			t.Fatalf("intervals not sorted: %d after %d", iv.Start(), prev)
		}
		prev = iv.Start()
	}
}

func TestReusesCachedScratchTexture(t *testing.T) {
	f := newFixture(t, 0)
	key := resource.ScratchKey{Width: 64, Height: 64, Format: gputypes.TextureFormatRGBA8Unorm, SampleCount: 1, Renderable: true}
	cached, err := f.rp.CreateTexture(key, true, "cached")
	if err != nil {
		t.Fatal(err)
	}
	cached.Unref()

	p := f.proxy(t, 64, 64)
	f.a.AddInterval(p, 0, 0, true)
	f.run(t)

	if p.Resource() != cached {
		t.Error("proxy did not get the cached scratch texture")
	}
	if len(f.dev.Textures) != 1 {
		t.Errorf("created %d textures, want 1", len(f.dev.Textures))
	}
	f.a.Reset()
	if cached.RefCount() != 1 {
		t.Errorf("after Reset RefCount = %d, want 1 (held by the proxy)", cached.RefCount())
	}
}

func TestFullyLazyInstantiatedDuringPlan(t *testing.T) {
	f := newFixture(t, 0)
	called := false
	p, err := f.pp.CreateLazyProxy(surface.ProxyDesc{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Fit:    surface.FitApprox,
	}, surface.LazyFully, func(rp *resource.Provider, key resource.ScratchKey) (surface.LazyResult, error) {
		called = true
		key.Width, key.Height = 20, 10
		tex, err := rp.CreateTexture(key, true, "lazy")
		return surface.LazyResult{Texture: tex}, err
	})
	if err != nil {
		t.Fatal(err)
	}
	f.a.AddInterval(p, 0, 1, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	if !called || !p.IsInstantiated() || p.Width() != 20 {
		t.Errorf("fully lazy proxy not resolved during planning: called=%v w=%d", called, p.Width())
	}
	if f.a.NumRegisters() != 0 {
		t.Error("lazy proxy got a register")
	}
}

func TestPartiallyLazyInstantiatedDuringAssign(t *testing.T) {
	f := newFixture(t, 0)
	p, _ := f.pp.CreateLazyProxy(surface.ProxyDesc{
		Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm,
	}, surface.LazyPartially, func(rp *resource.Provider, key resource.ScratchKey) (surface.LazyResult, error) {
		tex, err := rp.CreateTexture(key, false, "lazy")
		return surface.LazyResult{Texture: tex}, err
	})
	f.a.AddInterval(p, 0, 0, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	if p.IsInstantiated() {
		t.Fatal("partially lazy proxy instantiated during planning")
	}
	if err := f.a.Assign(); err != nil {
		t.Fatal(err)
	}
	if !p.IsInstantiated() {
		t.Error("partially lazy proxy not instantiated by Assign")
	}
}

func TestFailedLazyPlanDropsFlush(t *testing.T) {
	f := newFixture(t, 0)
	p, _ := f.pp.CreateLazyProxy(surface.ProxyDesc{
		Format: gputypes.TextureFormatRGBA8Unorm,
		Fit:    surface.FitApprox,
	}, surface.LazyFully, func(*resource.Provider, resource.ScratchKey) (surface.LazyResult, error) {
		return surface.LazyResult{}, nil
	})
	f.a.AddInterval(p, 0, 0, true)
	if err := f.a.PlanAssignment(); !errors.Is(err, ErrInstantiationFailed) {
		t.Errorf("PlanAssignment err = %v", err)
	}
	if !f.a.FailedInstantiation() {
		t.Error("FailedInstantiation = false")
	}
	if err := f.a.Assign(); !errors.Is(err, ErrInstantiationFailed) {
		t.Errorf("Assign err = %v", err)
	}
}

func TestAssignFailure(t *testing.T) {
	f := newFixture(t, 0)
	p := f.proxy(t, 8, 8)
	f.a.AddInterval(p, 0, 0, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	f.dev.FailTextures = true
	err := f.a.Assign()
	if !errors.Is(err, ErrInstantiationFailed) || !errors.Is(err, gputest.ErrInjected) {
		t.Errorf("Assign err = %v", err)
	}
	if p.IsInstantiated() {
		t.Error("proxy instantiated despite failure")
	}
}

func TestMakeBudgetHeadroom(t *testing.T) {
	f := newFixture(t, 64*64*4)
	p1 := f.proxy(t, 64, 64)
	p2 := f.proxy(t, 64, 64)
	f.a.AddInterval(p1, 0, 1, true)
	f.a.AddInterval(p2, 1, 2, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	if f.a.MakeBudgetHeadroom() {
		t.Error("two overlapping 16KB textures reported to fit a 16KB budget")
	}

	f.a.Reset()
	f.a.AddInterval(p1, 0, 0, true)
	f.a.AddInterval(p2, 1, 1, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	if !f.a.MakeBudgetHeadroom() {
		t.Error("one shared register should fit the budget")
	}
}

func TestMakeBudgetHeadroomRepeatable(t *testing.T) {
	f := newFixture(t, 64*64*4)
	p1 := f.proxy(t, 64, 64)
	p2 := f.proxy(t, 64, 64)
	f.a.AddInterval(p1, 0, 1, true)
	f.a.AddInterval(p2, 1, 2, true)
	if err := f.a.PlanAssignment(); err != nil {
		t.Fatal(err)
	}
	const want = 2 * 64 * 64 * 4
	for i := 0; i < 3; i++ {
		if got := f.a.PendingBytes(); got != want {
			t.Fatalf("call %d: PendingBytes = %d, want %d", i, got, want)
		}
		if f.a.MakeBudgetHeadroom() {
			t.Fatalf("call %d: over-budget plan reported to fit", i)
		}
	}
}

func TestSkippedAndReadOnlyProxies(t *testing.T) {
	f := newFixture(t, 0)
	raw, _ := f.dev.CreateTexture(&gpucoreDesc)
	wrapped := f.pp.WrapTexture(raw)
	f.a.AddInterval(wrapped, 0, 0, true)

	resolved := false
	ro, _ := f.pp.CreateLazyProxy(surface.ProxyDesc{
		Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, Flags: surface.FlagReadOnly,
	}, surface.LazyPartially, func(rp *resource.Provider, key resource.ScratchKey) (surface.LazyResult, error) {
		resolved = true
		tex, err := rp.CreateTexture(key, false, "ro")
		return surface.LazyResult{Texture: tex}, err
	})
	f.a.AddInterval(ro, 0, 0, true)

	if len(f.a.Intervals()) != 0 {
		t.Errorf("intervals = %d, want 0", len(f.a.Intervals()))
	}
	if !resolved || !ro.IsInstantiated() {
		t.Error("read-only lazy proxy not resolved by AddInterval")
	}
}

func TestResetAllowsReplanning(t *testing.T) {
	f := newFixture(t, 0)
	p := f.proxy(t, 8, 8)
	f.a.AddInterval(p, 0, 0, true)
	f.a.IncOps()
	if f.a.CurOp() != 1 {
		t.Errorf("CurOp = %d", f.a.CurOp())
	}
	f.run(t)
	f.a.Reset()
	if f.a.CurOp() != 0 || f.a.NumRegisters() != 0 || len(f.a.Intervals()) != 0 {
		t.Error("Reset left state behind")
	}
	q := f.proxy(t, 8, 8)
	f.a.AddInterval(q, 0, 0, true)
	f.run(t)
	if !q.IsInstantiated() {
		t.Error("second flush did not instantiate")
	}
}

var gpucoreDesc = gpucore.TextureDesc{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm, SampleCount: 1}
