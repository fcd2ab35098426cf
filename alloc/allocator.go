package alloc

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/ge/internal/logging"
	"github.com/gogpu/ge/resource"
	"github.com/gogpu/ge/surface"
)

// ErrInstantiationFailed is returned when a proxy could not be given a
// texture. The flush that planned it must be dropped.
var ErrInstantiationFailed = errors.New("alloc: instantiation failed")

// Interval is the span of operation indices over which a proxy is used.
type Interval struct {
	proxy    *surface.TextureProxy
	start    int
	end      int
	uses     int
	register *Register
}

// Proxy returns the proxy the interval tracks.
func (iv *Interval) Proxy() *surface.TextureProxy { return iv.proxy }

// Start returns the first operation index.
func (iv *Interval) Start() int { return iv.start }

// End returns the last operation index.
func (iv *Interval) End() int { return iv.end }

// Uses returns the number of recorded actual uses.
func (iv *Interval) Uses() int { return iv.uses }

// Register is a future texture that one or more proxies with disjoint
// intervals share.
type Register struct {
	index      int
	origin     *surface.TextureProxy
	scratchKey resource.ScratchKey
	uniqueKey  resource.UniqueKey
	existing   *resource.Texture
}

func newRegister(index int, proxy *surface.TextureProxy, scratchKey resource.ScratchKey, provider *resource.Provider) *Register {
	r := &Register{
		index:      index,
		origin:     proxy,
		scratchKey: scratchKey,
		uniqueKey:  proxy.UniqueKey(),
	}
	if scratchKey.IsValid() {
		r.existing = provider.FindScratchTexture(scratchKey)
	} else {
		r.existing = provider.FindByUniqueKey(r.uniqueKey)
	}
	return r
}

// Index returns the register number in creation order.
func (r *Register) Index() int { return r.index }

// HasExisting reports whether a cached texture backs the register.
func (r *Register) HasExisting() bool { return r.existing != nil }

func (r *Register) isRecyclable(proxy *surface.TextureProxy, knownUses int) bool {
	if !r.scratchKey.IsValid() || r.uniqueKey.IsValid() {
		return false
	}
	// Every reference is held by recorded uses, so nobody reads the
	// contents after the interval ends.
	return int(proxy.RefCount()) <= knownUses
}

func (r *Register) instantiate(proxy *surface.TextureProxy, provider *resource.Provider) error {
	tex := r.existing
	switch {
	case tex != nil:
		tex.Ref()
	case proxy == r.origin:
		var err error
		tex, err = proxy.CreateTexture(provider)
		if err != nil {
			return err
		}
	default:
		tex = r.origin.Resource()
		if tex == nil {
			return fmt.Errorf("register %d: originating proxy %d not instantiated", r.index, r.origin.ID())
		}
		tex.Ref()
	}

	if proxy.IsBudgeted() && !tex.IsBudgeted() {
		tex.MakeBudgeted(true)
	}
	if key := proxy.UniqueKey(); key.IsValid() && !tex.UniqueKey().IsValid() {
		provider.AssignUniqueKey(tex, key)
	}
	proxy.Assign(tex)
	return nil
}

func (r *Register) reset() {
	if r.existing != nil {
		r.existing.Unref()
		r.existing = nil
	}
	r.origin = nil
}

// Allocator plans and performs texture assignment for one flush.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	provider *resource.Provider

	intervals []*Interval // increasing start
	byProxy   map[uint32]*Interval
	active    []*Interval // increasing end
	finished  []*Interval // increasing start

	freePool        map[resource.ScratchKey][]*Register
	uniqueRegisters map[resource.UniqueKey]*Register
	registers       []*Register

	numOps   int
	planned  bool
	assigned bool
	failed   bool
}

// New returns an allocator that instantiates through provider.
func New(provider *resource.Provider) *Allocator {
	return &Allocator{
		provider:        provider,
		byProxy:         make(map[uint32]*Interval),
		freePool:        make(map[resource.ScratchKey][]*Register),
		uniqueRegisters: make(map[resource.UniqueKey]*Register),
	}
}

// CurOp returns the index of the operation being recorded.
func (a *Allocator) CurOp() int { return a.numOps }

// IncOps advances to the next operation index.
func (a *Allocator) IncOps() { a.numOps++ }

// FailedInstantiation reports whether any instantiation failed since the
// last Reset.
func (a *Allocator) FailedInstantiation() bool { return a.failed }

// NumRegisters returns the number of registers the plan created.
func (a *Allocator) NumRegisters() int { return len(a.registers) }

// RegisterIndex returns the register planned for proxy, or -1 if the proxy
// has none.
func (a *Allocator) RegisterIndex(proxy *surface.TextureProxy) int {
	for _, iv := range a.intervals {
		if iv.proxy == proxy && iv.register != nil {
			return iv.register.index
		}
	}
	return -1
}

// AddInterval records that proxy is used from operation start through end.
// actualUse counts toward the uses that hold proxy references; intervals
// added only to extend a lifetime pass false.
//
// Proxies that can skip the allocator are ignored. Read-only proxies are
// resolved immediately since their contents never change.
func (a *Allocator) AddInterval(proxy *surface.TextureProxy, start, end int, actualUse bool) {
	if start > end {
		panic(fmt.Sprintf("alloc: interval [%d, %d] ends before it starts", start, end))
	}
	if a.planned {
		panic("alloc: AddInterval after PlanAssignment")
	}
	if proxy.CanSkipAllocator() {
		return
	}
	if proxy.IsReadOnly() {
		if proxy.IsLazy() {
			if err := proxy.DoLazyInstantiation(a.provider); err != nil {
				logging.L().Warn("alloc: read-only lazy proxy failed", "proxy", proxy.ID(), "err", err)
				a.failed = true
			}
		}
		return
	}

	if iv, ok := a.byProxy[proxy.ID()]; ok {
		if actualUse {
			iv.uses++
		}
		iv.end = max(iv.end, end)
		return
	}
	iv := &Interval{proxy: proxy, start: start, end: end}
	if actualUse {
		iv.uses++
	}
	a.intervals = insertByStart(a.intervals, iv)
	a.byProxy[proxy.ID()] = iv
}

// PlanAssignment decides which proxies share registers without creating
// any GPU resources, except for fully lazy proxies whose size is only
// known after instantiation.
func (a *Allocator) PlanAssignment() error {
	if a.planned {
		panic("alloc: PlanAssignment called twice")
	}
	a.planned = true
	clear(a.byProxy)

	for _, cur := range a.intervals {
		a.expire(cur.start)
		a.active = insertByEnd(a.active, cur)

		p := cur.proxy
		if p.IsInstantiated() {
			continue
		}
		if p.IsLazy() {
			if p.IsFullyLazy() {
				if err := p.DoLazyInstantiation(a.provider); err != nil {
					logging.L().Warn("alloc: fully lazy proxy failed", "proxy", p.ID(), "err", err)
					a.failed = true
					break
				}
			}
			continue
		}
		cur.register = a.findOrCreateRegister(p)
	}
	a.expire(math.MaxInt)

	logging.L().Debug("alloc: planned",
		"intervals", len(a.intervals), "registers", len(a.registers), "failed", a.failed)
	if a.failed {
		return ErrInstantiationFailed
	}
	return nil
}

// MakeBudgetHeadroom reports whether the textures the plan still has to
// create fit the resource budget, purging idle cached textures if needed.
// It leaves the plan unchanged and may be called more than once.
func (a *Allocator) MakeBudgetHeadroom() bool {
	return a.provider.Cache().PurgeToMakeHeadroom(a.PendingBytes())
}

// PendingBytes returns the budgeted bytes the plan still has to create.
// Each register is counted once however many proxies share it.
func (a *Allocator) PendingBytes() int64 {
	var bytes int64
	counted := make(map[*Register]bool, len(a.registers))
	for _, iv := range a.finished {
		p := iv.proxy
		if !p.IsBudgeted() || p.IsInstantiated() {
			continue
		}
		if p.IsLazy() {
			bytes += p.MemorySize()
			continue
		}
		r := iv.register
		if r == nil || counted[r] || r.existing != nil {
			continue
		}
		bytes += p.MemorySize()
		counted[r] = true
	}
	return bytes
}

// Assign creates or reuses textures for every planned proxy. On failure
// the flush must be dropped: some proxies may be left without textures.
func (a *Allocator) Assign() error {
	if !a.planned || a.assigned {
		panic("alloc: Assign requires a single preceding PlanAssignment")
	}
	a.assigned = true
	if a.failed {
		return ErrInstantiationFailed
	}

	for _, iv := range a.finished {
		p := iv.proxy
		if p.IsInstantiated() {
			continue
		}
		var err error
		if p.IsLazy() {
			err = p.DoLazyInstantiation(a.provider)
		} else {
			err = iv.register.instantiate(p, a.provider)
		}
		if err != nil {
			a.failed = true
			logging.L().Warn("alloc: instantiation failed", "proxy", p.ID(), "err", err)
			return fmt.Errorf("%w: proxy %d: %w", ErrInstantiationFailed, p.ID(), err)
		}
	}
	return nil
}

// Reset clears all intervals and registers for the next flush.
func (a *Allocator) Reset() {
	for _, r := range a.registers {
		r.reset()
	}
	a.intervals = nil
	a.active = nil
	a.finished = nil
	a.registers = nil
	clear(a.byProxy)
	clear(a.freePool)
	clear(a.uniqueRegisters)
	a.numOps = 0
	a.planned = false
	a.assigned = false
	a.failed = false
}

// Intervals returns the recorded intervals in increasing start order.
func (a *Allocator) Intervals() []*Interval { return a.intervals }

// expire retires active intervals that end before idx, returning
// recyclable registers to the free pool.
func (a *Allocator) expire(idx int) {
	for len(a.active) > 0 && a.active[0].end < idx {
		iv := a.active[0]
		a.active = a.active[1:]
		if r := iv.register; r != nil && r.isRecyclable(iv.proxy, iv.uses) {
			a.freePool[r.scratchKey] = append(a.freePool[r.scratchKey], r)
		}
		a.finished = insertByStart(a.finished, iv)
	}
}

func (a *Allocator) findOrCreateRegister(proxy *surface.TextureProxy) *Register {
	if key := proxy.UniqueKey(); key.IsValid() {
		if r, ok := a.uniqueRegisters[key]; ok {
			return r
		}
		r := a.makeRegister(proxy, resource.ScratchKey{})
		a.uniqueRegisters[key] = r
		return r
	}

	key := proxy.ScratchKey()
	if free := a.freePool[key]; len(free) > 0 {
		r := free[0]
		a.freePool[key] = free[1:]
		return r
	}
	return a.makeRegister(proxy, key)
}

func (a *Allocator) makeRegister(proxy *surface.TextureProxy, key resource.ScratchKey) *Register {
	r := newRegister(len(a.registers), proxy, key, a.provider)
	a.registers = append(a.registers, r)
	return r
}

// insertByStart inserts iv after every interval starting at or before it.
func insertByStart(list []*Interval, iv *Interval) []*Interval {
	i, _ := slices.BinarySearchFunc(list, iv.start, func(e *Interval, start int) int {
		if e.start <= start {
			return -1
		}
		return 1
	})
	return slices.Insert(list, i, iv)
}

// insertByEnd inserts iv after every interval ending at or before it.
func insertByEnd(list []*Interval, iv *Interval) []*Interval {
	i, _ := slices.BinarySearchFunc(list, iv.end, func(e *Interval, end int) int {
		if e.end <= end {
			return -1
		}
		return 1
	})
	return slices.Insert(list, i, iv)
}
