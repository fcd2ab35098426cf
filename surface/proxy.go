package surface

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/logging"
	"github.com/gogpu/ge/internal/refcnt"
	"github.com/gogpu/ge/resource"
)

var (
	// ErrLazyProxy is returned by Instantiate for proxies that must be
	// resolved by their lazy callback.
	ErrLazyProxy = errors.New("surface: proxy is lazy")

	// ErrLazyInstantiation is returned when a lazy callback produced no
	// texture.
	ErrLazyInstantiation = errors.New("surface: lazy instantiation failed")

	// ErrInvalidDesc is returned for proxy descriptions the device cannot
	// satisfy.
	ErrInvalidDesc = errors.New("surface: invalid proxy description")
)

// Fit selects how closely the backing texture matches the proxy size.
type Fit uint8

const (
	// FitExact backs the proxy with a texture of exactly its size.
	FitExact Fit = iota
	// FitApprox allows a larger backing texture; see ApproxSize.
	FitApprox
)

// Flags modify how the allocator treats a proxy.
type Flags uint8

const (
	// FlagReadOnly marks proxies that are only sampled. They are
	// instantiated as soon as the allocator sees them and never share a
	// register.
	FlagReadOnly Flags = 1 << iota
	// FlagSkipAllocator excludes the proxy from interval allocation.
	FlagSkipAllocator
)

// LazyType says how much of a lazy proxy is known up front.
type LazyType uint8

const (
	// LazyPartially proxies know their size; the callback only supplies
	// the texture.
	LazyPartially LazyType = iota
	// LazyFully proxies learn their size from the texture the callback
	// returns. They are instantiated during planning.
	LazyFully
)

// LazyResult is what a lazy callback returns.
type LazyResult struct {
	// Texture carries one reference that passes to the proxy.
	Texture *resource.Texture

	// SkipUniqueKeySync leaves the texture's unique key untouched even if
	// the proxy has one.
	SkipUniqueKeySync bool

	// ReleaseCallback drops the callback after a successful call.
	ReleaseCallback bool
}

// LazyFunc supplies the texture for a lazy proxy. For fully lazy proxies
// key has zero dimensions.
type LazyFunc func(provider *resource.Provider, key resource.ScratchKey) (LazyResult, error)

// TextureProxy is a deferred handle to a GPU texture.
type TextureProxy struct {
	refcnt.RefCnt

	owner *ProxyProvider
	id    uint32

	width       int
	height      int
	format      gputypes.TextureFormat
	mipmapped   bool
	sampleCount int
	renderable  bool
	budgeted    bool
	fit         Fit
	flags       Flags
	label       string

	uniqueKey resource.UniqueKey
	lazy      LazyFunc
	lazyType  LazyType

	texture *resource.Texture
}

func (p *TextureProxy) release() {
	if p.texture != nil {
		p.texture.Unref()
		p.texture = nil
	}
	p.lazy = nil
	if p.owner != nil {
		p.owner.proxyReleased(p)
	}
}

// ID returns a process-wide unique identifier.
func (p *TextureProxy) ID() uint32 { return p.id }

// Width returns the logical width. Fully lazy proxies report 0 until
// instantiated.
func (p *TextureProxy) Width() int { return p.width }

// Height returns the logical height.
func (p *TextureProxy) Height() int { return p.height }

// Format returns the texture format.
func (p *TextureProxy) Format() gputypes.TextureFormat { return p.format }

// SampleCount returns the MSAA sample count.
func (p *TextureProxy) SampleCount() int { return p.sampleCount }

// IsRenderable reports whether the proxy can be a render target.
func (p *TextureProxy) IsRenderable() bool { return p.renderable }

// Fit returns the backing fit.
func (p *TextureProxy) Fit() Fit { return p.fit }

// IsReadOnly reports whether the proxy is only sampled.
func (p *TextureProxy) IsReadOnly() bool { return p.flags&FlagReadOnly != 0 }

// UniqueKey returns the proxy's unique key, or the zero key.
func (p *TextureProxy) UniqueKey() resource.UniqueKey { return p.uniqueKey }

// IsMipmapped reports whether the backing texture has a mip chain.
func (p *TextureProxy) IsMipmapped() bool {
	if p.texture != nil {
		return p.texture.Texture().MipLevelCount() > 1
	}
	return p.mipmapped
}

// IsBudgeted reports whether the backing texture counts against the
// resource budget.
func (p *TextureProxy) IsBudgeted() bool {
	if p.texture != nil {
		return p.texture.IsBudgeted()
	}
	return p.budgeted
}

// IsLazy reports whether the proxy waits for its lazy callback.
func (p *TextureProxy) IsLazy() bool { return p.texture == nil && p.lazy != nil }

// IsFullyLazy reports whether the proxy is lazy and does not know its size.
func (p *TextureProxy) IsFullyLazy() bool { return p.IsLazy() && p.lazyType == LazyFully }

// IsInstantiated reports whether a backing texture is attached.
func (p *TextureProxy) IsInstantiated() bool { return p.texture != nil }

// PeekTexture returns the backend texture, or nil if not instantiated.
func (p *TextureProxy) PeekTexture() gpucore.Texture {
	if p.texture == nil {
		return nil
	}
	return p.texture.Texture()
}

// Resource returns the backing cache entry, or nil.
func (p *TextureProxy) Resource() *resource.Texture { return p.texture }

// BackingWidth returns the width of the texture that backs or will back
// the proxy.
func (p *TextureProxy) BackingWidth() int {
	switch {
	case p.texture != nil:
		return p.texture.Texture().Width()
	case p.fit == FitApprox:
		return ApproxSize(p.width)
	default:
		return p.width
	}
}

// BackingHeight returns the height of the texture that backs or will back
// the proxy.
func (p *TextureProxy) BackingHeight() int {
	switch {
	case p.texture != nil:
		return p.texture.Texture().Height()
	case p.fit == FitApprox:
		return ApproxSize(p.height)
	default:
		return p.height
	}
}

// ScratchKey returns the key a backing texture must match for reuse.
func (p *TextureProxy) ScratchKey() resource.ScratchKey {
	return resource.ScratchKey{
		Width:       p.BackingWidth(),
		Height:      p.BackingHeight(),
		Format:      p.format,
		Mipmapped:   p.IsMipmapped(),
		SampleCount: p.sampleCount,
		Renderable:  p.renderable,
	}
}

// MemorySize returns the estimated memory of the backing texture.
func (p *TextureProxy) MemorySize() int64 {
	return resource.ComputeSize(p.format, p.BackingWidth(), p.BackingHeight(), p.sampleCount, p.IsMipmapped())
}

// CanSkipAllocator reports whether the allocator should ignore the proxy:
// it is flagged so, or its texture cannot be shared.
func (p *TextureProxy) CanSkipAllocator() bool {
	if p.flags&FlagSkipAllocator != 0 {
		return true
	}
	return p.texture != nil && !p.texture.ScratchKey().IsValid()
}

// SetLazyDimension fixes the size of a fully lazy proxy before it is
// instantiated.
func (p *TextureProxy) SetLazyDimension(width, height int) {
	if !p.IsFullyLazy() || width <= 0 || height <= 0 {
		panic("surface: SetLazyDimension on a proxy that is not fully lazy")
	}
	p.width, p.height = width, height
}

// CreateTexture allocates a new texture matching the proxy without
// attaching it.
func (p *TextureProxy) CreateTexture(provider *resource.Provider) (*resource.Texture, error) {
	if p.IsLazy() {
		return nil, ErrLazyProxy
	}
	return provider.FindOrCreateScratchTexture(p.ScratchKey(), p.budgeted, p.label)
}

// Instantiate attaches a texture to a non-lazy proxy, creating or reusing
// one through provider.
func (p *TextureProxy) Instantiate(provider *resource.Provider) error {
	if p.IsLazy() {
		return ErrLazyProxy
	}
	if p.texture != nil {
		return nil
	}
	tex, err := p.CreateTexture(provider)
	if err != nil {
		return fmt.Errorf("surface: instantiate proxy %d: %w", p.id, err)
	}
	if p.uniqueKey.IsValid() {
		provider.AssignUniqueKey(tex, p.uniqueKey)
	}
	p.texture = tex
	return nil
}

// DoLazyInstantiation resolves a lazy proxy: a texture already holding the
// proxy's unique key wins, otherwise the lazy callback is asked for one.
func (p *TextureProxy) DoLazyInstantiation(provider *resource.Provider) error {
	if !p.IsLazy() {
		panic("surface: DoLazyInstantiation on a proxy that is not lazy")
	}

	var (
		tex    *resource.Texture
		result LazyResult
	)
	if p.uniqueKey.IsValid() {
		tex = provider.FindByUniqueKey(p.uniqueKey)
	}
	sync := true
	if tex == nil {
		key := p.ScratchKey()
		if p.lazyType == LazyFully && p.width <= 0 {
			key.Width, key.Height = 0, 0
		}
		var err error
		result, err = p.lazy(provider, key)
		if err != nil {
			p.width, p.height = 0, 0
			return fmt.Errorf("%w: proxy %d: %w", ErrLazyInstantiation, p.id, err)
		}
		tex = result.Texture
		sync = !result.SkipUniqueKeySync
	}
	if tex == nil {
		p.width, p.height = 0, 0
		return fmt.Errorf("%w: proxy %d: no texture", ErrLazyInstantiation, p.id)
	}

	if p.lazyType == LazyFully {
		p.width, p.height = tex.Texture().Width(), tex.Texture().Height()
	}
	if sync && p.uniqueKey.IsValid() && !tex.UniqueKey().IsValid() {
		provider.AssignUniqueKey(tex, p.uniqueKey)
	}
	p.texture = tex
	if result.ReleaseCallback {
		p.lazy = nil
	}
	logging.L().Debug("surface: lazy proxy instantiated", "proxy", p.id,
		"width", p.width, "height", p.height)
	return nil
}

// Assign attaches tex, taking over the caller's reference. It panics if the
// proxy already has a texture.
func (p *TextureProxy) Assign(tex *resource.Texture) {
	if p.texture != nil {
		panic(fmt.Sprintf("surface: proxy %d already instantiated", p.id))
	}
	p.texture = tex
}

// Clear detaches and releases the backing texture.
func (p *TextureProxy) Clear() {
	if p.texture != nil {
		p.texture.Unref()
		p.texture = nil
	}
}
