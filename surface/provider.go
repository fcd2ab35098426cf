package surface

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/resource"
)

// ProxyDesc describes a texture proxy.
type ProxyDesc struct {
	Label       string
	Width       int
	Height      int
	Format      gputypes.TextureFormat
	Mipmapped   bool
	SampleCount int
	Renderable  bool
	Budgeted    bool
	Fit         Fit
	Flags       Flags
}

// Proxy IDs are process-wide so proxies recorded by a deferred context stay
// distinct from those of the context that replays them.
var nextProxyID atomic.Uint32

// ProxyProvider creates texture proxies and tracks uniquely keyed ones.
type ProxyProvider struct {
	provider *resource.Provider
	caps     gpucore.Caps
	unique   map[resource.UniqueKey]*TextureProxy
}

// NewProxyProvider returns a provider whose proxies instantiate through
// provider.
func NewProxyProvider(provider *resource.Provider) *ProxyProvider {
	return &ProxyProvider{
		provider: provider,
		caps:     provider.Caps(),
		unique:   make(map[resource.UniqueKey]*TextureProxy),
	}
}

// NewDeferredProxyProvider returns a provider with no device behind it.
// Its proxies are validated against caps and instantiated later by the
// context that replays them. It cannot wrap textures.
func NewDeferredProxyProvider(caps gpucore.Caps) *ProxyProvider {
	return &ProxyProvider{
		caps:   caps,
		unique: make(map[resource.UniqueKey]*TextureProxy),
	}
}

// ResourceProvider returns the provider proxies instantiate through, or nil
// for a deferred provider.
func (pp *ProxyProvider) ResourceProvider() *resource.Provider { return pp.provider }

// Caps returns the capabilities proxies are validated against.
func (pp *ProxyProvider) Caps() gpucore.Caps { return pp.caps }

func (pp *ProxyProvider) newProxy(desc *ProxyDesc) *TextureProxy {
	p := &TextureProxy{
		owner:       pp,
		id:          nextProxyID.Add(1),
		width:       desc.Width,
		height:      desc.Height,
		format:      desc.Format,
		mipmapped:   desc.Mipmapped,
		sampleCount: max(desc.SampleCount, 1),
		renderable:  desc.Renderable,
		budgeted:    desc.Budgeted,
		fit:         desc.Fit,
		flags:       desc.Flags,
		label:       desc.Label,
	}
	p.Init(p.release)
	return p
}

func (pp *ProxyProvider) validate(desc *ProxyDesc, allowEmpty bool) error {
	if desc.Fit == FitApprox && desc.Mipmapped {
		return fmt.Errorf("%w: approx fit cannot be mipmapped", ErrInvalidDesc)
	}
	empty := desc.Width <= 0 || desc.Height <= 0
	if empty && !allowEmpty {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDesc, desc.Width, desc.Height)
	}
	caps := pp.caps
	if caps.MaxTextureSize > 0 && (desc.Width > caps.MaxTextureSize || desc.Height > caps.MaxTextureSize) {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidDesc, desc.Width, desc.Height, caps.MaxTextureSize)
	}
	return nil
}

// CreateTextureProxy returns a deferred proxy with one reference held by
// the caller.
func (pp *ProxyProvider) CreateTextureProxy(desc ProxyDesc) (*TextureProxy, error) {
	if err := pp.validate(&desc, false); err != nil {
		return nil, err
	}
	return pp.newProxy(&desc), nil
}

// CreateLazyProxy returns a proxy whose texture is supplied by fn at flush
// time. Fully lazy proxies may have zero dimensions but must be approx fit.
func (pp *ProxyProvider) CreateLazyProxy(desc ProxyDesc, lazyType LazyType, fn LazyFunc) (*TextureProxy, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil lazy callback", ErrInvalidDesc)
	}
	fully := lazyType == LazyFully
	if fully && desc.Fit != FitApprox {
		return nil, fmt.Errorf("%w: fully lazy proxy must be approx fit", ErrInvalidDesc)
	}
	if err := pp.validate(&desc, fully); err != nil {
		return nil, err
	}
	p := pp.newProxy(&desc)
	p.lazy = fn
	p.lazyType = lazyType
	return p, nil
}

// WrapTexture returns an instantiated, read-only proxy around a texture
// owned by the caller. The allocator skips wrapped proxies. It panics on a
// deferred provider.
func (pp *ProxyProvider) WrapTexture(tex gpucore.Texture) *TextureProxy {
	if pp.provider == nil {
		panic("surface: WrapTexture on a deferred proxy provider")
	}
	p := pp.newProxy(&ProxyDesc{
		Width:       tex.Width(),
		Height:      tex.Height(),
		Format:      tex.Format(),
		Mipmapped:   tex.MipLevelCount() > 1,
		SampleCount: tex.SampleCount(),
		Renderable:  tex.Renderable(),
		Flags:       FlagReadOnly,
	})
	p.texture = pp.provider.WrapTexture(tex)
	return p
}

// AssignUniqueKey gives proxy a unique key, and its texture too if it is
// instantiated. Another proxy holding the key loses it.
func (pp *ProxyProvider) AssignUniqueKey(proxy *TextureProxy, key resource.UniqueKey) {
	if !key.IsValid() {
		pp.RemoveUniqueKey(proxy)
		return
	}
	if old := pp.unique[key]; old != nil && old != proxy {
		old.uniqueKey = resource.UniqueKey{}
	}
	if proxy.uniqueKey.IsValid() {
		delete(pp.unique, proxy.uniqueKey)
	}
	proxy.uniqueKey = key
	pp.unique[key] = proxy
	if proxy.texture != nil && pp.provider != nil {
		pp.provider.AssignUniqueKey(proxy.texture, key)
	}
}

// RemoveUniqueKey drops the proxy's unique key and the texture's.
func (pp *ProxyProvider) RemoveUniqueKey(proxy *TextureProxy) {
	if !proxy.uniqueKey.IsValid() {
		return
	}
	if pp.unique[proxy.uniqueKey] == proxy {
		delete(pp.unique, proxy.uniqueKey)
	}
	if pp.provider != nil && proxy.texture != nil && proxy.texture.UniqueKey() == proxy.uniqueKey {
		pp.provider.Cache().RemoveUniqueKey(proxy.texture)
	}
	proxy.uniqueKey = resource.UniqueKey{}
}

// FindProxyByUniqueKey returns a referenced proxy for key: a live proxy if
// one holds it, otherwise a new instantiated proxy around a cached texture
// with that key. It returns nil if neither exists. A deferred provider only
// finds live proxies.
func (pp *ProxyProvider) FindProxyByUniqueKey(key resource.UniqueKey) *TextureProxy {
	if p := pp.unique[key]; p != nil {
		p.Ref()
		return p
	}
	if pp.provider == nil {
		return nil
	}
	tex := pp.provider.FindByUniqueKey(key)
	if tex == nil {
		return nil
	}
	t := tex.Texture()
	p := pp.newProxy(&ProxyDesc{
		Width:       t.Width(),
		Height:      t.Height(),
		Format:      t.Format(),
		Mipmapped:   t.MipLevelCount() > 1,
		SampleCount: t.SampleCount(),
		Renderable:  t.Renderable(),
		Budgeted:    tex.IsBudgeted(),
	})
	p.texture = tex
	p.uniqueKey = key
	pp.unique[key] = p
	return p
}

func (pp *ProxyProvider) proxyReleased(p *TextureProxy) {
	if p.uniqueKey.IsValid() && pp.unique[p.uniqueKey] == p {
		delete(pp.unique, p.uniqueKey)
	}
}
