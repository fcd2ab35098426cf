package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/ge/gpucore"
	"github.com/gogpu/ge/internal/logging"
)

var (
	// ErrInvalidKey is returned for textures with a non-positive dimension.
	ErrInvalidKey = errors.New("resource: invalid texture dimensions")

	// ErrTooLarge is returned for textures larger than the device supports.
	ErrTooLarge = errors.New("resource: texture exceeds max texture size")
)

// Provider creates and finds GPU resources for one device.
type Provider struct {
	device gpucore.Device
	cache  *Cache
}

// NewProvider returns a provider that records textures in cache.
func NewProvider(device gpucore.Device, cache *Cache) *Provider {
	return &Provider{device: device, cache: cache}
}

// Device returns the backend device.
func (p *Provider) Device() gpucore.Device { return p.device }

// Cache returns the resource cache.
func (p *Provider) Cache() *Cache { return p.cache }

// Caps returns the device capabilities.
func (p *Provider) Caps() gpucore.Caps { return p.device.Caps() }

// CreateTexture allocates a new texture for key, bypassing scratch reuse.
func (p *Provider) CreateTexture(key ScratchKey, budgeted bool, label string) (*Texture, error) {
	if !key.IsValid() {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidKey, key.Width, key.Height)
	}
	if maxSize := p.device.Caps().MaxTextureSize; maxSize > 0 && (key.Width > maxSize || key.Height > maxSize) {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooLarge, key.Width, key.Height, maxSize)
	}
	tex, err := p.device.CreateTexture(key.Desc(label))
	if err != nil {
		return nil, fmt.Errorf("resource: create texture %v: %w", key, err)
	}
	logging.L().Debug("resource: texture created", "key", key.String(), "budgeted", budgeted)
	return p.cache.Insert(tex, key, budgeted), nil
}

// FindScratchTexture returns an idle texture matching key, or nil.
func (p *Provider) FindScratchTexture(key ScratchKey) *Texture {
	return p.cache.FindAndRefScratch(key)
}

// FindOrCreateScratchTexture reuses an idle texture matching key or
// creates one. A reused texture takes the requested budget state.
func (p *Provider) FindOrCreateScratchTexture(key ScratchKey, budgeted bool, label string) (*Texture, error) {
	if t := p.cache.FindAndRefScratch(key); t != nil {
		t.MakeBudgeted(budgeted)
		return t, nil
	}
	return p.CreateTexture(key, budgeted, label)
}

// FindByUniqueKey returns the texture holding key with one added reference,
// or nil.
func (p *Provider) FindByUniqueKey(key UniqueKey) *Texture {
	if !key.IsValid() {
		return nil
	}
	return p.cache.FindAndRefUnique(key)
}

// AssignUniqueKey gives t the unique key.
func (p *Provider) AssignUniqueKey(t *Texture, key UniqueKey) {
	p.cache.AssignUniqueKey(t, key)
}

// WrapTexture adopts a texture owned by the caller.
func (p *Provider) WrapTexture(tex gpucore.Texture) *Texture {
	return p.cache.Wrap(tex)
}

// CreateBuffer allocates a GPU buffer. Buffers are not cached.
func (p *Provider) CreateBuffer(size int64, usage gpucore.BufferUsage) (gpucore.Buffer, error) {
	buf, err := p.device.CreateBuffer(size, usage)
	if err != nil {
		return nil, fmt.Errorf("resource: create buffer (%d bytes, %v): %w", size, usage, err)
	}
	return buf, nil
}
