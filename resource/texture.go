package resource

import "github.com/gogpu/ge/gpucore"

// Texture is a cached, reference-counted GPU texture.
//
// A Texture returned by the Cache or Provider carries one reference owned by
// the caller. When the last reference is dropped the texture returns to its
// cache, which either keeps it for reuse or destroys it.
type Texture struct {
	cache *Cache
	tex   gpucore.Texture

	refs       int
	scratchKey ScratchKey
	uniqueKey  UniqueKey
	size       int64
	budgeted   bool
	wrapped    bool
	timestamp  uint64
	destroyed  bool
}

// Texture returns the backend texture.
func (t *Texture) Texture() gpucore.Texture { return t.tex }

// ScratchKey returns the key the texture is reusable under.
func (t *Texture) ScratchKey() ScratchKey { return t.scratchKey }

// UniqueKey returns the unique key, or the zero key.
func (t *Texture) UniqueKey() UniqueKey { return t.uniqueKey }

// MemorySize returns the estimated GPU memory in bytes.
func (t *Texture) MemorySize() int64 { return t.size }

// IsBudgeted reports whether the texture counts against the cache budget.
func (t *Texture) IsBudgeted() bool { return t.budgeted }

// IsWrapped reports whether the texture was created outside the cache.
func (t *Texture) IsWrapped() bool { return t.wrapped }

// IsDestroyed reports whether the backend texture has been released.
func (t *Texture) IsDestroyed() bool { return t.destroyed }

// RefCount returns the number of outstanding references.
func (t *Texture) RefCount() int { return t.refs }

// Ref adds a reference.
func (t *Texture) Ref() {
	if t.destroyed {
		panic("resource: Ref on destroyed texture")
	}
	t.refs++
}

// Unref drops a reference. The last reference returns the texture to its
// cache.
func (t *Texture) Unref() {
	if t.refs <= 0 {
		panic("resource: Unref below zero")
	}
	t.refs--
	if t.refs == 0 && !t.destroyed {
		t.cache.refsReachedZero(t)
	}
}

// MakeBudgeted moves the texture into or out of the cache budget.
// Wrapped textures are never budgeted.
func (t *Texture) MakeBudgeted(budgeted bool) {
	if t.wrapped || t.budgeted == budgeted || t.destroyed {
		return
	}
	t.budgeted = budgeted
	t.cache.budgetChanged(t)
}

// usableAsScratch reports whether the texture may satisfy a scratch request.
func (t *Texture) usableAsScratch() bool {
	return t.refs == 0 && !t.wrapped && t.budgeted &&
		t.scratchKey.IsValid() && !t.uniqueKey.IsValid()
}

func (t *Texture) release() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.tex.Destroy()
}
