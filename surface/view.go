package surface

import "github.com/gogpu/ge/gpucore"

// ProxyView is a proxy together with how it is read: the origin of its
// content and the channel swizzle applied when sampling.
//
// A view does not own its proxy; holders that outlive the drawing code
// take a reference with Ref.
type ProxyView struct {
	Proxy   *TextureProxy
	Origin  gpucore.Origin
	Swizzle Swizzle
}

// Width returns the logical width of the proxy.
func (v ProxyView) Width() int { return v.Proxy.Width() }

// Height returns the logical height of the proxy.
func (v ProxyView) Height() int { return v.Proxy.Height() }

// IsValid reports whether the view references a proxy.
func (v ProxyView) IsValid() bool { return v.Proxy != nil }

// Ref adds a reference to the proxy and returns v.
func (v ProxyView) Ref() ProxyView {
	if v.Proxy != nil {
		v.Proxy.Ref()
	}
	return v
}

// Unref drops a reference to the proxy.
func (v ProxyView) Unref() {
	if v.Proxy != nil {
		v.Proxy.Unref()
	}
}
