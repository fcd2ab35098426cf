// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface provides deferred handles to GPU textures.
//
// A [TextureProxy] describes a texture that drawing code can reference
// before any GPU memory exists. Proxies are resolved at flush time: the
// resource allocator either instantiates them directly, shares one backing
// texture between proxies whose usage intervals do not overlap, or runs a
// lazy callback that supplies the texture.
//
//	pp := surface.NewProxyProvider(resourceProvider)
//	proxy, err := pp.CreateTextureProxy(surface.ProxyDesc{
//		Width: 256, Height: 256,
//		Format:     gputypes.TextureFormatRGBA8Unorm,
//		Renderable: true,
//		Budgeted:   true,
//		Fit:        surface.FitApprox,
//	})
//	view := surface.ProxyView{Proxy: proxy, Origin: gpucore.OriginTopLeft, Swizzle: surface.SwizzleRGBA}
//
// Proxies are reference counted. The backing texture is returned to the
// resource cache when the last reference is dropped.
package surface
