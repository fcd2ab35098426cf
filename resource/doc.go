// Package resource owns GPU textures shared between proxies and flushes.
//
// A [Texture] wraps a gpucore.Texture with a reference count, a scratch key
// describing its shape and an optional unique key. The [Cache] keeps every
// live texture and recycles those whose references have dropped to zero:
// scratch textures are handed to the next request with the same
// [ScratchKey], uniquely keyed textures to the next lookup of that key.
// Budgeted textures count against a byte budget; once it is exceeded, idle
// textures are purged in least recently used order.
//
// The [Provider] is the single entry point the allocator uses to find or
// create textures and buffers.
package resource
