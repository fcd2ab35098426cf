// Package alloc assigns GPU textures to texture proxies at flush time.
//
// Drawing code records, for every operation, which proxies it reads or
// writes. Each proxy's usage becomes an [Interval] of operation indices.
// The [Allocator] walks the intervals in start order, like a linear-scan
// register allocator: when an interval ends, its [Register] (a future
// texture) returns to a free pool keyed by texture shape and can back a
// later proxy whose interval starts afterwards. Nothing touches the GPU
// until [Allocator.Assign].
//
// A flush drives the allocator in four steps:
//
//	a.AddInterval(proxy, start, end, true) // per op and proxy
//	if err := a.PlanAssignment(); err != nil { ... }
//	if !a.MakeBudgetHeadroom() { ... }      // optional budget check
//	if err := a.Assign(); err != nil { ... } // drop the flush
//	a.Reset()
package alloc
