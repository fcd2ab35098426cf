package ge

import "errors"

// Errors returned by recording contexts and surface contexts.
var (
	// ErrNilDevice is returned when a DirectContext is created without a
	// device.
	ErrNilDevice = errors.New("ge: nil device")

	// ErrContextClosed is returned by operations on a closed recording
	// context.
	ErrContextClosed = errors.New("ge: recording context closed")

	// ErrClosed is returned by operations on a closed SurfaceContext.
	ErrClosed = errors.New("ge: surface context closed")

	// ErrInvalidView is returned for surface views without a proxy or whose
	// color format does not match the proxy.
	ErrInvalidView = errors.New("ge: invalid surface view")

	// ErrNotRenderable is returned when drawing into a proxy that cannot be
	// a render target.
	ErrNotRenderable = errors.New("ge: surface is not renderable")

	// ErrInvalidDraw is returned for draws that are missing a processor,
	// geometry or textures, and for geometry callbacks that do not fill
	// exactly the space their draw declared.
	ErrInvalidDraw = errors.New("ge: invalid draw")

	// ErrFlushDropped is returned when resources for a flush could not be
	// instantiated. None of the flush's work reached the GPU.
	ErrFlushDropped = errors.New("ge: flush dropped")

	// ErrOverBudget is returned when some tasks of a flush were dropped
	// because their textures did not fit the resource budget.
	ErrOverBudget = errors.New("ge: tasks dropped over resource budget")

	// ErrRecordingReplayed is returned when a Recording is replayed a
	// second time or after it was released.
	ErrRecordingReplayed = errors.New("ge: recording already consumed")
)
