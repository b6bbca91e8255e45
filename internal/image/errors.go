package imagepkg

import "errors"

var (
	// ErrInvalidHandle is returned when the input is not a usable file handle.
	ErrInvalidHandle = errors.New("input is not a file")

	// ErrUnknownImageType is returned when a handle has no declared type and
	// neither its extension nor its content identify an image type.
	ErrUnknownImageType = errors.New("cannot detect image type")

	// ErrDecode is returned when the bitmap decoder rejects the data.
	ErrDecode = errors.New("image decode failed")

	// ErrNotReady is returned by session operations issued before the base
	// image has been decoded and drawn.
	ErrNotReady = errors.New("session is not ready")

	// ErrTooLarge is returned when an image or surface would exceed MaxPixels.
	ErrTooLarge = errors.New("image too large")

	// ErrNoStack is returned by layer operations on a session that is not
	// in memory mode.
	ErrNoStack = errors.New("session is not in memory mode")

	// ErrNoLayer is returned for a memory-mode overlay index that does not exist.
	ErrNoLayer = errors.New("no such layer")

	// ErrOverlayLoad is returned when an overlay source cannot be loaded.
	ErrOverlayLoad = errors.New("overlay image failed to load")
)
