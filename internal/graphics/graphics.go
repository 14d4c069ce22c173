package graphics

import (
	"errors"
	"log/slog"
)

var (
	// ErrInitialization reports that the windowing library could not start.
	ErrInitialization = errors.New("windowing library initialization failed")
	// ErrWindowCreation reports that no window with a usable context exists.
	ErrWindowCreation = errors.New("window creation failed")
)

// Color is an RGBA color with components in [0, 1].
type Color [4]float32

const (
	WindowWidth  = 640
	WindowHeight = 480
	WindowTitle  = "OpenGL Window in Go"
)

// ClearColor is the color every frame is cleared to.
var ClearColor = Color{1.0, 0.2, 0.2, 1.0}

type Option func(*Driver)

// WithLogger sets the logger for lifecycle messages. The default discards them.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithGLInfo logs the GL vendor, renderer and version once the context is current.
func WithGLInfo(enabled bool) Option {
	return func(d *Driver) {
		d.glInfo = enabled
	}
}
