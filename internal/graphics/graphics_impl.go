package graphics

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	glpkg "github.com/tinyrange/clearloop/internal/gl"
	"github.com/tinyrange/clearloop/internal/window"
)

// Driver owns one window for the lifetime of Run and clears it every frame
// until the window is asked to close.
type Driver struct {
	platform window.Platform
	logger   *slog.Logger
	glInfo   bool

	frames uint64
}

func New(platform window.Platform, opts ...Option) *Driver {
	d := &Driver{
		platform: platform,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Frames returns the number of iterations completed by the last Run.
func (d *Driver) Frames() uint64 {
	return d.frames
}

// Run initializes the platform, opens the window and loops until it should
// close. Terminate is called exactly once on every path after a successful
// Init; it is not called when Init fails.
func (d *Driver) Run() error {
	d.frames = 0

	if err := d.platform.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	win, err := d.platform.CreateWindow(window.WindowConfig{
		Width:  WindowWidth,
		Height: WindowHeight,
		Title:  WindowTitle,
	})
	if err == nil && win == nil {
		err = errors.New("platform returned no window")
	}
	if err != nil {
		d.platform.Terminate()
		return fmt.Errorf("%w: %w", ErrWindowCreation, err)
	}
	defer d.platform.Terminate()

	d.logger.Debug("window created", "width", WindowWidth, "height", WindowHeight, "title", WindowTitle)

	win.MakeContextCurrent()
	gl, err := win.GL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWindowCreation, err)
	}

	if d.glInfo {
		d.logger.Info("OpenGL context",
			"vendor", gl.GetString(glpkg.Vendor),
			"renderer", gl.GetString(glpkg.Renderer),
			"version", gl.GetString(glpkg.Version),
		)
	}

	gl.ClearColor(ClearColor[0], ClearColor[1], ClearColor[2], ClearColor[3])

	for !win.ShouldClose() {
		gl.Clear(glpkg.ColorBufferBit | glpkg.DepthBufferBit)
		win.SwapBuffers()
		d.platform.PollEvents()
		d.frames++
	}

	d.logger.Debug("window closed", "frames", d.frames)
	return nil
}
