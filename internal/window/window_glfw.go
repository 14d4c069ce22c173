//go:build glfw

package window

import (
	"errors"
	"fmt"

	glbind "github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/tinyrange/clearloop/internal/gl"
)

// GLFW is the cgo backend built with -tags glfw.
const GLFW = "glfw"

func init() {
	register(GLFW, func() Platform { return &glfwPlatform{} })
}

type glfwPlatform struct {
	initialized bool
	glLoaded    bool
}

type glfwWindow struct {
	p *glfwPlatform
	w *glfw.Window
}

func (p *glfwPlatform) Init() error {
	if err := glfw.Init(); err != nil {
		return err
	}
	p.initialized = true
	return nil
}

func (p *glfwPlatform) CreateWindow(cfg WindowConfig) (Window, error) {
	if !p.initialized {
		return nil, errors.New("glfw: platform not initialized")
	}

	var monitor *glfw.Monitor
	if cfg.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	var share *glfw.Window
	if cfg.Share != nil {
		sw, ok := cfg.Share.(*glfwWindow)
		if !ok {
			return nil, fmt.Errorf("glfw: foreign share window: %w", ErrUnsupported)
		}
		share = sw.w
	}

	w, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, monitor, share)
	if err != nil {
		return nil, err
	}
	return &glfwWindow{p: p, w: w}, nil
}

func (p *glfwPlatform) PollEvents() {
	glfw.PollEvents()
}

func (p *glfwPlatform) Terminate() {
	if !p.initialized {
		return
	}
	glfw.Terminate()
	p.initialized = false
	p.glLoaded = false
}

func (w *glfwWindow) MakeContextCurrent() {
	w.w.MakeContextCurrent()
}

func (w *glfwWindow) ShouldClose() bool {
	return w.w.ShouldClose()
}

func (w *glfwWindow) SwapBuffers() {
	w.w.SwapBuffers()
}

// GL resolves the entry points through the current context on first use.
func (w *glfwWindow) GL() (gl.OpenGL, error) {
	if !w.p.glLoaded {
		if err := glbind.Init(); err != nil {
			return nil, fmt.Errorf("glfw: load gl: %w", err)
		}
		w.p.glLoaded = true
	}
	return goGL{}, nil
}

type goGL struct{}

func (goGL) ClearColor(r, g, b, a float32) {
	glbind.ClearColor(r, g, b, a)
}

func (goGL) Clear(mask uint32) {
	glbind.Clear(mask)
}

func (goGL) GetString(name uint32) string {
	ptr := glbind.GetString(name)
	if ptr == nil {
		return ""
	}
	return glbind.GoStr(ptr)
}
