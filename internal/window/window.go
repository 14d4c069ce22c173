package window

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tinyrange/clearloop/internal/gl"
)

var (
	// ErrUnknownBackend is returned by New for a name no backend registered.
	ErrUnknownBackend = errors.New("unknown window backend")
	// ErrUnsupported is returned when a backend cannot honour a creation option.
	ErrUnsupported = errors.New("not supported by this backend")
)

// Native is the cgo-free backend built for every supported OS.
const Native = "native"

// WindowConfig describes the window requested from Platform.CreateWindow.
type WindowConfig struct {
	Width  int
	Height int
	Title  string

	// Fullscreen places the window on the primary monitor.
	Fullscreen bool
	// Share is a window whose context shares objects with the new one.
	Share Window
}

// Platform is the windowing library: it is initialized once, creates windows
// with GL contexts, pumps OS events and releases everything on Terminate.
//
// All methods must be called from the thread that called Init.
type Platform interface {
	Init() error
	CreateWindow(cfg WindowConfig) (Window, error)
	// PollEvents processes pending events without blocking. It updates the
	// should-close flag of windows the user asked to close.
	PollEvents()
	// Terminate destroys remaining windows and releases library state.
	Terminate()
}

// Window is a window handle with its rendering context.
type Window interface {
	// MakeContextCurrent binds the window's context to the calling thread.
	MakeContextCurrent()
	ShouldClose() bool
	SwapBuffers()
	// GL returns the graphics entry points for the window's context. The
	// context must be current.
	GL() (gl.OpenGL, error)
}

var backends = map[string]func() Platform{}

// register is called from backend files, normally in init.
func register(name string, newPlatform func() Platform) {
	backends[name] = newPlatform
}

// New returns an uninitialized Platform for the named backend.
func New(name string) (Platform, error) {
	newPlatform, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	return newPlatform(), nil
}

// Backends lists the backends compiled into this binary.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
