//go:build windows

package gl

import (
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

type openGL struct {
	clearColor *windows.LazyProc
	clear      *windows.LazyProc
	getString  *windows.LazyProc
}

func (gl *openGL) ClearColor(r, g, b, a float32) {
	gl.clearColor.Call(f32(r), f32(g), f32(b), f32(a))
}

func (gl *openGL) Clear(mask uint32) {
	gl.clear.Call(uintptr(mask))
}

func (gl *openGL) GetString(name uint32) string {
	ptr, _, _ := gl.getString.Call(uintptr(name))
	return gostring((*byte)(unsafe.Pointer(ptr)))
}

func Load() (OpenGL, error) {
	opengl32 := windows.NewLazySystemDLL("opengl32.dll")
	gl := &openGL{
		clearColor: opengl32.NewProc("glClearColor"),
		clear:      opengl32.NewProc("glClear"),
		getString:  opengl32.NewProc("glGetString"),
	}
	for _, p := range []*windows.LazyProc{gl.clearColor, gl.clear, gl.getString} {
		if err := p.Find(); err != nil {
			return nil, fmt.Errorf("missing procedure %q: %w", p.Name, err)
		}
	}
	return gl, nil
}

// LazyProc.Call copies the first four arguments into the XMM registers as
// well, so a float32 bit pattern arrives intact.
func f32(v float32) uintptr {
	return uintptr(math.Float32bits(v))
}
