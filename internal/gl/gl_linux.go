//go:build linux

package gl

import (
	"fmt"

	"github.com/ebitengine/purego"
)

const libGL = "libGL.so.1"

// The Linux loader binds the OpenGL 1.x entry points exported by libGL.
type openGL struct {
	clearColor func(float32, float32, float32, float32)
	clear      func(uint32)
	getString  func(uint32) *byte
}

func (gl *openGL) ClearColor(r, g, b, a float32) {
	gl.clearColor(r, g, b, a)
}

func (gl *openGL) Clear(mask uint32) {
	gl.clear(mask)
}

func (gl *openGL) GetString(name uint32) string {
	return gostring(gl.getString(name))
}

func Load() (OpenGL, error) {
	handle, err := purego.Dlopen(libGL, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", libGL, err)
	}
	register := func(dst interface{}, name string) {
		purego.RegisterLibFunc(dst, handle, name)
	}

	gl := &openGL{}
	register(&gl.clearColor, "glClearColor")
	register(&gl.clear, "glClear")
	register(&gl.getString, "glGetString")
	return gl, nil
}
