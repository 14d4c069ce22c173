//go:build darwin

package gl

import (
	"fmt"

	"github.com/ebitengine/purego"
)

const openGLFramework = "/System/Library/Frameworks/OpenGL.framework/OpenGL"

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
	handle, err := purego.Dlopen(openGLFramework, purego.RTLD_GLOBAL|purego.RTLD_LAZY)
	if err != nil {
		return nil, fmt.Errorf("load OpenGL.framework: %w", err)
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
