//go:build windows

package window

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/tinyrange/clearloop/internal/gl"
)

const (
	csOwnDC   = 0x0020
	csHRedraw = 0x0002
	csVRedraw = 0x0001

	wsOverlappedWindow = 0x00CF0000
	wsClipSiblings     = 0x04000000
	wsClipChildren     = 0x02000000
	swShow             = 5

	wmClose   = 0x0010
	wmDestroy = 0x0002
	pmRemove  = 0x0001

	pfdTypeRGBA      = 0
	pfdMainPlane     = 0
	pfdDrawToWindow  = 0x00000004
	pfdSupportOpenGL = 0x00000020
	pfdDoubleBuffer  = 0x00000001

	cwUseDefault = 0x80000000

	errorClassAlreadyExists = 1410
)

type (
	hwnd  = windows.Handle
	hdc   = windows.Handle
	hglrc = windows.Handle
)

type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     windows.Handle
	hIcon         windows.Handle
	hCursor       windows.Handle
	hbrBackground windows.Handle
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       windows.Handle
}

type msg struct {
	hwnd     hwnd
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

type point struct {
	x int32
	y int32
}

// Mirrors PIXELFORMATDESCRIPTOR (must be 40 bytes).
type pixelFormatDescriptor struct {
	nSize           uint16
	nVersion        uint16
	dwFlags         uint32
	iPixelType      byte
	cColorBits      byte
	cRedBits        byte
	cRedShift       byte
	cGreenBits      byte
	cGreenShift     byte
	cBlueBits       byte
	cBlueShift      byte
	cAlphaBits      byte
	cAlphaShift     byte
	cAccumBits      byte
	cAccumRedBits   byte
	cAccumGreenBits byte
	cAccumBlueBits  byte
	cAccumAlphaBits byte
	cDepthBits      byte
	cStencilBits    byte
	cAuxBuffers     byte
	iLayerType      byte
	bReserved       byte
	dwLayerMask     uint32
	dwVisibleMask   uint32
	dwDamageMask    uint32
}

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	opengl32 = windows.NewLazySystemDLL("opengl32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassEx   = user32.NewProc("RegisterClassExW")
	procUnregisterClass   = user32.NewProc("UnregisterClassW")
	procCreateWindowEx    = user32.NewProc("CreateWindowExW")
	procDefWindowProc     = user32.NewProc("DefWindowProcW")
	procDestroyWindow     = user32.NewProc("DestroyWindow")
	procShowWindow        = user32.NewProc("ShowWindow")
	procPeekMessage       = user32.NewProc("PeekMessageW")
	procTranslateMessage  = user32.NewProc("TranslateMessage")
	procDispatchMessage   = user32.NewProc("DispatchMessageW")
	procGetDC             = user32.NewProc("GetDC")
	procReleaseDC         = user32.NewProc("ReleaseDC")
	procUpdateWindow      = user32.NewProc("UpdateWindow")
	procWindowFromDC      = user32.NewProc("WindowFromDC")
	procLoadCursor        = user32.NewProc("LoadCursorW")
	procGetModuleHandle   = kernel32.NewProc("GetModuleHandleW")
	procChoosePixelFormat = gdi32.NewProc("ChoosePixelFormat")

	procDescribePixelFormat = gdi32.NewProc("DescribePixelFormat")
	procGetPixelFormat      = gdi32.NewProc("GetPixelFormat")
	procSetPixelFormat      = gdi32.NewProc("SetPixelFormat")
	procSwapBuffers         = gdi32.NewProc("SwapBuffers")

	procWglCreateContext = opengl32.NewProc("wglCreateContext")
	procWglMakeCurrent   = opengl32.NewProc("wglMakeCurrent")
	procWglDeleteContext = opengl32.NewProc("wglDeleteContext")
	procWglShareLists    = opengl32.NewProc("wglShareLists")
)

func validateProcs() error {
	procs := []*windows.LazyProc{
		procRegisterClassEx,
		procCreateWindowEx,
		procGetDC,
		procReleaseDC,
		procDescribePixelFormat,
		procSetPixelFormat,
		procGetPixelFormat,
		procWglCreateContext,
		procWglMakeCurrent,
		procWglDeleteContext,
	}
	for _, p := range procs {
		if err := p.Find(); err != nil {
			return fmt.Errorf("missing procedure %q: %w", p.Name, err)
		}
	}
	return nil
}

func init() {
	register(Native, func() Platform { return &win32Platform{} })
}

// Make the class name unique per-process to avoid CS_OWNDC collisions.
var windowClassName = fmt.Sprintf("ClearloopWindow_%d", os.Getpid())

// The window procedure has no user pointer; it reaches the platform here.
var currentPlatform *win32Platform

func winErr(op string, err error) error {
	var errno windows.Errno
	if errors.As(err, &errno) && errno != 0 {
		return fmt.Errorf("%s failed: %w", op, errno)
	}
	return fmt.Errorf("%s failed", op)
}

type win32Platform struct {
	class   *uint16
	windows map[hwnd]*win32Window
}

type win32Window struct {
	p           *win32Platform
	hwnd        hwnd
	hdc         hdc
	ctx         hglrc
	shouldClose bool
}

func (p *win32Platform) Init() error {
	runtime.LockOSThread()

	if unsafe.Sizeof(pixelFormatDescriptor{}) != 40 {
		runtime.UnlockOSThread()
		return fmt.Errorf(
			"PIXELFORMATDESCRIPTOR size mismatch: got %d, want 40",
			unsafe.Sizeof(pixelFormatDescriptor{}),
		)
	}
	if err := validateProcs(); err != nil {
		runtime.UnlockOSThread()
		return err
	}

	class, err := windows.UTF16PtrFromString(windowClassName)
	if err != nil {
		runtime.UnlockOSThread()
		return err
	}
	if err := registerWindowClass(class); err != nil {
		runtime.UnlockOSThread()
		return err
	}

	p.class = class
	p.windows = make(map[hwnd]*win32Window)
	currentPlatform = p
	return nil
}

func (p *win32Platform) CreateWindow(cfg WindowConfig) (Window, error) {
	if p.class == nil {
		return nil, errors.New("win32: platform not initialized")
	}
	if cfg.Fullscreen {
		return nil, fmt.Errorf("win32: fullscreen: %w", ErrUnsupported)
	}
	var share hglrc
	if cfg.Share != nil {
		sw, ok := cfg.Share.(*win32Window)
		if !ok || sw.p != p {
			return nil, fmt.Errorf("win32: foreign share window: %w", ErrUnsupported)
		}
		share = sw.ctx
	}

	hwd, dc, err := createWindow(p.class, cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	// Sanity check: DC belongs to this window.
	wfdc, _, _ := procWindowFromDC.Call(uintptr(dc))
	if hwnd(wfdc) != hwd {
		procReleaseDC.Call(uintptr(hwd), uintptr(dc))
		procDestroyWindow.Call(uintptr(hwd))
		return nil, fmt.Errorf(
			"HDC does not belong to HWND (WindowFromDC=%#x hwnd=%#x)",
			wfdc,
			uintptr(hwd),
		)
	}

	if err := chooseAndSetPixelFormat(dc); err != nil {
		procReleaseDC.Call(uintptr(hwd), uintptr(dc))
		procDestroyWindow.Call(uintptr(hwd))
		return nil, err
	}

	ctx, err := createGLContext(dc, share)
	if err != nil {
		procReleaseDC.Call(uintptr(hwd), uintptr(dc))
		procDestroyWindow.Call(uintptr(hwd))
		return nil, err
	}

	// Show only after pixel format + context are established.
	procShowWindow.Call(uintptr(hwd), swShow)
	procUpdateWindow.Call(uintptr(hwd))

	w := &win32Window{p: p, hwnd: hwd, hdc: dc, ctx: ctx}
	p.windows[hwd] = w
	return w, nil
}

func (p *win32Platform) PollEvents() {
	var m msg
	for {
		ret, _, _ := procPeekMessage.Call(
			uintptr(unsafe.Pointer(&m)),
			0,
			0,
			0,
			pmRemove,
		)
		if ret == 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
}

func (p *win32Platform) Terminate() {
	if p.class == nil {
		return
	}
	procWglMakeCurrent.Call(0, 0)
	for _, w := range p.windows {
		w.destroy()
	}
	p.windows = nil
	procUnregisterClass.Call(uintptr(unsafe.Pointer(p.class)), uintptr(moduleHandle()))
	p.class = nil
	if currentPlatform == p {
		currentPlatform = nil
	}
	runtime.UnlockOSThread()
}

func (w *win32Window) MakeContextCurrent() {
	procWglMakeCurrent.Call(uintptr(w.hdc), uintptr(w.ctx))
}

func (w *win32Window) ShouldClose() bool {
	return w.shouldClose
}

func (w *win32Window) SwapBuffers() {
	if w.hdc != 0 {
		procSwapBuffers.Call(uintptr(w.hdc))
	}
}

func (w *win32Window) GL() (gl.OpenGL, error) {
	return gl.Load()
}

func (w *win32Window) destroy() {
	if w.ctx != 0 {
		procWglDeleteContext.Call(uintptr(w.ctx))
		w.ctx = 0
	}
	if w.hdc != 0 && w.hwnd != 0 {
		procReleaseDC.Call(uintptr(w.hwnd), uintptr(w.hdc))
		w.hdc = 0
	}
	if w.hwnd != 0 {
		procDestroyWindow.Call(uintptr(w.hwnd))
		w.hwnd = 0
	}
	w.shouldClose = true
}

func registerWindowClass(class *uint16) error {
	wc := wndClassEx{
		cbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		style:         csOwnDC | csHRedraw | csVRedraw,
		lpfnWndProc:   windows.NewCallback(wndProc),
		hInstance:     moduleHandle(),
		hCursor:       loadCursor(),
		lpszClassName: class,
	}

	ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if ret == 0 {
		if errno, ok := err.(windows.Errno); ok && int(errno) == errorClassAlreadyExists {
			return fmt.Errorf("window class already exists unexpectedly: %s", windowClassName)
		}
		return winErr("RegisterClassExW", err)
	}
	return nil
}

func createWindow(class *uint16, title string, width, height int) (hwnd, hdc, error) {
	titlePtr, err := windows.UTF16PtrFromString(title)
	if err != nil {
		return 0, 0, err
	}

	style := uint32(wsOverlappedWindow | wsClipSiblings | wsClipChildren)

	ret, _, err := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(class)),
		uintptr(unsafe.Pointer(titlePtr)),
		uintptr(style),
		cwUseDefault,
		cwUseDefault,
		uintptr(width),
		uintptr(height),
		0,
		0,
		uintptr(moduleHandle()),
		0,
	)
	win := hwnd(ret)
	if win == 0 {
		return 0, 0, winErr("CreateWindowExW", err)
	}

	dcRet, _, err := procGetDC.Call(uintptr(win))
	if dcRet == 0 {
		procDestroyWindow.Call(uintptr(win))
		return 0, 0, winErr("GetDC", err)
	}

	return win, hdc(dcRet), nil
}

const requiredPFDFlags = pfdDrawToWindow | pfdSupportOpenGL | pfdDoubleBuffer

func desiredPixelFormat() pixelFormatDescriptor {
	return pixelFormatDescriptor{
		nSize:        uint16(unsafe.Sizeof(pixelFormatDescriptor{})),
		nVersion:     1,
		dwFlags:      requiredPFDFlags,
		iPixelType:   pfdTypeRGBA,
		cColorBits:   24,
		cDepthBits:   24,
		cStencilBits: 8,
		iLayerType:   pfdMainPlane,
	}
}

// usable reports whether a described format satisfies the desired one.
func (pfd pixelFormatDescriptor) usable(desired pixelFormatDescriptor) bool {
	return pfd.dwFlags&requiredPFDFlags == requiredPFDFlags &&
		pfd.iPixelType == pfdTypeRGBA &&
		pfd.cColorBits >= desired.cColorBits &&
		pfd.cDepthBits >= desired.cDepthBits &&
		pfd.cStencilBits >= desired.cStencilBits &&
		pfd.iLayerType == pfdMainPlane
}

func chooseAndSetPixelFormat(dc hdc) error {
	desired := desiredPixelFormat()

	// Prefer ChoosePixelFormat; then set using the *described* PFD for that index.
	pf, _, err := procChoosePixelFormat.Call(uintptr(dc), uintptr(unsafe.Pointer(&desired)))
	if pf == 0 {
		return winErr("ChoosePixelFormat", err)
	}

	var chosen pixelFormatDescriptor
	r, _, err := procDescribePixelFormat.Call(
		uintptr(dc),
		pf,
		uintptr(unsafe.Sizeof(chosen)),
		uintptr(unsafe.Pointer(&chosen)),
	)
	if r == 0 {
		return winErr("DescribePixelFormat", err)
	}

	if !chosen.usable(desired) {
		// Fallback: strict enumeration to find a usable OpenGL format.
		pf, chosen, err = enumPixelFormat(dc, desired)
		if err != nil {
			return err
		}
	}

	ok, _, err := procSetPixelFormat.Call(uintptr(dc), pf, uintptr(unsafe.Pointer(&chosen)))
	if ok == 0 {
		return fmt.Errorf("SetPixelFormat failed for index %d: %w", pf, winErr("SetPixelFormat", err))
	}

	got, _, _ := procGetPixelFormat.Call(uintptr(dc))
	if got != pf {
		return fmt.Errorf("GetPixelFormat mismatch: got=%d want=%d", got, pf)
	}
	return nil
}

func enumPixelFormat(dc hdc, desired pixelFormatDescriptor) (uintptr, pixelFormatDescriptor, error) {
	var pfd pixelFormatDescriptor

	maxFormats, _, err := procDescribePixelFormat.Call(
		uintptr(dc),
		1,
		uintptr(unsafe.Sizeof(pfd)),
		uintptr(unsafe.Pointer(&pfd)),
	)
	if maxFormats == 0 {
		return 0, pixelFormatDescriptor{}, winErr("DescribePixelFormat(count)", err)
	}

	for i := uintptr(1); i <= maxFormats; i++ {
		ret, _, _ := procDescribePixelFormat.Call(
			uintptr(dc),
			i,
			uintptr(unsafe.Sizeof(pfd)),
			uintptr(unsafe.Pointer(&pfd)),
		)
		if ret != 0 && pfd.usable(desired) {
			return i, pfd, nil
		}
	}

	return 0, pixelFormatDescriptor{}, errors.New("failed to find a suitable OpenGL pixel format")
}

func createGLContext(dc hdc, share hglrc) (hglrc, error) {
	ctx, _, err := procWglCreateContext.Call(uintptr(dc))
	if ctx == 0 {
		return 0, winErr("wglCreateContext", err)
	}

	if share != 0 {
		ok, _, err := procWglShareLists.Call(uintptr(share), ctx)
		if ok == 0 {
			procWglDeleteContext.Call(ctx)
			return 0, winErr("wglShareLists", err)
		}
	}

	return hglrc(ctx), nil
}

// WM_CLOSE only raises the should-close flag; the window lives until Terminate.
func wndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	if msg == wmClose {
		if p := currentPlatform; p != nil {
			if w, ok := p.windows[windows.Handle(hwnd)]; ok {
				w.shouldClose = true
			}
		}
		return 0
	}
	ret, _, _ := procDefWindowProc.Call(hwnd, msg, wParam, lParam)
	return ret
}

func loadCursor() windows.Handle {
	const idcArrow = 32512
	ret, _, _ := procLoadCursor.Call(0, uintptr(idcArrow))
	return windows.Handle(ret)
}

func moduleHandle() windows.Handle {
	h, _, _ := procGetModuleHandle.Call(0)
	return windows.Handle(h)
}
