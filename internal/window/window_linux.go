//go:build linux

package window

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/ebitengine/purego"
	"github.com/tinyrange/clearloop/internal/gl"
)

const (
	glxRGBA         = 4
	glxDoubleBuffer = 5
	glxDepthSize    = 12
	glxNone         = 0

	inputOutput = 1

	exposureMask        = 1 << 15
	structureNotifyMask = 1 << 17

	clientMessage = 33
	destroyNotify = 17
)

type XVisualInfo struct {
	Visual       uintptr
	VisualID     uint
	Screen       int32
	Depth        int32
	Class        int32
	RedMask      uint64
	GreenMask    uint64
	BlueMask     uint64
	ColormapSize int32
	BitsPerRGB   int32
	MapEntries   int32
	pad          int32
}

// Leading fields shared by every XEvent.
type xanyEvent struct {
	Type      int32
	Serial    uint64
	SendEvent int32
	Display   uintptr
	Window    uintptr
}

type xclientMessage struct {
	Type        int32
	Serial      uint64
	SendEvent   int32
	Display     uintptr
	Window      uintptr
	MessageType uintptr
	Format      int32
	Data        [5]uint64
}

var (
	x11lib uintptr
	gllib  uintptr

	xOpenDisplay    func(*byte) uintptr
	xDefaultScreen  func(uintptr) int32
	xRootWindow     func(uintptr, int32) uintptr
	xCreateColormap func(uintptr, uintptr, uintptr, int32) uintptr
	xFreeColormap   func(uintptr, uintptr) int32
	xCreateWindow   func(uintptr, uintptr, int32, int32, uint32, uint32, uint32, int32, uint32, uintptr, uint64, unsafe.Pointer) uintptr
	xMapWindow      func(uintptr, uintptr) int32
	xStoreName      func(uintptr, uintptr, *byte) int32
	xInternAtom     func(uintptr, *byte, int32) uintptr
	xSetWMProtocols func(uintptr, uintptr, *uintptr, int32) int32
	xSelectInput    func(uintptr, uintptr, int64)
	xPending        func(uintptr) int32
	xNextEvent      func(uintptr, unsafe.Pointer)
	xFlush          func(uintptr) int32
	xFree           func(unsafe.Pointer) int32
	xDestroyWindow  func(uintptr, uintptr) int32
	xCloseDisplay   func(uintptr) int32

	glxChooseVisual   func(uintptr, int32, *int32) *XVisualInfo
	glxCreateContext  func(uintptr, *XVisualInfo, uintptr, int32) uintptr
	glxMakeCurrent    func(uintptr, uintptr, uintptr) int32
	glxSwapBuffers    func(uintptr, uintptr)
	glxDestroyContext func(uintptr, uintptr)
)

func init() {
	register(Native, func() Platform { return &x11Platform{} })
}

type x11Platform struct {
	display  uintptr
	wmDelete uintptr
	windows  []*x11Window
}

type x11Window struct {
	p           *x11Platform
	window      uintptr
	colormap    uintptr
	ctx         uintptr
	shouldClose bool
}

func (p *x11Platform) Init() error {
	runtime.LockOSThread()
	if err := ensureLibs(); err != nil {
		runtime.UnlockOSThread()
		return err
	}

	dpy := xOpenDisplay(nil)
	if dpy == 0 {
		runtime.UnlockOSThread()
		return errors.New("XOpenDisplay failed")
	}

	p.display = dpy
	p.wmDelete = xInternAtom(dpy, cString("WM_DELETE_WINDOW"), 0)
	return nil
}

func (p *x11Platform) CreateWindow(cfg WindowConfig) (Window, error) {
	if p.display == 0 {
		return nil, errors.New("x11: platform not initialized")
	}
	if cfg.Fullscreen {
		return nil, fmt.Errorf("x11: fullscreen: %w", ErrUnsupported)
	}
	var shareCtx uintptr
	if cfg.Share != nil {
		share, ok := cfg.Share.(*x11Window)
		if !ok || share.p != p {
			return nil, fmt.Errorf("x11: foreign share window: %w", ErrUnsupported)
		}
		shareCtx = share.ctx
	}

	dpy := p.display
	screen := xDefaultScreen(dpy)
	root := xRootWindow(dpy, screen)

	attrs := []int32{glxRGBA, glxDoubleBuffer, glxDepthSize, 24, glxNone}
	visual := glxChooseVisual(dpy, screen, &attrs[0])
	if visual == nil {
		return nil, errors.New("glXChooseVisual failed")
	}
	defer xFree(unsafe.Pointer(visual))

	cmap := xCreateColormap(dpy, root, visual.Visual, 0)

	var swa xSetWindowAttributes
	swa.Colormap = cmap
	swa.EventMask = exposureMask | structureNotifyMask

	const (
		cwColormap    = 1 << 13
		cwEventMask   = 1 << 11
		cwBorderPixel = 1 << 3
	)

	win := xCreateWindow(
		dpy, root,
		0, 0,
		uint32(cfg.Width), uint32(cfg.Height),
		0,
		visual.Depth,
		inputOutput,
		visual.Visual,
		cwBorderPixel|cwColormap|cwEventMask,
		unsafe.Pointer(&swa),
	)
	if win == 0 {
		xFreeColormap(dpy, cmap)
		return nil, errors.New("XCreateWindow failed")
	}
	xSelectInput(dpy, win, swa.EventMask)

	titleBytes := append([]byte(cfg.Title), 0)
	xStoreName(dpy, win, &titleBytes[0])

	wmDelete := p.wmDelete
	xSetWMProtocols(dpy, win, &wmDelete, 1)

	ctx := glxCreateContext(dpy, visual, shareCtx, 1)
	if ctx == 0 {
		xDestroyWindow(dpy, win)
		xFreeColormap(dpy, cmap)
		return nil, errors.New("glXCreateContext failed")
	}

	xMapWindow(dpy, win)
	xFlush(dpy)
	setNetWMName(win, cfg.Title)

	w := &x11Window{
		p:        p,
		window:   win,
		colormap: cmap,
		ctx:      ctx,
	}
	p.windows = append(p.windows, w)
	return w, nil
}

func (p *x11Platform) PollEvents() {
	if p.display == 0 {
		return
	}

	for xPending(p.display) > 0 {
		var ev [192]byte
		xNextEvent(p.display, unsafe.Pointer(&ev[0]))
		hdr := (*xanyEvent)(unsafe.Pointer(&ev[0]))
		switch hdr.Type {
		case clientMessage:
			cm := (*xclientMessage)(unsafe.Pointer(&ev[0]))
			if cm.Format == 32 && cm.Data[0] == uint64(p.wmDelete) {
				p.requestClose(cm.Window)
			}
		case destroyNotify:
			p.requestClose(hdr.Window)
		}
	}
}

func (p *x11Platform) requestClose(xid uintptr) {
	for _, w := range p.windows {
		if w.window == xid {
			w.shouldClose = true
		}
	}
}

func (p *x11Platform) Terminate() {
	if p.display == 0 {
		return
	}
	glxMakeCurrent(p.display, 0, 0)
	for _, w := range p.windows {
		w.destroy()
	}
	p.windows = nil
	xCloseDisplay(p.display)
	p.display = 0
	runtime.UnlockOSThread()
}

func (w *x11Window) MakeContextCurrent() {
	if glxMakeCurrent(w.p.display, w.window, w.ctx) == 0 {
		slog.Debug("glXMakeCurrent failed", "window", w.window)
	}
}

func (w *x11Window) ShouldClose() bool {
	return w.shouldClose
}

func (w *x11Window) SwapBuffers() {
	if w.p.display != 0 && w.window != 0 {
		glxSwapBuffers(w.p.display, w.window)
	}
}

func (w *x11Window) GL() (gl.OpenGL, error) {
	return gl.Load()
}

func (w *x11Window) destroy() {
	dpy := w.p.display
	if w.ctx != 0 {
		glxDestroyContext(dpy, w.ctx)
		w.ctx = 0
	}
	if w.window != 0 {
		xDestroyWindow(dpy, w.window)
		w.window = 0
	}
	if w.colormap != 0 {
		xFreeColormap(dpy, w.colormap)
		w.colormap = 0
	}
	w.shouldClose = true
}

// setNetWMName publishes the UTF-8 title for EWMH window managers. XStoreName
// only covers Latin-1 WM_NAME. Failures leave the WM_NAME title in place.
func setNetWMName(win uintptr, title string) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		slog.Debug("x11: skipping _NET_WM_NAME", "error", err)
		return
	}
	defer xu.Conn().Close()

	if err := ewmh.WmNameSet(xu, xproto.Window(win), title); err != nil {
		slog.Debug("x11: set _NET_WM_NAME", "window", win, "error", err)
	}
}

type xSetWindowAttributes struct {
	BackgroundPixmap uintptr
	BackgroundPixel  uint64
	BorderPixmap     uint64
	BorderPixel      uint64
	BitGravity       int32
	WinGravity       int32
	BackingStore     int32
	BackingPlanes    uint64
	BackingPixel     uint64
	SaveUnder        int32
	EventMask        int64
	DoNotPropagate   int64
	OverrideRedirect int32
	Colormap         uintptr
	Cursor           uintptr
}

func ensureLibs() error {
	var err error
	if x11lib == 0 {
		x11lib, err = purego.Dlopen("libX11.so.6", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			return fmt.Errorf("load libX11: %w", err)
		}
		registerX11()
	}
	if gllib == 0 {
		gllib, err = purego.Dlopen("libGL.so.1", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			return fmt.Errorf("load libGL: %w", err)
		}
		registerGLX()
	}
	return nil
}

func registerX11() {
	purego.RegisterLibFunc(&xOpenDisplay, x11lib, "XOpenDisplay")
	purego.RegisterLibFunc(&xDefaultScreen, x11lib, "XDefaultScreen")
	purego.RegisterLibFunc(&xRootWindow, x11lib, "XRootWindow")
	purego.RegisterLibFunc(&xCreateColormap, x11lib, "XCreateColormap")
	purego.RegisterLibFunc(&xFreeColormap, x11lib, "XFreeColormap")
	purego.RegisterLibFunc(&xCreateWindow, x11lib, "XCreateWindow")
	purego.RegisterLibFunc(&xMapWindow, x11lib, "XMapWindow")
	purego.RegisterLibFunc(&xStoreName, x11lib, "XStoreName")
	purego.RegisterLibFunc(&xInternAtom, x11lib, "XInternAtom")
	purego.RegisterLibFunc(&xSetWMProtocols, x11lib, "XSetWMProtocols")
	purego.RegisterLibFunc(&xSelectInput, x11lib, "XSelectInput")
	purego.RegisterLibFunc(&xPending, x11lib, "XPending")
	purego.RegisterLibFunc(&xNextEvent, x11lib, "XNextEvent")
	purego.RegisterLibFunc(&xFlush, x11lib, "XFlush")
	purego.RegisterLibFunc(&xFree, x11lib, "XFree")
	purego.RegisterLibFunc(&xDestroyWindow, x11lib, "XDestroyWindow")
	purego.RegisterLibFunc(&xCloseDisplay, x11lib, "XCloseDisplay")
}

func registerGLX() {
	purego.RegisterLibFunc(&glxChooseVisual, gllib, "glXChooseVisual")
	purego.RegisterLibFunc(&glxCreateContext, gllib, "glXCreateContext")
	purego.RegisterLibFunc(&glxMakeCurrent, gllib, "glXMakeCurrent")
	purego.RegisterLibFunc(&glxSwapBuffers, gllib, "glXSwapBuffers")
	purego.RegisterLibFunc(&glxDestroyContext, gllib, "glXDestroyContext")
}

func cString(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}
