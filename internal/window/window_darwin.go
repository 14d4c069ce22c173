//go:build darwin

package window

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
	"github.com/tinyrange/clearloop/internal/gl"
)

// NS geometry mirrors (keep alignment explicit).
type NSPoint struct {
	X float64
	Y float64
}

type NSSize struct {
	W float64
	H float64
}

type NSRect struct {
	Origin NSPoint
	Size   NSSize
}

// Cocoa constants (subset).
const (
	nsApplicationActivationPolicyRegular = 0

	nsWindowStyleTitled      = 1 << 0
	nsWindowStyleClosable    = 1 << 1
	nsWindowStyleMiniaturize = 1 << 2
	nsWindowStyleResizable   = 1 << 3

	nsBackingStoreBuffered = 2

	nsEventMaskAny = ^uint(0)

	// NSOpenGL pixel format attributes.
	nsOpenGLPFAAccelerated       = 73
	nsOpenGLPFADoubleBuffer      = 5
	nsOpenGLPFAColorSize         = 8
	nsOpenGLPFADepthSize         = 12
	nsOpenGLPFAOpenGLProfile     = 99
	nsOpenGLProfileVersionLegacy = 0x1000
)

var (
	initOnce sync.Once
	initErr  error

	// CoreFoundation.
	cfRunLoopRunInMode func(uintptr, float64, bool) int32
	cfDefaultMode      uintptr

	// Cached selectors.
	selAlloc                 objc.SEL
	selInit                  objc.SEL
	selRelease               objc.SEL
	selSharedApplication     objc.SEL
	selNextEventMatchingMask objc.SEL
	selSetActivationPolicy   objc.SEL
	selFinishLaunching       objc.SEL
	selStringWithUTF8String  objc.SEL
	selInitWithContentRect   objc.SEL
	selMakeKeyAndOrderFront  objc.SEL
	selSetTitle              objc.SEL
	selSetReleasedWhenClosed objc.SEL
	selCenter                objc.SEL
	selContentView           objc.SEL
	selIsVisible             objc.SEL
	selSendEvent             objc.SEL
	selFlushBuffer           objc.SEL
	selSetView               objc.SEL
	selMakeCurrentContext    objc.SEL
	selClearCurrentContext   objc.SEL
	selInitWithAttributes    objc.SEL
	selInitWithFormat        objc.SEL
)

func init() {
	register(Native, func() Platform { return &cocoaPlatform{} })
}

// cocoaPlatform keeps control of the run loop so the caller drives rendering.
type cocoaPlatform struct {
	app     objc.ID
	pool    objc.ID
	windows []*cocoaWindow
}

type cocoaWindow struct {
	p           *cocoaPlatform
	window      objc.ID
	view        objc.ID
	ctx         objc.ID
	shouldClose bool
}

// Init boots NSApplication. The calling thread must be the process main thread.
func (p *cocoaPlatform) Init() error {
	runtime.LockOSThread()
	if err := ensureRuntime(); err != nil {
		runtime.UnlockOSThread()
		return err
	}

	app := objc.ID(objc.GetClass("NSApplication")).Send(selSharedApplication)
	if app == 0 {
		runtime.UnlockOSThread()
		return errors.New("nsapplication unavailable")
	}
	app.Send(selSetActivationPolicy, nsApplicationActivationPolicyRegular)
	app.Send(selFinishLaunching)

	pool := objc.ID(objc.GetClass("NSAutoreleasePool")).Send(selAlloc)
	pool = pool.Send(selInit)

	p.app = app
	p.pool = pool
	return nil
}

func (p *cocoaPlatform) CreateWindow(cfg WindowConfig) (Window, error) {
	if p.app == 0 {
		return nil, errors.New("cocoa: platform not initialized")
	}
	if cfg.Fullscreen {
		return nil, fmt.Errorf("cocoa: fullscreen: %w", ErrUnsupported)
	}
	share := objc.ID(0)
	if cfg.Share != nil {
		sw, ok := cfg.Share.(*cocoaWindow)
		if !ok || sw.p != p {
			return nil, fmt.Errorf("cocoa: foreign share window: %w", ErrUnsupported)
		}
		share = sw.ctx
	}

	w := &cocoaWindow{p: p}
	if err := w.makeWindow(cfg.Title, cfg.Width, cfg.Height); err != nil {
		w.destroy()
		return nil, err
	}
	if err := w.makeGLContext(share); err != nil {
		w.destroy()
		return nil, err
	}
	p.windows = append(p.windows, w)
	return w, nil
}

// PollEvents drains one slice of the run loop without blocking and pumps
// pending NSEvents. A window that is no longer visible was closed.
func (p *cocoaPlatform) PollEvents() {
	if p.app == 0 {
		return
	}

	cfRunLoopRunInMode(cfDefaultMode, 0, true)
	for {
		ev := objc.Send[objc.ID](p.app, selNextEventMatchingMask, nsEventMaskAny, objc.ID(0), objc.ID(cfDefaultMode), true)
		if ev == 0 {
			break
		}
		p.app.Send(selSendEvent, ev)
	}

	for _, w := range p.windows {
		if w.window != 0 && !objc.Send[bool](w.window, selIsVisible) {
			w.shouldClose = true
		}
	}
}

func (p *cocoaPlatform) Terminate() {
	if p.app == 0 {
		return
	}
	objc.ID(objc.GetClass("NSOpenGLContext")).Send(selClearCurrentContext)
	for _, w := range p.windows {
		w.destroy()
	}
	p.windows = nil
	if p.pool != 0 {
		p.pool.Send(selRelease)
		p.pool = 0
	}
	p.app = 0
	runtime.UnlockOSThread()
}

func (w *cocoaWindow) MakeContextCurrent() {
	if w.ctx != 0 {
		w.ctx.Send(selMakeCurrentContext)
	}
}

func (w *cocoaWindow) ShouldClose() bool {
	return w.shouldClose
}

// SwapBuffers presents the back buffer.
func (w *cocoaWindow) SwapBuffers() {
	if w.ctx != 0 {
		w.ctx.Send(selFlushBuffer)
	}
}

func (w *cocoaWindow) GL() (gl.OpenGL, error) {
	return gl.Load()
}

func (w *cocoaWindow) makeWindow(title string, width, height int) error {
	frame := NSRect{
		Origin: NSPoint{X: 100, Y: 100},
		Size:   NSSize{W: float64(width), H: float64(height)},
	}

	style := uint(nsWindowStyleTitled | nsWindowStyleClosable | nsWindowStyleMiniaturize | nsWindowStyleResizable)
	backing := uint(nsBackingStoreBuffered)

	win := objc.ID(objc.GetClass("NSWindow")).Send(selAlloc)
	win = win.Send(selInitWithContentRect, frame, style, backing, false)
	if win == 0 {
		return errors.New("failed to create nswindow")
	}
	w.window = win

	win.Send(selCenter)
	win.Send(selSetReleasedWhenClosed, 0)
	win.Send(selSetTitle, nsString(title))
	win.Send(selMakeKeyAndOrderFront, objc.ID(0))

	w.view = win.Send(selContentView)
	if w.view == 0 {
		return errors.New("window missing content view")
	}
	return nil
}

func (w *cocoaWindow) makeGLContext(share objc.ID) error {
	attrs := []uint32{
		nsOpenGLPFAAccelerated,
		nsOpenGLPFADoubleBuffer,
		nsOpenGLPFAColorSize, 24,
		nsOpenGLPFADepthSize, 24,
		nsOpenGLPFAOpenGLProfile, nsOpenGLProfileVersionLegacy,
		0,
	}

	pf := objc.ID(objc.GetClass("NSOpenGLPixelFormat")).Send(selAlloc)
	pf = pf.Send(selInitWithAttributes, unsafe.Pointer(&attrs[0]))
	if pf == 0 {
		return errors.New("failed to create pixel format")
	}
	defer pf.Send(selRelease)

	ctx := objc.ID(objc.GetClass("NSOpenGLContext")).Send(selAlloc)
	ctx = ctx.Send(selInitWithFormat, pf, share)
	if ctx == 0 {
		return errors.New("failed to create gl context")
	}

	ctx.Send(selSetView, w.view)
	w.ctx = ctx
	return nil
}

func (w *cocoaWindow) destroy() {
	if w.ctx != 0 {
		w.ctx.Send(selRelease)
		w.ctx = 0
	}
	if w.window != 0 {
		w.window.Send(selRelease)
		w.window = 0
	}
	w.view = 0
	w.shouldClose = true
}

func ensureRuntime() error {
	initOnce.Do(func() {
		if err := loadObjc(); err != nil {
			initErr = err
			return
		}
		loadSelectors()
	})
	return initErr
}

func loadObjc() error {
	// Load libobjc and AppKit so the symbols are available.
	if _, err := purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_GLOBAL); err != nil {
		return err
	}
	if _, err := purego.Dlopen("/System/Library/Frameworks/AppKit.framework/AppKit", purego.RTLD_GLOBAL); err != nil {
		return err
	}
	cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}

	purego.RegisterLibFunc(&cfRunLoopRunInMode, cf, "CFRunLoopRunInMode")
	ptr, err := purego.Dlsym(cf, "kCFRunLoopDefaultMode")
	if err != nil {
		return err
	}
	// Dlsym returns the address of the CFStringRef variable; read its value.
	cfDefaultMode = *(*uintptr)(unsafe.Pointer(ptr))

	return nil
}

func loadSelectors() {
	selAlloc = objc.RegisterName("alloc")
	selInit = objc.RegisterName("init")
	selRelease = objc.RegisterName("release")
	selSharedApplication = objc.RegisterName("sharedApplication")
	selNextEventMatchingMask = objc.RegisterName("nextEventMatchingMask:untilDate:inMode:dequeue:")
	selSetActivationPolicy = objc.RegisterName("setActivationPolicy:")
	selFinishLaunching = objc.RegisterName("finishLaunching")
	selStringWithUTF8String = objc.RegisterName("stringWithUTF8String:")
	selInitWithContentRect = objc.RegisterName("initWithContentRect:styleMask:backing:defer:")
	selMakeKeyAndOrderFront = objc.RegisterName("makeKeyAndOrderFront:")
	selSetTitle = objc.RegisterName("setTitle:")
	selSetReleasedWhenClosed = objc.RegisterName("setReleasedWhenClosed:")
	selCenter = objc.RegisterName("center")
	selContentView = objc.RegisterName("contentView")
	selIsVisible = objc.RegisterName("isVisible")
	selSendEvent = objc.RegisterName("sendEvent:")
	selFlushBuffer = objc.RegisterName("flushBuffer")
	selSetView = objc.RegisterName("setView:")
	selMakeCurrentContext = objc.RegisterName("makeCurrentContext")
	selClearCurrentContext = objc.RegisterName("clearCurrentContext")
	selInitWithAttributes = objc.RegisterName("initWithAttributes:")
	selInitWithFormat = objc.RegisterName("initWithFormat:shareContext:")
}

func nsString(v string) objc.ID {
	return objc.ID(objc.GetClass("NSString")).Send(selStringWithUTF8String, v+"\x00")
}
