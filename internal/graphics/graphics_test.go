package graphics

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	glpkg "github.com/tinyrange/clearloop/internal/gl"
	"github.com/tinyrange/clearloop/internal/window"
)

// recorder collects the calls made on the fake platform, window and GL in order.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	r.calls = append(r.calls, call)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakePlatform struct {
	rec *recorder

	initErr   error
	createErr error
	nilWindow bool
	win       *fakeWindow

	gotConfig window.WindowConfig
}

func (p *fakePlatform) Init() error {
	p.rec.add("init")
	return p.initErr
}

func (p *fakePlatform) CreateWindow(cfg window.WindowConfig) (window.Window, error) {
	p.rec.add("create")
	p.gotConfig = cfg
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.nilWindow {
		return nil, nil
	}
	return p.win, nil
}

func (p *fakePlatform) PollEvents() {
	p.rec.add("poll")
	p.win.polls++
}

func (p *fakePlatform) Terminate() {
	p.rec.add("terminate")
}

type fakeWindow struct {
	rec *recorder
	gl  *fakeGL

	glErr error
	// closeAfter is the number of polls after which ShouldClose reports true.
	closeAfter int
	polls      int
}

func (w *fakeWindow) MakeContextCurrent() {
	w.rec.add("current")
}

func (w *fakeWindow) ShouldClose() bool {
	w.rec.add("should-close")
	return w.polls >= w.closeAfter
}

func (w *fakeWindow) SwapBuffers() {
	w.rec.add("swap")
}

func (w *fakeWindow) GL() (glpkg.OpenGL, error) {
	w.rec.add("gl")
	if w.glErr != nil {
		return nil, w.glErr
	}
	return w.gl, nil
}

type fakeGL struct {
	rec *recorder

	clearColors []Color
	clearMasks  []uint32
}

func (g *fakeGL) ClearColor(r, gr, b, a float32) {
	g.rec.add("clear-color")
	g.clearColors = append(g.clearColors, Color{r, gr, b, a})
}

func (g *fakeGL) Clear(mask uint32) {
	g.rec.add("clear")
	g.clearMasks = append(g.clearMasks, mask)
}

func (g *fakeGL) GetString(name uint32) string {
	switch name {
	case glpkg.Vendor:
		return "Mesa"
	case glpkg.Renderer:
		return "llvmpipe (LLVM 17.0.6, 256 bits)"
	case glpkg.Version:
		return "4.5 (Compatibility Profile) Mesa 24.0.5"
	}
	return ""
}

func newFakes(closeAfter int) (*recorder, *fakePlatform) {
	rec := &recorder{}
	g := &fakeGL{rec: rec}
	w := &fakeWindow{rec: rec, gl: g, closeAfter: closeAfter}
	return rec, &fakePlatform{rec: rec, win: w}
}

func TestRun_InitFailure(t *testing.T) {
	rec, p := newFakes(0)
	p.initErr = errors.New("no display")

	err := New(p).Run()
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected ErrInitialization, got %v", err)
	}
	if !strings.Contains(err.Error(), "no display") {
		t.Fatalf("expected cause in error, got %q", err)
	}
	if !slices.Equal(rec.calls, []string{"init"}) {
		t.Fatalf("expected only init, got %v", rec.calls)
	}
}

func TestRun_WindowCreationFailure(t *testing.T) {
	rec, p := newFakes(0)
	p.createErr = errors.New("glXChooseVisual failed")

	err := New(p).Run()
	if !errors.Is(err, ErrWindowCreation) {
		t.Fatalf("expected ErrWindowCreation, got %v", err)
	}
	if errors.Is(err, ErrInitialization) {
		t.Fatalf("window creation failure must not report ErrInitialization")
	}
	if !slices.Equal(rec.calls, []string{"init", "create", "terminate"}) {
		t.Fatalf("unexpected calls: %v", rec.calls)
	}
}

func TestRun_NilWindowIsCreationFailure(t *testing.T) {
	rec, p := newFakes(0)
	p.nilWindow = true

	err := New(p).Run()
	if !errors.Is(err, ErrWindowCreation) {
		t.Fatalf("expected ErrWindowCreation, got %v", err)
	}
	if got := rec.count("terminate"); got != 1 {
		t.Fatalf("expected terminate once, got %d", got)
	}
	for _, call := range []string{"current", "clear", "swap", "poll"} {
		if rec.count(call) != 0 {
			t.Fatalf("expected no %q call, got %v", call, rec.calls)
		}
	}
}

func TestRun_GLLoadFailure(t *testing.T) {
	rec, p := newFakes(0)
	p.win.glErr = errors.New("load libGL.so.1: not found")

	err := New(p).Run()
	if !errors.Is(err, ErrWindowCreation) {
		t.Fatalf("expected ErrWindowCreation, got %v", err)
	}
	if got := rec.count("terminate"); got != 1 {
		t.Fatalf("expected terminate once, got %d", got)
	}
	for _, call := range []string{"clear-color", "clear", "swap", "poll"} {
		if rec.count(call) != 0 {
			t.Fatalf("expected no %q call, got %v", call, rec.calls)
		}
	}
}

func TestRun_CloseBeforeFirstFrame(t *testing.T) {
	rec, p := newFakes(0)

	d := New(p)
	if err := d.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"init", "create", "current", "gl", "clear-color", "should-close", "terminate"}
	if !slices.Equal(rec.calls, want) {
		t.Fatalf("expected %v, got %v", want, rec.calls)
	}
	if d.Frames() != 0 {
		t.Fatalf("expected 0 frames, got %d", d.Frames())
	}
}

func TestRun_CloseAfterThreeFrames(t *testing.T) {
	rec, p := newFakes(3)

	d := New(p)
	if err := d.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, call := range []string{"clear", "swap", "poll"} {
		if got := rec.count(call); got != 3 {
			t.Fatalf("expected %q 3 times, got %d", call, got)
		}
	}
	if got := rec.count("terminate"); got != 1 {
		t.Fatalf("expected terminate once, got %d", got)
	}
	if rec.calls[len(rec.calls)-1] != "terminate" {
		t.Fatalf("expected terminate last, got %v", rec.calls)
	}
	if d.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", d.Frames())
	}
}

func TestRun_IterationOrder(t *testing.T) {
	rec, p := newFakes(2)

	if err := New(p).Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		"init", "create", "current", "gl", "clear-color",
		"should-close", "clear", "swap", "poll",
		"should-close", "clear", "swap", "poll",
		"should-close",
		"terminate",
	}
	if !slices.Equal(rec.calls, want) {
		t.Fatalf("expected %v, got %v", want, rec.calls)
	}
}

func TestRun_NoRenderingBeforeContextCurrent(t *testing.T) {
	rec, p := newFakes(1)

	if err := New(p).Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	current := slices.Index(rec.calls, "current")
	if current < 0 {
		t.Fatalf("context never made current: %v", rec.calls)
	}
	for _, call := range []string{"gl", "clear-color", "clear", "swap"} {
		if i := slices.Index(rec.calls, call); i < current {
			t.Fatalf("%q issued before context was current: %v", call, rec.calls)
		}
	}
}

func TestRun_ClearColorAndMask(t *testing.T) {
	_, p := newFakes(4)

	if err := New(p).Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	g := p.win.gl
	if len(g.clearColors) != 1 {
		t.Fatalf("expected clear color set once, got %v", g.clearColors)
	}
	if g.clearColors[0] != (Color{1.0, 0.2, 0.2, 1.0}) {
		t.Fatalf("expected clear color (1.0, 0.2, 0.2, 1.0), got %v", g.clearColors[0])
	}
	if len(g.clearMasks) != 4 {
		t.Fatalf("expected 4 clears, got %d", len(g.clearMasks))
	}
	for i, mask := range g.clearMasks {
		if mask != glpkg.ColorBufferBit|glpkg.DepthBufferBit {
			t.Fatalf("clear %d: expected color|depth mask, got %#x", i, mask)
		}
	}
}

func TestRun_WindowConfig(t *testing.T) {
	_, p := newFakes(0)

	if err := New(p).Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := window.WindowConfig{Width: 640, Height: 480, Title: WindowTitle}
	if p.gotConfig != want {
		t.Fatalf("expected %+v, got %+v", want, p.gotConfig)
	}
}

func TestRun_GLInfoLogged(t *testing.T) {
	_, p := newFakes(0)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := New(p, WithLogger(logger), WithGLInfo(true)).Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"renderer=\"llvmpipe", "vendor=Mesa", "frames=0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected log to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRun_FramesResetBetweenRuns(t *testing.T) {
	_, p := newFakes(2)
	d := New(p)
	if err := d.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	p.initErr = errors.New("gone")
	if err := d.Run(); !errors.Is(err, ErrInitialization) {
		t.Fatalf("expected ErrInitialization, got %v", err)
	}
	if d.Frames() != 0 {
		t.Fatalf("expected frames reset to 0, got %d", d.Frames())
	}
}
