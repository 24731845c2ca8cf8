package profiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maruel/panicparse/v2/stack"

	"github.com/coral-mesh/stackprof/internal/constants"
	"github.com/coral-mesh/stackprof/internal/stacks"
)

// Goroutine is one entry of a Go goroutine dump, as produced by
// runtime.Stack(buf, true) or /debug/pprof/goroutine?debug=2.
type Goroutine struct {
	ID         int64
	WaitReason string
	State      stacks.ThreadState
	Frames     []stacks.Frame
	CreatedBy  string

	entry string
}

// Name returns the function the goroutine was started with, or
// "goroutine N" when the dump holds no frames.
func (g Goroutine) Name() string {
	if g.entry != "" {
		return g.entry
	}
	return "goroutine " + strconv.FormatInt(g.ID, 10)
}

// Inspect returns the captured state. Dumps are snapshots, so it never races.
func (g Goroutine) Inspect() (ThreadInfo, error) {
	return ThreadInfo{State: g.State, Frames: g.Frames}, nil
}

// StateFromWaitReason maps a goroutine status from a dump header onto the
// thread state model.
func StateFromWaitReason(reason string) stacks.ThreadState {
	switch {
	case reason == "running", reason == "runnable", reason == "syscall", reason == "IO wait":
		return stacks.StateRunnable
	case reason == "idle":
		return stacks.StateNew
	case reason == "dead":
		return stacks.StateTerminated
	case reason == "sleep":
		return stacks.StateTimedWaiting
	case strings.HasPrefix(reason, "semacquire"),
		strings.HasPrefix(reason, "sync.Mutex.Lock"),
		strings.HasPrefix(reason, "sync.RWMutex."):
		return stacks.StateBlocked
	default:
		// chan send/receive, select, sync.Cond.Wait, sync.WaitGroup.Wait,
		// finalizer wait, GC workers and the rest.
		return stacks.StateWaiting
	}
}

// dumpOpts disables the source and GOPATH lookups panicparse does by
// default; only names and line numbers are used.
var dumpOpts = &stack.Opts{}

// ParseGoroutineDump parses a full goroutine dump. Text around the
// goroutine blocks is ignored.
func ParseGoroutineDump(r io.Reader) ([]Goroutine, error) {
	snap, _, err := stack.ScanSnapshot(r, io.Discard, dumpOpts)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse goroutine dump: %w", err)
	}
	if snap == nil {
		return nil, nil
	}

	out := make([]Goroutine, 0, len(snap.Goroutines))
	for _, sg := range snap.Goroutines {
		out = append(out, fromSnapshot(sg))
	}
	return out, nil
}

func fromSnapshot(sg *stack.Goroutine) Goroutine {
	g := Goroutine{
		ID:         int64(sg.ID),
		WaitReason: sg.State,
		State:      StateFromWaitReason(sg.State),
		Frames:     make([]stacks.Frame, 0, len(sg.Stack.Calls)),
	}
	for _, c := range sg.Stack.Calls {
		if c.Func.Complete == "" {
			continue
		}
		g.Frames = append(g.Frames, stacks.FrameFromFunc(c.Func.Complete, c.Line))
	}
	if n := len(g.Frames); n > 0 {
		g.entry = g.Frames[n-1].Symbol(false)
	}
	if calls := sg.CreatedBy.Calls; len(calls) > 0 {
		creator := calls[0].Func.Complete
		if i := strings.Index(creator, " in goroutine "); i >= 0 {
			creator = creator[:i]
		}
		g.CreatedBy = creator
	}
	return g
}

func asThreads(gs []Goroutine) []Thread {
	threads := make([]Thread, len(gs))
	for i, g := range gs {
		threads[i] = g
	}
	return threads
}

// GoroutineSource samples the goroutines of the current process.
type GoroutineSource struct {
	bufSize atomic.Int64
}

// NewGoroutineSource creates an in-process goroutine source.
func NewGoroutineSource() *GoroutineSource {
	s := &GoroutineSource{}
	s.bufSize.Store(64 * 1024)
	return s
}

// ListThreads dumps all goroutines. The calling goroutine, always first in
// the dump, is left out.
func (s *GoroutineSource) ListThreads(ctx context.Context) ([]Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, s.bufSize.Load())
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, 2*len(buf))
		s.bufSize.Store(int64(len(buf)))
	}

	gs, err := ParseGoroutineDump(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	if len(gs) > 0 {
		gs = gs[1:]
	}
	return asThreads(gs), nil
}

// HTTPSource samples a remote Go process through its net/http/pprof
// goroutine endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for the pprof handler mounted at baseURL,
// for example "http://localhost:6060/debug/pprof".
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = constants.DefaultRemoteTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &HTTPSource{
		url:    strings.TrimRight(baseURL, "/") + "/goroutine?debug=2",
		client: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Close releases idle connections to the remote process.
func (s *HTTPSource) Close() {
	s.client.CloseIdleConnections()
}

// URL returns the dump endpoint.
func (s *HTTPSource) URL() string {
	return s.url
}

// ListThreads fetches and parses one dump. The goroutine serving the
// request comes first and is left out.
func (s *HTTPSource) ListThreads(ctx context.Context) ([]Thread, error) {
	gs, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(gs) > 0 {
		gs = gs[1:]
	}
	return asThreads(gs), nil
}

// Probe checks that the endpoint serves a goroutine dump.
func (s *HTTPSource) Probe(ctx context.Context) error {
	_, err := s.fetch(ctx)
	return err
}

func (s *HTTPSource) fetch(ctx context.Context) ([]Goroutine, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goroutine dump: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("goroutine dump request failed with status %d", resp.StatusCode)
	}

	return ParseGoroutineDump(resp.Body)
}
