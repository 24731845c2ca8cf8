package profiler

import (
	"net/http"
	"net/http/httptest"
	"net/http/pprof"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/stackprof/internal/stacks"
	"github.com/coral-mesh/stackprof/internal/testutil"
)

const cannedDump = `goroutine 1 [running]:
main.main()
	/app/main.go:10 +0x1d

goroutine 18 [chan receive, 2 minutes]:
github.com/acme/app/worker.(*Pool).run(0xc000010000)
	/app/worker/pool.go:42 +0x85
created by github.com/acme/app/worker.New in goroutine 1
	/app/worker/pool.go:20 +0x9a

goroutine 19 [sync.Mutex.Lock]:
sync.runtime_SemacquireMutex(0x0?, 0x0?, 0x0?)
	/usr/local/go/src/runtime/sema.go:77 +0x25
sync.(*Mutex).lockSlow(0xc0000a0000)
	/usr/local/go/src/sync/mutex.go:171 +0x15d
github.com/acme/app/store.(*Store).Put(...)
	/app/store/store.go:33
github.com/acme/app/store.worker()
	/app/store/store.go:50 +0x2b
...additional frames elided...

goroutine 20 [sleep]:
time.Sleep(0x3b9aca00)
	/usr/local/go/src/runtime/time.go:300 +0xf2
`

func TestParseGoroutineDump(t *testing.T) {
	gs, err := ParseGoroutineDump(strings.NewReader(cannedDump))
	require.NoError(t, err)
	require.Len(t, gs, 4)

	assert.Equal(t, int64(1), gs[0].ID)
	assert.Equal(t, stacks.StateRunnable, gs[0].State)
	assert.Equal(t, "main.main", gs[0].Name())

	worker := gs[1]
	assert.Equal(t, "chan receive", worker.WaitReason)
	assert.Equal(t, stacks.StateWaiting, worker.State)
	assert.Equal(t, "github.com/acme/app/worker.New", worker.CreatedBy)
	require.Len(t, worker.Frames, 1, "creator frames are not part of the stack")
	assert.Equal(t, "github.com/acme/app/worker.(*Pool).run:42", worker.Frames[0].Symbol(true))
	assert.Equal(t, "github.com/acme/app/worker.(*Pool).run", worker.Name())

	locked := gs[2]
	assert.Equal(t, stacks.StateBlocked, locked.State)
	require.Len(t, locked.Frames, 4)
	assert.Equal(t, stacks.Frame{Origin: "sync", Method: "runtime_SemacquireMutex", Line: 77}, locked.Frames[0])
	assert.Equal(t, stacks.Frame{Origin: "github.com/acme/app/store", Method: "(*Store).Put", Line: 33}, locked.Frames[2])
	assert.Equal(t, "github.com/acme/app/store.worker", locked.Name())

	info, err := gs[3].Inspect()
	require.NoError(t, err)
	assert.Equal(t, stacks.StateTimedWaiting, info.State)
	assert.Equal(t, "time.Sleep", info.Frames[0].Symbol(false))
}

func TestParseGoroutineDump_Malformed(t *testing.T) {
	_, err := ParseGoroutineDump(strings.NewReader("goroutine 7 [running]:\nthis is not a frame\n"))
	assert.Error(t, err)

	gs, err := ParseGoroutineDump(strings.NewReader("some preamble\n\n"))
	require.NoError(t, err)
	assert.Empty(t, gs)
}

func TestParseGoroutineDump_SurroundingText(t *testing.T) {
	gs, err := ParseGoroutineDump(strings.NewReader("panic: boom\n\n" + cannedDump))
	require.NoError(t, err)
	require.Len(t, gs, 4)
	assert.Equal(t, "main.main", gs[0].Name())
}

func TestGoroutine_NameWithoutFrames(t *testing.T) {
	g := Goroutine{ID: 7, State: StateFromWaitReason("idle")}
	assert.Equal(t, "goroutine 7", g.Name())
	assert.Equal(t, stacks.StateNew, g.State)
}

func TestStateFromWaitReason(t *testing.T) {
	tests := map[string]stacks.ThreadState{
		"running":            stacks.StateRunnable,
		"runnable":           stacks.StateRunnable,
		"syscall":            stacks.StateRunnable,
		"IO wait":            stacks.StateRunnable,
		"idle":               stacks.StateNew,
		"dead":               stacks.StateTerminated,
		"sleep":              stacks.StateTimedWaiting,
		"semacquire":         stacks.StateBlocked,
		"sync.Mutex.Lock":    stacks.StateBlocked,
		"sync.RWMutex.RLock": stacks.StateBlocked,
		"chan send":          stacks.StateWaiting,
		"select":             stacks.StateWaiting,
		"sync.Cond.Wait":     stacks.StateWaiting,
	}
	for reason, want := range tests {
		assert.Equal(t, want, StateFromWaitReason(reason), reason)
	}
}

func parkOnChannel(ch <-chan struct{}, ready chan<- struct{}) {
	close(ready)
	<-ch
}

func startParked(t *testing.T) {
	t.Helper()
	release := make(chan struct{})
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		parkOnChannel(release, ready)
	}()
	<-ready
	t.Cleanup(func() {
		close(release)
		<-done
	})
}

func parked(threads []Thread) (ThreadInfo, bool) {
	for _, th := range threads {
		info, err := th.Inspect()
		if err != nil {
			continue
		}
		for _, f := range info.Frames {
			if strings.HasSuffix(f.Symbol(false), ".parkOnChannel") {
				return info, true
			}
		}
	}
	return ThreadInfo{}, false
}

func TestGoroutineSource_ListThreads(t *testing.T) {
	startParked(t)
	ctx := testutil.NewTestContext(t)
	src := NewGoroutineSource()

	// The parked goroutine may still be runnable on the first dump.
	require.Eventually(t, func() bool {
		threads, err := src.ListThreads(ctx)
		if err != nil {
			return false
		}
		info, ok := parked(threads)
		return ok && info.State == stacks.StateWaiting
	}, 2*time.Second, 10*time.Millisecond)

	threads, err := src.ListThreads(ctx)
	require.NoError(t, err)
	for _, th := range threads {
		info, _ := th.Inspect()
		for _, f := range info.Frames {
			assert.NotContains(t, f.Method, "ListThreads", "the sampling goroutine is left out")
		}
	}
}

func TestGoroutineSource_GrowsBuffer(t *testing.T) {
	src := NewGoroutineSource()
	src.bufSize.Store(16)

	threads, err := src.ListThreads(testutil.NewTestContext(t))
	require.NoError(t, err)
	assert.NotNil(t, threads)
	assert.Greater(t, src.bufSize.Load(), int64(16))
}

func TestHTTPSource_CannedDump(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/goroutine", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("debug") != "2" {
			http.Error(w, "want debug=2", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(cannedDump))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/debug/pprof/", time.Second)
	defer src.Close()
	assert.Equal(t, srv.URL+"/debug/pprof/goroutine?debug=2", src.URL())

	ctx := testutil.NewTestContext(t)
	require.NoError(t, src.Probe(ctx))

	threads, err := src.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 3, "the serving goroutine is left out")
	assert.Equal(t, "github.com/acme/app/worker.(*Pool).run", threads[0].Name())
}

func TestHTTPSource_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, time.Second)
	defer src.Close()

	err := src.Probe(testutil.NewTestContext(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPSource_LivePprofHandler(t *testing.T) {
	startParked(t)

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/debug/pprof", time.Second)
	defer src.Close()

	threads, err := src.ListThreads(testutil.NewTestContext(t))
	require.NoError(t, err)
	_, ok := parked(threads)
	assert.True(t, ok, "parked goroutine is listed by the remote dump")
}

func TestProfiler_WithGoroutineSource(t *testing.T) {
	startParked(t)

	cfg := fastConfig()
	cfg.StackLines = 2
	cfg.ExcludePackages = true
	p := newTestProfiler(t, cfg, NewGoroutineSource())

	ctx := testutil.NewTestContext(t)
	require.NoError(t, p.Start(ctx))
	time.Sleep(50 * time.Millisecond)
	table, err := p.Stop()
	require.NoError(t, err)

	assert.Positive(t, table.StateTotal(stacks.StateWaiting))
	found := false
	for _, r := range table.Records(stacks.StateWaiting) {
		if strings.Contains(string(r), "parkOnChannel") {
			found = true
		}
	}
	assert.True(t, found, "parked goroutine is sampled as waiting")
}
