package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/stackprof/internal/stacks"
)

func tableOf(entries ...any) *stacks.Table {
	t := stacks.NewTable()
	for i := 0; i < len(entries); i += 3 {
		t.Add(entries[i].(stacks.ThreadState), entries[i+1].(stacks.Record), int64(entries[i+2].(int)))
	}
	return t.Seal()
}

func pad(n int) string { return strings.Repeat(" ", n) }

func TestDottedLine(t *testing.T) {
	line := dottedLine("Thread state distributions")
	assert.Len(t, line, headerWidth+1)
	assert.True(t, strings.HasPrefix(line, "....[Thread state distributions]...."))
	assert.True(t, strings.HasSuffix(line, ".\n"))

	long := dottedLine(strings.Repeat("x", 200))
	assert.True(t, strings.HasSuffix(long, "x]\n"), "long headers are not padded")
}

func TestRender_SingleStackScenario(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.Record("x.y"), 600,
		stacks.StateWaiting, stacks.NewRecord("a.b", "c.d"), 400,
	)

	out := String(table, Options{})

	want := "Stack profiler:\n\n" +
		dottedLine("Thread state distributions") +
		" 60.0%" + pad(9) + "RUNNABLE\n" +
		" 40.0%" + pad(9) + "WAITING\n" +
		"\n" +
		dottedLine("Thread state: RUNNABLE") +
		" 60.0% 100.0% x.y\n" +
		"\n" +
		dottedLine("Thread state: WAITING") +
		" 40.0% 100.0% a.b\n" +
		pad(14) + "c.d\n" +
		"\n" +
		"\n"
	assert.Equal(t, want, out)
	assert.NotContains(t, out, OtherLabel)
}

func TestRender_SignificanceBoundary(t *testing.T) {
	included := tableOf(
		stacks.StateRunnable, stacks.Record("hot.loop"), 999,
		stacks.StateBlocked, stacks.Record("rare.lock"), 1,
	)
	out := String(included, Options{})
	assert.Contains(t, out, "  0.1%"+pad(9)+"BLOCKED\n", "exactly 0.1% is significant")
	assert.Contains(t, out, "[Thread state: BLOCKED]")

	excluded := tableOf(
		stacks.StateRunnable, stacks.Record("hot.loop"), 1000,
		stacks.StateBlocked, stacks.Record("rare.lock"), 1,
	)
	out = String(excluded, Options{})
	assert.NotContains(t, out, "BLOCKED")
	assert.NotContains(t, out, "rare.lock")

	assert.True(t, Significant(1, 1000))
	assert.False(t, Significant(1, 1001))
	assert.True(t, Significant(0, 0))
}

func TestRender_OtherLine(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.Record("a.a"), 50,
		stacks.StateRunnable, stacks.Record("b.b"), 30,
		stacks.StateRunnable, stacks.Record("c.c"), 15,
		stacks.StateRunnable, stacks.Record("d.d"), 5,
	)

	out := String(table, Options{TopStacks: 2})
	assert.Contains(t, out, " 50.0%  50.0% a.a\n 30.0%  30.0% b.b\n 20.0%  20.0% <other>\n")
	assert.NotContains(t, out, "c.c")

	s := Summarize(table, Options{TopStacks: 2})
	require.Len(t, s.States, 1)
	require.NotNil(t, s.States[0].Other)
	assert.Equal(t, int64(20), s.States[0].Other.Count)
}

func TestRender_InsignificantRemainderHidden(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.Record("main.work"), 9999,
		stacks.StateRunnable, stacks.Record("main.idle"), 1,
	)

	out := String(table, Options{TopStacks: 1})
	assert.Contains(t, out, "main.work")
	assert.NotContains(t, out, OtherLabel)
}

func TestSummarize_Ranking(t *testing.T) {
	table := tableOf(
		stacks.StateWaiting, stacks.Record("w.b"), 5,
		stacks.StateWaiting, stacks.Record("w.a"), 5,
		stacks.StateWaiting, stacks.Record("w.c"), 9,
		stacks.StateBlocked, stacks.Record("b.x"), 19,
		stacks.StateTimedWaiting, stacks.Record("t.x"), 19,
	)

	s := Summarize(table, Options{})
	require.Len(t, s.States, 3)
	assert.Equal(t, stacks.StateBlocked, s.States[0].State, "equal counts keep state order")
	assert.Equal(t, stacks.StateWaiting, s.States[1].State)
	assert.Equal(t, stacks.StateTimedWaiting, s.States[2].State)

	var frames []string
	for _, st := range s.States[1].Stacks {
		frames = append(frames, st.Frames[0])
	}
	assert.Equal(t, []string{"w.c", "w.a", "w.b"}, frames, "count descending, ties by key")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(stacks.NewTable().Seal(), Options{})
	assert.Zero(t, s.Total)
	assert.Empty(t, s.States)

	out := String(nil, Options{})
	assert.Equal(t, "Stack profiler:\n\n"+dottedLine("Thread state distributions")+"\n", out)
}

func TestRender_LaTeX(t *testing.T) {
	table := tableOf(
		stacks.StateTimedWaiting, stacks.NewRecord("time.Sleep", "app.poll_loop"), 10,
	)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatLaTeX, table, Options{}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "\\begin{tabular}{r r l}\n"))
	assert.Contains(t, out, `Thread state: TIMED\_WAITING`)
	assert.Contains(t, out, `100.0\% & 100.0\% & \texttt{time.Sleep} \\`)
	assert.Contains(t, out, ` & & \texttt{app.poll\_loop} \\`)
	assert.True(t, strings.HasSuffix(out, "\\end{tabular}\n"))
}

func TestRender_Silent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatSilent, tableOf(stacks.StateRunnable, stacks.Record("a.b"), 1), Options{}))
	assert.Zero(t, buf.Len())
}

func TestRender_Folded(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.NewRecord("app.leaf", "app.root"), 3,
		stacks.StateBlocked, stacks.Record("sync.(*Mutex).Lock"), 2,
	)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatFolded, table, Options{}))
	assert.Equal(t, "RUNNABLE;app.root;app.leaf 3\nBLOCKED;sync.(*Mutex).Lock 2\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.Record("x.y"), 3,
		stacks.StateWaiting, stacks.Record("a.b"), 1,
	)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, table, Options{}))

	var got Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(4), got.Total)
	require.Len(t, got.States, 2)
	assert.Equal(t, "RUNNABLE", got.States[0].Name)
	assert.Equal(t, 75.0, got.States[0].Percent)
	assert.Equal(t, []string{"x.y"}, got.States[0].Stacks[0].Frames)
}

func TestRender_UnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, Format(42), stacks.NewTable(), Options{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	for _, name := range Formats() {
		f, err := ParseFormat(strings.ToUpper(name))
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestPprofRoundTrip(t *testing.T) {
	table := tableOf(
		stacks.StateRunnable, stacks.NewRecord("app.compute:12", "app.main:40"), 7,
		stacks.StateBlocked, stacks.NewRecord("sync.(*Mutex).Lock", "app.main:40"), 3,
		stacks.StateWaiting, stacks.Record(stacks.EmptyStackLine), 1,
	)

	var buf bytes.Buffer
	require.NoError(t, WritePprof(&buf, table, 10*time.Millisecond))

	got, err := ReadPprof(&buf)
	require.NoError(t, err)
	assert.True(t, got.Sealed())
	assert.True(t, table.Equal(got), "pprof encoding preserves every (state, stack) count")
}

func TestReadPprof_Garbage(t *testing.T) {
	_, err := ReadPprof(strings.NewReader("not a profile"))
	assert.Error(t, err)
}
