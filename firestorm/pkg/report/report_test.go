package report_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandex/firestorm/firestorm/pkg/clock"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/replay"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

func recordNested(t *testing.T) *eventlog.Log {
	c := clock.NewManual(0)
	l := eventlog.New(eventlog.WithClock(c))

	func() {
		defer l.Enter("outer").Leave()
		c.Advance(10)
		func() {
			defer l.Enter("inner").Leave()
			c.Advance(5)
		}()
		c.Advance(1)
	}()
	require.Equal(t, 4, l.Len())
	return l
}

func TestEmit(t *testing.T) {
	l := recordNested(t)

	var buf bytes.Buffer
	err := report.Emit(context.Background(), xlog.NewNop(), l.Events(), sink.NewCollapsedSink(&buf), report.Config{
		Modes:     []string{"merged", "timeaxis", "owntime"},
		Direction: "natural",
	})
	require.NoError(t, err)

	require.Equal(t, ""+
		"outer 11\nouter;inner 5\n"+
		"outer 10\nouter;inner 5\nouter 1\n"+
		"outer 6\nouter;outer->inner 5\n",
		buf.String(),
	)
}

func TestEmitReversedByDefault(t *testing.T) {
	l := recordNested(t)

	var buf bytes.Buffer
	err := report.Emit(context.Background(), xlog.NewNop(), l.Events(), sink.NewCollapsedSink(&buf), report.Config{
		Modes: []string{"timeaxis"},
	})
	require.NoError(t, err)
	require.Equal(t, "outer 1\nouter;inner 5\nouter 10\n", buf.String())
}

func TestEmitCorruptLog(t *testing.T) {
	events := []eventlog.Event{{Kind: eventlog.Enter, Tag: "open"}}

	var buf bytes.Buffer
	require.PanicsWithError(t, (&replay.CorruptLogError{
		Reason: replay.ErrDanglingSpans,
		Index:  1,
		Open:   []string{"open"},
	}).Error(), func() {
		_ = report.Emit(context.Background(), xlog.NewNop(), events, sink.NewCollapsedSink(&buf), report.Config{})
	})
	require.Empty(t, buf.String())
}

func TestEmitBadConfig(t *testing.T) {
	var buf bytes.Buffer
	err := report.Emit(context.Background(), xlog.NewNop(), nil, sink.NewCollapsedSink(&buf), report.Config{
		Modes: []string{"flat"},
	})
	require.Error(t, err)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	l := recordNested(t)

	require.NoError(t, report.Save(context.Background(), xlog.NewNop(), l, dir, report.Config{Collapsed: true}))
	for _, name := range []string{"firestorm.html", "owntime.html", "timeaxis.html", "merged.html", "merged.txt"} {
		if name != "firestorm.html" {
			name = filepath.Join("firestorm", name)
		}
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	// The log survives the save.
	require.Equal(t, 4, l.Len())
}

func TestSaveOpenSpans(t *testing.T) {
	l := eventlog.New()
	span := l.Enter("running")
	defer span.Leave()

	err := report.Save(context.Background(), xlog.NewNop(), l, t.TempDir(), report.Config{})
	require.Error(t, err)
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	runs := 0

	l, err := report.Bench(context.Background(), xlog.NewNop(), dir, report.Config{Format: "json"}, func(ctx context.Context) {
		runs++
		defer eventlog.EnterContext(ctx, "bench").Leave()
		func() {
			defer eventlog.EnterContext(ctx, "sleep").Leave()
			time.Sleep(time.Millisecond)
		}()
		require.Equal(t, 1, eventlog.FromContext(ctx).Depth())
	})
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 4, l.Len())

	_, err = os.Stat(filepath.Join(dir, "firestorm", "merged.json"))
	require.NoError(t, err)
}

func TestEmitMerged(t *testing.T) {
	first := recordNested(t)
	second := recordNested(t)

	var buf bytes.Buffer
	err := report.EmitMerged(context.Background(), xlog.NewNop(), [][]eventlog.Event{first.Events(), second.Events()}, sink.NewCollapsedSink(&buf), report.Config{
		Direction: "natural",
	})
	require.NoError(t, err)
	require.Equal(t, ""+
		"outer 12\nouter;outer->inner 10\n"+
		"outer 22\nouter;inner 10\n",
		buf.String(),
	)
}

func TestEmitLines(t *testing.T) {
	var buf bytes.Buffer
	err := report.EmitLines(context.Background(), xlog.NewNop(), []collapsed.Line{
		{Path: "main;load", Weight: 4},
		{Path: "main", Weight: 2},
		{Path: "main;load", Weight: 6},
	}, sink.NewCollapsedSink(&buf), report.Config{
		Modes:     []string{"owntime", "timeaxis", "merged"},
		Direction: "natural",
	})
	require.NoError(t, err)
	require.Equal(t, ""+
		"main->load 8\nmain->load;main 2\n"+
		"main 2\nmain;load 10\n",
		buf.String(),
	)
}
