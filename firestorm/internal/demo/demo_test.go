package demo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yandex/firestorm/firestorm/internal/demo"
	"github.com/yandex/firestorm/firestorm/pkg/clock"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

func manualWorkload() (*demo.Workload, *eventlog.Log) {
	c := clock.NewManual(0)
	w := demo.New(time.Second)
	w.Sleep = func(d time.Duration) {
		c.Advance(clock.Duration(d / time.Second))
	}
	return w, eventlog.New(eventlog.WithClock(c))
}

func TestOwnThreeTwiceCall(t *testing.T) {
	w, l := manualWorkload()
	w.OwnThreeTwiceCall(eventlog.WithLog(context.Background(), l))

	merged, err := aggregate.Lines(l.Events(), aggregate.Merged)
	require.NoError(t, err)
	require.Equal(t, []collapsed.Line{
		{Path: "own_3_twice_call", Weight: 1},
		{Path: "own_3_twice_call;call;sleep", Weight: 2},
		{Path: "own_3_twice_call;sleep", Weight: 2},
	}, merged)

	ranked, err := aggregate.Lines(l.Events(), aggregate.SelfTimeRanked)
	require.NoError(t, err)
	// The two sleeps tie, so the first rank has no band of its own.
	require.Equal(t, []collapsed.Line{
		{Path: "own_3_twice_call->call->sleep;own_3_twice_call->sleep", Weight: 1},
		{Path: "own_3_twice_call->call->sleep;own_3_twice_call->sleep;own_3_twice_call", Weight: 1},
	}, ranked)

	timeaxis, err := aggregate.Lines(l.Events(), aggregate.Chronological)
	require.NoError(t, err)
	var total uint64
	for _, line := range timeaxis {
		total += line.Weight
	}
	require.Equal(t, uint64(5), total)
}

func TestSoak(t *testing.T) {
	l := eventlog.New()
	demo.Soak(eventlog.WithLog(context.Background(), l))
	require.Equal(t, 0, l.Depth())

	// Every span is paired.
	require.Zero(t, l.Len()%2)
	require.Greater(t, l.Len(), 200)
}
