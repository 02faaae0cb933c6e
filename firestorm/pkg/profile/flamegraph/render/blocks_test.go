package render

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"

	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

type expectedBlock struct {
	name   string
	level  int
	offset float64
	events float64
}

func buildBlocks(t *testing.T, raw string, maxDepth int, chart bool) []*block {
	lines, err := collapsed.Decode(bytes.NewBufferString(raw))
	require.NoError(t, err)

	fg := NewFlameGraph()
	fg.SetDepthLimit(maxDepth)
	fg.SetFlameChart(chart)
	require.NoError(t, fg.AddLines(lines))
	return fg.bb.Finish(0.0)
}

func sortByPosition(blocks []*block) {
	slices.SortStableFunc(blocks, func(lhs, rhs *block) int {
		switch {
		case lhs.offset < rhs.offset:
			return -1
		case lhs.offset > rhs.offset:
			return 1
		case lhs.level < rhs.level:
			return -1
		case lhs.level > rhs.level:
			return 1
		}
		return 0
	})
}

func requireBlocks(t *testing.T, expected []expectedBlock, blocks []*block) {
	sortByPosition(blocks)
	require.Equal(t, len(expected), len(blocks))
	for i, expected := range expected {
		require.Equal(t, expected.name, blocks[i].name)
		require.Equal(t, expected.level, blocks[i].level)
		require.InDelta(t, expected.offset, blocks[i].offset, 1e-6)
		require.InDelta(t, expected.events, blocks[i].events, 1e-6)
	}
}

func TestBlocksBuilder(t *testing.T) {
	tests := []struct {
		raw      string
		maxDepth int
		expected []expectedBlock
	}{
		{
			raw: "",
			expected: []expectedBlock{
				{name: "all", level: 0, offset: 0., events: 0},
			},
		},
		{
			raw: "foo 2\nboo 1",
			expected: []expectedBlock{
				{name: "all", level: 0, offset: 0. / 3., events: 3},
				{name: "boo", level: 1, offset: 0. / 3., events: 1},
				{name: "foo", level: 1, offset: 1. / 3., events: 2},
			},
		},
		{
			raw: "foo;boo 5\nfoo;bar;baz 1\nbar;baz 10\nbar 7",
			expected: []expectedBlock{
				{name: "all", level: 0, offset: 0., events: 23},
				{name: "bar", level: 1, offset: 0., events: 17},
				{name: "baz", level: 2, offset: 0., events: 10},
				{name: "foo", level: 1, offset: 17. / 23., events: 6},
				{name: "bar", level: 2, offset: 17. / 23., events: 1},
				{name: "baz", level: 3, offset: 17. / 23., events: 1},
				{name: "boo", level: 2, offset: 18. / 23., events: 5},
			},
		},
		{
			raw:      "1;2;3;4;5;6;7;8;9;10 1\na;b;c 1\nf1;f2;f3;f4 5",
			maxDepth: 3,
			expected: []expectedBlock{
				{name: "all", level: 0, offset: 0., events: 7},

				{name: "1", level: 1, offset: 0., events: 1},
				{name: "2", level: 2, offset: 0., events: 1},
				{name: "(truncated stack)", level: 3, offset: 0., events: 1},

				{name: "a", level: 1, offset: 1. / 7., events: 1},
				{name: "b", level: 2, offset: 1. / 7., events: 1},
				{name: "c", level: 3, offset: 1. / 7., events: 1},

				{name: "f1", level: 1, offset: 2. / 7., events: 5},
				{name: "f2", level: 2, offset: 2. / 7., events: 5},
				{name: "(truncated stack)", level: 3, offset: 2. / 7., events: 5},
			},
		},
	}

	for i := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			requireBlocks(t, tests[i].expected, buildBlocks(t, tests[i].raw, tests[i].maxDepth, false))
		})
	}
}

func TestBlocksBuilderFlameChart(t *testing.T) {
	// Non-adjacent occurrences of "b" stay apart and keep their time order.
	raw := "a 1\na;b 3\na 1\nc 2\na;b 4"
	requireBlocks(t, []expectedBlock{
		{name: "all", level: 0, offset: 0., events: 11},
		{name: "a", level: 1, offset: 0., events: 5},
		{name: "b", level: 2, offset: 0., events: 3},
		{name: "c", level: 1, offset: 5. / 11., events: 2},
		{name: "a", level: 1, offset: 7. / 11., events: 4},
		{name: "b", level: 2, offset: 7. / 11., events: 4},
	}, buildBlocks(t, raw, 0, true))
}

func TestBlocksTrim(t *testing.T) {
	lines := []collapsed.Line{
		{Path: "big", Weight: 990},
		{Path: "tiny1", Weight: 4},
		{Path: "tiny2", Weight: 6},
	}

	fg := NewFlameGraph()
	require.NoError(t, fg.AddLines(lines))
	blocks := fg.bb.Finish(0.05)

	requireBlocks(t, []expectedBlock{
		{name: "all", level: 0, offset: 0., events: 1000},
		{name: "(truncated stack)", level: 1, offset: 0., events: 10},
		{name: "big", level: 1, offset: 10. / 1000., events: 990},
	}, blocks)
}
