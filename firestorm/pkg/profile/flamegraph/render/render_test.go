package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/render/format"
)

var sampleLines = []collapsed.Line{
	{Path: "main", Weight: 3},
	{Path: "main;parse", Weight: 10},
	{Path: "main;parse;lex", Weight: 7},
	{Path: "main;eval", Weight: 20},
	{Path: "main;eval;call", Weight: 0},
	{Path: "idle", Weight: 5},
}

func renderJSON(t *testing.T, fg *FlameGraph, lines []collapsed.Line) format.ProfileData {
	fg.SetFormat(JSONFormat)

	var buf bytes.Buffer
	require.NoError(t, fg.RenderLines(lines, &buf))

	var data format.ProfileData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	return data
}

func TestRenderJSON(t *testing.T) {
	data := renderJSON(t, NewFlameGraph(), sampleLines)

	require.NotEmpty(t, data.Nodes)
	require.Len(t, data.Nodes[0], 1)
	assert.InDelta(t, 45.0, data.Nodes[0][0].EventCount, 1e-9)
	assert.Equal(t, -1, data.Nodes[0][0].ParentIndex)
	assert.Equal(t, "Flame Graph", data.Strings[data.Meta.Title])
	assert.Equal(t, "ns", data.Strings[data.Meta.EventType])
	assert.False(t, data.Meta.FlameChart)

	for h := 1; h < len(data.Nodes); h++ {
		childSums := make(map[int]float64)
		for _, node := range data.Nodes[h] {
			require.GreaterOrEqual(t, node.ParentIndex, 0)
			require.Less(t, node.ParentIndex, len(data.Nodes[h-1]))
			childSums[node.ParentIndex] += node.EventCount
		}
		for idx, sum := range childSums {
			assert.LessOrEqual(t, sum, data.Nodes[h-1][idx].EventCount+1e-9)
		}
	}

	// The zero-weight span never reaches the graph.
	for _, level := range data.Nodes {
		for _, node := range level {
			assert.NotEqual(t, "call", data.Strings[node.TextID])
		}
	}
}

func TestRenderJSONFlameChartReversed(t *testing.T) {
	lines := []collapsed.Line{
		{Path: "first", Weight: 1},
		{Path: "second", Weight: 2},
	}

	fg := NewFlameGraph()
	fg.SetFlameChart(true)
	data := renderJSON(t, fg, lines)
	require.Len(t, data.Nodes, 2)
	require.Len(t, data.Nodes[1], 2)
	assert.True(t, data.Meta.FlameChart)
	assert.Equal(t, "first", data.Strings[data.Nodes[1][0].TextID])
	assert.Equal(t, "second", data.Strings[data.Nodes[1][1].TextID])

	fg = NewFlameGraph()
	fg.SetFlameChart(true)
	fg.SetReversedInput(true)
	data = renderJSON(t, fg, lines)
	require.Len(t, data.Nodes[1], 2)
	assert.Equal(t, "second", data.Strings[data.Nodes[1][0].TextID])
	assert.Equal(t, "first", data.Strings[data.Nodes[1][1].TextID])
}

func TestRenderHTML(t *testing.T) {
	fg := NewFlameGraph()
	fg.SetTitle("owntime <demo>")
	fg.SetPalette(PaletteCold)

	var buf bytes.Buffer
	require.NoError(t, fg.RenderLines(sampleLines, &buf))

	html := buf.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "owntime &lt;demo&gt;")
	assert.Contains(t, html, `"parse"`)
	assert.NotContains(t, html, "<demo>")
}

func TestRenderEmptyPath(t *testing.T) {
	fg := NewFlameGraph()
	err := fg.AddLines([]collapsed.Line{{Path: "", Weight: 1}})
	require.Error(t, err)
}

func TestRenderNothing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFlameGraph().Render(&buf))
	assert.Contains(t, buf.String(), "<canvas")
}

func TestHSV(t *testing.T) {
	red := HSV(0, 1, 1)
	assert.Equal(t, uint8(0xff), red.R)
	assert.Equal(t, uint8(0), red.G)
	assert.Equal(t, uint8(0), red.B)

	grey := HSV(-360, 0, 0.5)
	assert.Equal(t, grey.R, grey.G)
	assert.Equal(t, grey.G, grey.B)
	assert.Equal(t, uint8(0xff), grey.A)
}
