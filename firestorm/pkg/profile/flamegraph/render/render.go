package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"image/color"
	"io"
	"math"
	"sort"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/render/format"
)

//go:embed tmpl.html
var htmlTmpl string

var tmpl = template.Must(template.New("html").Parse(htmlTmpl))

type Format string

const (
	HTMLFormat Format = "html"
	JSONFormat Format = "json"
)

const truncatedStack = "(truncated stack)"

////////////////////////////////////////////////////////////////////////////////

type Palette string

const (
	// PaletteHot is the classic flame graph yellow-to-red palette.
	PaletteHot Palette = "hot"
	// PaletteCold colors frames in shades of blue, used for non-tree charts.
	PaletteCold Palette = "cold"
)

type FlameGraph struct {
	format   Format
	palette  Palette
	inverted bool
	chart    bool
	reversed bool

	title     string
	maxDepth  int
	minWeight float64
	frameType string
	eventType string

	width               float64
	blockHeight         float64
	blockVerticalMargin float64

	fontSize  float64
	fontWidth float64

	padX float64

	bb *blocksBuilder
}

func NewFlameGraph() *FlameGraph {
	return &FlameGraph{
		format:              HTMLFormat,
		palette:             PaletteHot,
		title:               "Flame Graph",
		frameType:           "Span",
		eventType:           "ns",
		width:               1200,
		blockHeight:         15.0,
		blockVerticalMargin: 1.0,

		fontSize:  12.0,
		fontWidth: 0.59,

		padX: 10.0,
	}
}

func (f *FlameGraph) SetInverted(value bool) {
	f.inverted = value
}

// SetFlameChart keeps sibling frames in input order instead of sorting them
// by name, so that the x axis follows time.
func (f *FlameGraph) SetFlameChart(value bool) {
	f.chart = value
}

// SetReversedInput tells the renderer that lines arrive last to first.
// Only flame charts depend on the input order.
func (f *FlameGraph) SetReversedInput(value bool) {
	f.reversed = value
}

func (f *FlameGraph) SetTitle(value string) {
	f.title = value
}

func (f *FlameGraph) SetDepthLimit(value int) {
	f.maxDepth = value
}

func (f *FlameGraph) SetMinWeight(value float64) {
	f.minWeight = value
}

func (f *FlameGraph) SetFrameType(typ string) {
	f.frameType = typ
}

func (f *FlameGraph) SetEventType(typ string) {
	f.eventType = typ
}

func (f *FlameGraph) SetWidth(value float64) {
	f.width = value
}

func (f *FlameGraph) SetFontSize(size float64) {
	f.fontSize = size
}

func (f *FlameGraph) SetFormat(format Format) {
	f.format = format
}

func (f *FlameGraph) SetPalette(palette Palette) {
	f.palette = palette
}

func reverse(s string) string {
	runes := []rune(s)
	slices.Reverse(runes)
	return string(runes)
}

func (f *FlameGraph) namehash(name string) float64 {
	vector := 0.0
	weight := 1.0
	max := 1.0
	mod := 10
	for _, c := range name {
		i := int(c) % mod

		vector += float64(i) / float64(mod-1) * weight
		mod += 1
		max += 1 * weight
		weight *= 0.7

		if mod > 13 {
			break
		}
	}
	return (1.0 - vector/max)
}

func (f *FlameGraph) color(block *block) color.RGBA {
	v1 := f.namehash(block.name)
	v2 := f.namehash(reverse(block.name))

	switch f.palette {
	case PaletteCold:
		return HSV(200+30*v1, 0.35+0.3*v2, 0.95)
	default:
		return color.RGBA{
			R: uint8(205 + 50*v2),
			G: uint8(0 + 230*v1),
			B: uint8(0 + 55*v2),
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

// AddLines feeds collapsed lines into the graph. Lines with zero weight
// have no width and are ignored.
func (f *FlameGraph) AddLines(lines []collapsed.Line) error {
	if f.bb == nil {
		f.bb = newBlocksBuilder(f.chart)
	}

	for idx := range lines {
		line := lines[idx]
		if f.reversed {
			line = lines[len(lines)-1-idx]
		}
		if line.Weight == 0 {
			continue
		}
		if line.Path == "" {
			return fmt.Errorf("line %d has an empty stack", idx)
		}

		stack := line.Stack()
		iter := f.bb.MakeIterator(float64(line.Weight))
		for i, name := range stack {
			if f.maxDepth > 0 && f.maxDepth < len(stack) && i+1 == f.maxDepth {
				iter.Advance(truncatedStack)
				break
			}
			iter.Advance(name)
		}
	}
	return nil
}

func (f *FlameGraph) Render(w io.Writer) error {
	if f.bb == nil {
		f.bb = newBlocksBuilder(f.chart)
	}
	blocks := f.bb.Finish(f.minWeight)
	return f.renderBlocks(blocks, w)
}

func (f *FlameGraph) RenderBytes() ([]byte, error) {
	var w bytes.Buffer
	err := f.Render(&w)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (f *FlameGraph) TotalEvents() float64 {
	if f.bb == nil {
		return 0
	}
	return f.bb.root.events
}

func (f *FlameGraph) RenderLines(lines []collapsed.Line, w io.Writer) error {
	if err := f.AddLines(lines); err != nil {
		return err
	}
	return f.Render(w)
}

////////////////////////////////////////////////////////////////////////////////

type frame struct {
	FullText    int
	RectX       float64
	RectWidth   float64
	Level       int
	FillStyle   int
	EventCount  float64
	SampleCount int64
}

// Frames are rendered by hand, the template engine is far too slow for large graphs.
func renderFramesByHand(frameLevels [][]*frame) string {
	w := strings.Builder{}

	renderField := func(selector func(*frame) any, frames []*frame) {
		fmt.Fprint(&w, "[")
		for _, frame := range frames {
			fmt.Fprint(&w, selector(frame))
			fmt.Fprint(&w, ",")
		}
		fmt.Fprint(&w, "],\n")
	}

	fmt.Fprint(&w, "[\n")
	for _, frameLevel := range frameLevels {
		fmt.Fprint(&w, "[\n")

		renderField(func(f *frame) any { return f.RectX }, frameLevel)
		renderField(func(f *frame) any { return f.RectWidth }, frameLevel)
		renderField(func(f *frame) any { return f.FullText }, frameLevel)
		renderField(func(f *frame) any { return f.EventCount }, frameLevel)
		renderField(func(f *frame) any { return f.SampleCount }, frameLevel)
		renderField(func(f *frame) any { return f.FillStyle }, frameLevel)

		fmt.Fprint(&w, "],\n")
	}
	fmt.Fprint(&w, "]")

	return w.String()
}

func (f *FlameGraph) renderBlocks(blocks []*block, w io.Writer) error {
	switch f.format {
	case JSONFormat:
		return f.renderBlocksToJSON(blocks, w)
	case HTMLFormat:
		return f.renderBlocksToHTML(blocks, w)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

func maxLevel(blocks []*block) int {
	res := 0
	for _, block := range blocks {
		if block.level > res {
			res = block.level
		}
	}
	return res
}

func compareOffsets(a *block, b *block) int {
	// offset is defined on [0, 1), compare fn must return int, so we round it up and add a sign
	diff := a.offset - b.offset
	return int(math.Copysign(math.Ceil(math.Abs(diff)), diff))
}

func (f *FlameGraph) renderBlocksToJSON(blocks []*block, w io.Writer) error {
	strtab := NewStringTable()

	levels := maxLevel(blocks) + 1
	blocksByLevels := make([][]*block, levels)
	nodeLevels := make([][]format.RenderingNode, levels)

	for _, block := range blocks {
		blocksByLevels[block.level] = append(blocksByLevels[block.level], block)
	}
	for _, blocksOnLevel := range blocksByLevels {
		slices.SortStableFunc(blocksOnLevel, compareOffsets)
	}

	for h, blocksOnLevel := range blocksByLevels {
		for _, currentBlock := range blocksOnLevel {
			parentIndex := -1
			if h > 0 {
				parentIndex = slices.Index(blocksByLevels[h-1], currentBlock.parent)
			}
			nodeLevels[h] = append(nodeLevels[h], format.RenderingNode{
				ParentIndex: parentIndex,
				TextID:      strtab.Add(currentBlock.name),
				SampleCount: currentBlock.count,
				EventCount:  currentBlock.events,
			})
		}
	}

	profileData := format.ProfileData{
		Nodes:   nodeLevels,
		Strings: strtab.Table(),
		Meta: format.ProfileMeta{
			EventType:  strtab.Add(f.eventType),
			FrameType:  strtab.Add(f.frameType),
			Title:      strtab.Add(f.title),
			FlameChart: f.chart,
			Version:    1,
		},
	}

	return json.NewEncoder(w).Encode(profileData)
}

func (f *FlameGraph) renderBlocksToHTML(blocks []*block, w io.Writer) error {
	strtab := NewStringTable()

	levels := maxLevel(blocks) + 1
	padTop := f.fontSize * 3
	canvasWidth := f.width - 2.0*f.padX
	canvasHeight := (f.blockHeight + f.blockVerticalMargin) * float64(levels)

	frames := make([]frame, 0, len(blocks))
	for _, block := range blocks {
		if block.weight == 0.0 {
			continue
		}

		color := f.color(block)
		if block.level == 0 {
			color = HSV(0, 0, 0.8)
		}
		fillStyle := fmt.Sprintf("#%02x%02x%02x", color.R, color.G, color.B)

		frames = append(frames, frame{
			FullText:    strtab.Add(block.name),
			RectX:       f.padX + block.offset*canvasWidth,
			RectWidth:   block.weight * canvasWidth,
			Level:       block.level,
			FillStyle:   strtab.Add(fillStyle),
			EventCount:  block.events,
			SampleCount: block.count,
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].RectX == frames[j].RectX {
			return frames[i].Level < frames[j].Level
		}
		return frames[i].RectX < frames[j].RectX
	})

	frameLevels := make([][]*frame, levels)
	for i, frame := range frames {
		frameLevels[frame.Level] = append(frameLevels[frame.Level], &frames[i])
	}

	return tmpl.Execute(w, &struct {
		Inverted                bool
		Title                   string
		EventType               string
		FrameType               string
		Width                   float64
		Height                  float64
		PadTop                  float64
		BlockHeight             float64
		BlockMargin             float64
		FontSize                float64
		FontWidth               float64
		Total                   float64
		Strings                 []string
		HandRenderedFrameLevels template.JS
	}{
		Inverted:                f.inverted,
		Title:                   f.title,
		EventType:               f.eventType,
		FrameType:               f.frameType,
		Width:                   f.width,
		Height:                  canvasHeight + padTop*2,
		PadTop:                  padTop,
		BlockHeight:             f.blockHeight,
		BlockMargin:             f.blockVerticalMargin,
		FontSize:                f.fontSize,
		FontWidth:               f.fontWidth,
		Total:                   f.TotalEvents(),
		Strings:                 strtab.Table(),
		HandRenderedFrameLevels: template.JS(renderFramesByHand(frameLevels)),
	})
}
