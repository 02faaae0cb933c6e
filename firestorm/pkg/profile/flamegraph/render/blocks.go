package render

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

////////////////////////////////////////////////////////////////////////////////

type block struct {
	parent *block
	name   string
	level  int

	// Sum of line weights passing through the block and the number of such lines.
	events float64
	count  int64

	truncated bool

	offset float64
	weight float64

	// Children in insertion order; byName is only maintained for merged layouts.
	children []*block
	byName   map[string]*block
}

func (b *block) add(sum float64, count int64) {
	b.events += sum
	b.count += count
}

type blocksBuilder struct {
	// In chart mode siblings keep their insertion order and only a run of
	// identical consecutive frames is merged, like a time axis.
	chart  bool
	root   *block
	blocks []*block
}

func newBlocksBuilder(chart bool) *blocksBuilder {
	res := &blocksBuilder{chart: chart}
	res.root = res.newBlock(nil, "all", 0)
	return res
}

func (b *blocksBuilder) child(parent *block, name string) *block {
	if b.chart {
		if n := len(parent.children); n > 0 && parent.children[n-1].name == name {
			return parent.children[n-1]
		}
	} else if res, found := parent.byName[name]; found {
		return res
	}

	res := b.newBlock(parent, name, parent.level+1)
	parent.children = append(parent.children, res)
	if !b.chart {
		parent.byName[name] = res
	}
	return res
}

func (b *blocksBuilder) newBlock(parent *block, name string, level int) *block {
	res := &block{
		parent: parent,
		name:   name,
		level:  level,
	}
	if !b.chart {
		res.byName = make(map[string]*block)
	}
	b.blocks = append(b.blocks, res)
	return res
}

func (b *blocksBuilder) Finish(minWeight float64) []*block {
	b.trimBlocks(minWeight)
	b.pushDownOffsets(b.root, b.root.events, 0.0)
	return b.blocks
}

// trimBlocks folds blocks narrower than minWeight of the total into a
// "(truncated stack)" sibling.
func (b *blocksBuilder) trimBlocks(minWeight float64) {
	if minWeight < 1e-6 {
		return
	}
	minEvents := minWeight * b.root.events

	oldBlocks := b.blocks
	b.blocks = make([]*block, 0, len(oldBlocks))

	for _, blk := range oldBlocks {
		if blk.parent != nil && blk.parent.truncated {
			blk.truncated = true
			continue
		}
		if blk.parent != nil && blk.events < minEvents {
			blk.truncated = true
			blk.parent.children = slices.DeleteFunc(blk.parent.children, func(c *block) bool {
				return c == blk
			})
			if blk.parent.byName != nil {
				delete(blk.parent.byName, blk.name)
			}
			child := b.child(blk.parent, truncatedStack)
			child.add(blk.events, blk.count)
		} else {
			b.blocks = append(b.blocks, blk)
		}
	}
}

func (b *blocksBuilder) pushDownOffsets(blk *block, total, offset float64) {
	blk.offset = offset
	if total > 0 {
		blk.weight = blk.events / total
	}

	children := blk.children
	if !b.chart {
		keys := maps.Keys(blk.byName)
		slices.Sort(keys)
		children = make([]*block, 0, len(keys))
		for _, key := range keys {
			children = append(children, blk.byName[key])
		}
	}

	for _, child := range children {
		b.pushDownOffsets(child, total, offset)
		if total > 0 {
			offset += child.events / total
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

type blocksIterator struct {
	sum     float64
	block   *block
	builder *blocksBuilder
	depth   int
}

func (b *blocksBuilder) MakeIterator(sum float64) *blocksIterator {
	i := &blocksIterator{
		sum:     sum,
		block:   b.root,
		builder: b,
	}
	i.block.add(sum, 1)
	return i
}

func (i *blocksIterator) Advance(name string) {
	i.block = i.builder.child(i.block, name)
	i.block.add(i.sum, 1)
	i.depth++
}

func (i *blocksIterator) Depth() int {
	return i.depth
}

////////////////////////////////////////////////////////////////////////////////
