package convert

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"
	"github.com/google/pprof/profile"

	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
)

const (
	SampleType = "wall"
	SampleUnit = "nanoseconds"
)

var ErrNoSampleType = errors.New("profile has no sample types")

// LinesToPProf builds a pprof profile with one sample per line. Every
// distinct frame name becomes its own function and location.
func LinesToPProf(lines []collapsed.Line) (*profile.Profile, error) {
	res := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: SampleType,
			Unit: SampleUnit,
		}},
		DefaultSampleType: SampleType,
		Sample:            make([]*profile.Sample, 0, len(lines)),
	}

	locations := make(map[string]*profile.Location)
	for i, line := range lines {
		value, err := safecast.Conv[int64](line.Weight)
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", i, line.Path, err)
		}

		sample := &profile.Sample{Value: []int64{value}}
		for _, name := range line.Stack() {
			loc, found := locations[name]
			if !found {
				fn := &profile.Function{
					ID:   1 + uint64(len(res.Function)),
					Name: name,
				}
				loc = &profile.Location{
					ID:   1 + uint64(len(res.Location)),
					Line: []profile.Line{{Function: fn}},
				}
				locations[name] = loc
				res.Function = append(res.Function, fn)
				res.Location = append(res.Location, loc)
			}
			sample.Location = append(sample.Location, loc)
		}
		// pprof stores the leaf first.
		slices.Reverse(sample.Location)
		res.Sample = append(res.Sample, sample)
	}

	if err := res.CheckValid(); err != nil {
		return nil, err
	}
	return res, nil
}

// PProfToLines flattens a pprof profile back into collapsed lines using its
// default sample type. Inlined frames are marked with an "_(inlined)" suffix.
func PProfToLines(prof *profile.Profile) ([]collapsed.Line, error) {
	if len(prof.SampleType) == 0 {
		return nil, ErrNoSampleType
	}

	sampleTypeIdx := 0
	for i, value := range prof.SampleType {
		if value.Type == prof.DefaultSampleType {
			sampleTypeIdx = i
			break
		}
	}

	res := make([]collapsed.Line, 0, len(prof.Sample))
	for i, sample := range prof.Sample {
		weight, err := safecast.Conv[uint64](sample.Value[sampleTypeIdx])
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}

		stack := make([]string, 0, len(sample.Location))
		for _, loc := range sample.Location {
			for j := len(loc.Line) - 1; j >= 0; j-- {
				name := ""
				if fn := loc.Line[j].Function; fn != nil {
					name = fn.Name
					if name == "" {
						name = fn.SystemName
					}
				}
				if j != 0 {
					name += " (inlined)"
				}
				stack = append(stack, collapsed.Sanitize(name))
			}
			if len(loc.Line) == 0 {
				if loc.Mapping == nil {
					stack = append(stack, fmt.Sprintf("0x%x", loc.Address))
				} else {
					stack = append(stack, collapsed.Sanitize(fmt.Sprintf("0x%x@%s", loc.Address, loc.Mapping.File)))
				}
			}
		}
		slices.Reverse(stack)

		res = append(res, collapsed.Line{
			Path:   strings.Join(stack, collapsed.Separator),
			Weight: weight,
		})
	}
	return res, nil
}
