package convert_test

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"

	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/convert"
)

func TestPProfConvert(t *testing.T) {
	for i, test := range []struct {
		raw string
	}{{
		raw: `main;parse;lex 42
`,
	}, {
		raw: `main;parse;lex 42
main;eval 1
idle 123
main 0
`,
	}} {
		t.Run(fmt.Sprintf("roundtrip/%d", i), func(t *testing.T) {
			lines, err := collapsed.Decode(strings.NewReader(test.raw))
			require.NoError(t, err)
			pprof, err := convert.LinesToPProf(lines)
			require.NoError(t, err)
			lines2, err := convert.PProfToLines(pprof)
			require.NoError(t, err)
			var raw bytes.Buffer
			require.NoError(t, collapsed.Encode(lines2, &raw))

			require.Equal(t, test.raw, raw.String())
		})
	}
}

func TestPProfSerialize(t *testing.T) {
	pprof, err := convert.LinesToPProf([]collapsed.Line{
		{Path: "a;b", Weight: 5},
		{Path: "a", Weight: 2},
	})
	require.NoError(t, err)
	require.Len(t, pprof.Function, 2)
	require.Equal(t, convert.SampleType, pprof.SampleType[0].Type)
	require.Equal(t, "b", pprof.Sample[0].Location[0].Line[0].Function.Name)

	var buf bytes.Buffer
	require.NoError(t, pprof.Write(&buf))

	parsed, err := profile.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.Sample, 2)
	require.Equal(t, int64(5), parsed.Sample[0].Value[0])
}

func TestPProfOverflow(t *testing.T) {
	_, err := convert.LinesToPProf([]collapsed.Line{{Path: "huge", Weight: math.MaxUint64}})
	require.Error(t, err)
}

func TestPProfNoSampleTypes(t *testing.T) {
	_, err := convert.PProfToLines(&profile.Profile{})
	require.ErrorIs(t, err, convert.ErrNoSampleType)
}
