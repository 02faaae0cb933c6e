package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/pprof/profile"
	"go.uber.org/zap"

	"github.com/yandex/firestorm/firestorm/pkg/dump"
	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/convert"
	"github.com/yandex/firestorm/firestorm/pkg/report"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

const (
	inputDump      = "dump"
	inputCollapsed = "collapsed"
	inputPProf     = "pprof"
)

var inputFormats = []string{inputDump, inputCollapsed, inputPProf}

// source is what render reads: either a recorded event log or a merged
// call tree produced elsewhere.
type source struct {
	label  string
	events []eventlog.Event

	tree  bool
	lines []collapsed.Line
}

func readSource(format, path string) (*source, error) {
	if format == inputDump {
		snap, err := dump.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &source{label: snap.Label, events: snap.Events}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []collapsed.Line
	switch format {
	case inputCollapsed:
		lines, err = collapsed.Decode(f)
	case inputPProf:
		var prof *profile.Profile
		prof, err = profile.Parse(f)
		if err == nil {
			lines, err = convert.PProfToLines(prof)
		}
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &source{label: filepath.Base(path), tree: true, lines: lines}, nil
}

func (s *source) size() zap.Field {
	if s.tree {
		return zap.Int("lines", len(s.lines))
	}
	return zap.Int("events", len(s.events))
}

func (s *source) emit(ctx context.Context, logger xlog.Logger, out sink.Sink, conf report.Config) error {
	if s.tree {
		return report.EmitLines(ctx, logger, s.lines, out, conf)
	}
	return report.Emit(ctx, logger, s.events, out, conf)
}
