package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/firestorm/firestorm/pkg/eventlog"
	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/replay"
	"github.com/yandex/firestorm/firestorm/pkg/sink"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

// Emit aggregates events in every configured mode and hands the lines to s.
//
// A log that is not well nested panics on the calling goroutine before any
// line reaches the sink. Modes are aggregated concurrently and consumed in
// configuration order.
func Emit(ctx context.Context, logger xlog.Logger, events []eventlog.Event, s sink.Sink, cfg Config) error {
	cfg.fillDefault()
	modes, err := cfg.ParsedModes()
	if err != nil {
		return err
	}
	dir, err := cfg.ParsedDirection()
	if err != nil {
		return err
	}

	replay.Validate(events)

	lines := make([][]collapsed.Line, len(modes))
	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		i, mode := i, mode
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started := time.Now()
			res, err := aggregate.Lines(events, mode)
			if err != nil {
				return err
			}
			lines[i] = res
			logger.Debug(gctx, "Aggregated event log",
				zap.String("mode", string(mode)),
				zap.String("events", humanize.Comma(int64(len(events)))),
				zap.String("lines", humanize.Comma(int64(len(res)))),
				zap.Duration("took", time.Since(started)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, mode := range modes {
		if err := s.Consume(ctx, mode, lines[i], dir); err != nil {
			return fmt.Errorf("failed to emit %s lines: %w", mode, err)
		}
	}
	return nil
}

// Save writes a report of log into dir: one page per mode under
// dir/firestorm and the dir/firestorm.html index. The log is left intact.
func Save(ctx context.Context, logger xlog.Logger, log *eventlog.Log, dir string, cfg Config) error {
	if log == nil {
		return errors.New("no event log to save")
	}
	if log.Depth() != 0 {
		return fmt.Errorf("cannot save a log with %d open spans", log.Depth())
	}

	cfg.fillDefault()
	ctx = xlog.WrapContext(ctx, zap.String("dir", dir))
	logger.Info(ctx, "Saving report",
		zap.String("events", humanize.Comma(int64(log.Len()))),
		zap.String("capacity", humanize.Comma(int64(log.Cap()))),
	)

	return Emit(ctx, logger, log.Events(), sink.NewDirSink(logger, dir, cfg.SinkOptions()), cfg)
}

// Bench profiles f and saves the report into dir. f runs twice on a fresh
// log: the first run warms caches up and is discarded. The log of the
// measured run is returned even if saving fails.
func Bench(ctx context.Context, logger xlog.Logger, dir string, cfg Config, f func(ctx context.Context)) (*eventlog.Log, error) {
	log := eventlog.New()
	ctx = eventlog.WithLog(ctx, log)

	f(ctx)
	eventlog.ClearContext(ctx)

	started := time.Now()
	f(ctx)
	logger.Info(ctx, "Finished measured run",
		zap.Duration("wall", time.Since(started)),
		zap.String("events", humanize.Comma(int64(log.Len()))),
	)

	return log, Save(ctx, logger, log, dir, cfg)
}

// EmitMerged aggregates several independently recorded logs into one merged
// call tree. Time axes of different contexts can not be combined, so the
// chronological mode is skipped.
func EmitMerged(ctx context.Context, logger xlog.Logger, logs [][]eventlog.Event, s sink.Sink, cfg Config) error {
	for _, events := range logs {
		replay.Validate(events)
	}

	sets := make([][]collapsed.Line, len(logs))
	g, gctx := errgroup.WithContext(ctx)
	for i, events := range logs {
		i, events := i, events
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sets[i] = aggregate.MergedLines(events)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return EmitLines(ctx, logger, aggregate.MergeLines(sets...), s, cfg)
}

// EmitLines hands an already merged call tree, e.g. one read from collapsed
// text or a pprof profile, to s. Lines with the same path are summed. Only
// the merged and owntime modes can be derived from such a tree.
func EmitLines(ctx context.Context, logger xlog.Logger, lines []collapsed.Line, s sink.Sink, cfg Config) error {
	cfg.fillDefault()
	modes, err := cfg.ParsedModes()
	if err != nil {
		return err
	}
	dir, err := cfg.ParsedDirection()
	if err != nil {
		return err
	}

	merged := aggregate.MergeLines(lines)
	for _, mode := range modes {
		var out []collapsed.Line
		switch mode {
		case aggregate.Merged:
			out = merged
		case aggregate.SelfTimeRanked:
			out = aggregate.Rank(merged)
		default:
			logger.Warn(ctx, "Skipping mode that needs an event log", zap.String("mode", string(mode)))
			continue
		}
		if err := s.Consume(ctx, mode, out, dir); err != nil {
			return fmt.Errorf("failed to emit %s lines: %w", mode, err)
		}
	}
	return nil
}
