package sink

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yandex/firestorm/firestorm/pkg/atomicfs"
	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/convert"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

const (
	DataDir   = "firestorm"
	IndexFile = "firestorm.html"
	PProfFile = "merged.pb.gz"
)

//go:embed index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

////////////////////////////////////////////////////////////////////////////////

// DirSink persists every mode under <dir>/firestorm and keeps
// <dir>/firestorm.html linking the modes consumed so far up to date.
// All files are replaced atomically.
type DirSink struct {
	log  xlog.Logger
	fs   afero.Fs
	dir  string
	opts Options

	mu    sync.Mutex
	modes map[aggregate.Mode]bool
}

var _ Sink = (*DirSink)(nil)

func NewDirSink(log xlog.Logger, dir string, opts Options) *DirSink {
	return newDirSink(log.WithName("DirSink"), afero.NewOsFs(), dir, opts)
}

func newDirSink(log xlog.Logger, fs afero.Fs, dir string, opts Options) *DirSink {
	opts.fillDefault()
	return &DirSink{
		log:   log,
		fs:    fs,
		dir:   dir,
		opts:  opts,
		modes: make(map[aggregate.Mode]bool),
	}
}

// PagePath is the location of a rendered mode relative to the output directory.
func (s *DirSink) PagePath(mode aggregate.Mode) string {
	return path.Join(DataDir, string(mode)+"."+string(s.opts.Format))
}

func (s *DirSink) Consume(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, dir Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = xlog.WrapContext(ctx, zap.String("mode", string(mode)))

	s.mu.Lock()
	defer s.mu.Unlock()

	page := s.path(s.PagePath(mode))
	s.log.Debug(ctx, "Rendering flame graph", zap.String("path", page), zap.Int("lines", len(lines)))

	err := s.write(page, func(w io.Writer) error {
		return renderTo(w, mode, lines, dir, s.opts)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", page, err)
	}
	s.modes[mode] = true

	var errs []error
	if s.opts.Collapsed {
		errs = append(errs, s.writeCollapsed(ctx, mode, lines, dir))
	}
	if s.opts.PProf && mode == aggregate.Merged {
		errs = append(errs, s.writePProf(ctx, lines))
	}
	errs = append(errs, s.writeIndex(ctx))
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.log.Info(ctx, "Saved flame graph", zap.String("path", page))
	return nil
}

func (s *DirSink) path(rel string) string {
	return filepath.Join(s.dir, filepath.FromSlash(rel))
}

func (s *DirSink) write(name string, write func(w io.Writer) error) error {
	return atomicfs.WriteWith(name, write, atomicfs.WithFs(s.fs))
}

func (s *DirSink) writeCollapsed(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, dir Direction) error {
	name := s.path(path.Join(DataDir, string(mode)+".txt"))
	s.log.Debug(ctx, "Writing collapsed lines", zap.String("path", name))

	err := s.write(name, func(w io.Writer) error {
		return encode(w, lines, dir)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (s *DirSink) writePProf(ctx context.Context, lines []collapsed.Line) error {
	name := s.path(path.Join(DataDir, PProfFile))
	s.log.Debug(ctx, "Writing pprof profile", zap.String("path", name))

	prof, err := convert.LinesToPProf(lines)
	if err != nil {
		return fmt.Errorf("failed to convert merged lines to pprof: %w", err)
	}
	if err := s.write(name, prof.Write); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

type indexPage struct {
	Title string
	Path  string
}

// writeIndex links the consumed modes only, so the index never points at
// pages that were not produced.
func (s *DirSink) writeIndex(ctx context.Context) error {
	name := s.path(IndexFile)
	s.log.Debug(ctx, "Writing index", zap.String("path", name))

	pages := make([]indexPage, 0, len(s.modes))
	for _, mode := range aggregate.Modes {
		if s.modes[mode] {
			pages = append(pages, indexPage{Title: ModeTitle(mode), Path: s.PagePath(mode)})
		}
	}

	title := s.opts.Title
	if title == "" {
		title = "firestorm"
	}
	return s.write(name, func(w io.Writer) error {
		return indexTmpl.Execute(w, &struct {
			Title string
			Pages []indexPage
		}{
			Title: title,
			Pages: pages,
		})
	})
}
