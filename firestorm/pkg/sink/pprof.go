package sink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/pprof/driver"
	"github.com/google/pprof/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/convert"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

var ErrNoProfile = errors.New("no merged lines were consumed")

////////////////////////////////////////////////////////////////////////////////

// PProfSink serves merged lines through the pprof web UI. Other modes are
// not call trees and are ignored.
type PProfSink struct {
	log         xlog.Logger
	address     string
	wantBrowser bool

	mu      sync.Mutex
	profile *profile.Profile
}

var _ Sink = (*PProfSink)(nil)

func NewPProfSink(log xlog.Logger, address string, browser bool) *PProfSink {
	return &PProfSink{
		log:         log.WithName("PProfSink"),
		address:     address,
		wantBrowser: browser,
	}
}

func (s *PProfSink) Consume(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, _ Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode != aggregate.Merged {
		s.log.Debug(ctx, "Skipping lines, pprof only shows merged call trees", zap.String("mode", string(mode)))
		return nil
	}

	prof, err := convert.LinesToPProf(lines)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = prof
	return nil
}

// Serve blocks serving the pprof UI until ctx is done.
func (s *PProfSink) Serve(ctx context.Context) error {
	s.mu.Lock()
	prof := s.profile
	s.mu.Unlock()
	if prof == nil {
		return ErrNoProfile
	}

	mux := http.NewServeMux()
	var hostport string
	server := func(args *driver.HTTPServerArgs) error {
		hostport = args.Hostport
		for pattern, handler := range args.Handlers {
			mux.Handle(pattern, handler)
		}
		return nil
	}

	err := driver.PProf(&driver.Options{
		HTTPServer: server,
		Fetch:      &pprofFetcher{prof.Copy()},
		UI:         &pprofUI{log: s.log, ctx: ctx, wantBrowser: s.wantBrowser},
		Flagset:    pprofFlags(s.address, s.wantBrowser),
	})
	if err != nil {
		return fmt.Errorf("failed to start pprof UI: %w", err)
	}

	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	s.log.Info(ctx, "Starting pprof http server", zap.String("address", resolvableURL(ln.Addr().String())))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

////////////////////////////////////////////////////////////////////////////////

type pprofFetcher struct {
	profile *profile.Profile
}

func (p *pprofFetcher) Fetch(src string, _, _ time.Duration) (*profile.Profile, string, error) {
	return p.profile, src, nil
}

////////////////////////////////////////////////////////////////////////////////

// pprofFlagSet feeds the pprof driver a fixed command line.
type pprofFlagSet struct {
	bools   map[string]bool
	strings map[string]string
	args    []string
}

func pprofFlags(address string, browser bool) pprofFlagSet {
	return pprofFlagSet{
		bools: map[string]bool{
			"no_browser": !browser,
		},
		strings: map[string]string{
			"http":      address,
			"symbolize": "none",
		},
		args: []string{"firestorm"},
	}
}

func (pprofFlagSet) ExtraUsage() string { return "" }

func (pprofFlagSet) AddExtraUsage(string) {}

func (f pprofFlagSet) Bool(name string, def bool, _ string) *bool {
	if b, ok := f.bools[name]; ok {
		return &b
	}
	return &def
}

func (f pprofFlagSet) Int(_ string, def int, _ string) *int {
	return &def
}

func (f pprofFlagSet) Float64(_ string, def float64, _ string) *float64 {
	return &def
}

func (f pprofFlagSet) String(name, def, _ string) *string {
	if s, ok := f.strings[name]; ok {
		return &s
	}
	return &def
}

func (f pprofFlagSet) StringList(string, string, string) *[]*string {
	return &[]*string{}
}

func (f pprofFlagSet) Parse(func()) []string {
	return f.args
}

////////////////////////////////////////////////////////////////////////////////

type pprofUI struct {
	log         xlog.Logger
	ctx         context.Context
	wantBrowser bool
}

var _ driver.UI = (*pprofUI)(nil)

func (u *pprofUI) ReadLine(string) (string, error) {
	return "", nil
}

func (u *pprofUI) Print(args ...any) {
	u.log.Info(u.ctx, "PProf UI message", zap.String("message", fmt.Sprint(args...)))
}

func (u *pprofUI) PrintErr(args ...any) {
	u.log.Warn(u.ctx, "PProf UI error", zap.String("message", fmt.Sprint(args...)))
}

func (u *pprofUI) IsTerminal() bool {
	return false
}

func (u *pprofUI) WantBrowser() bool {
	return u.wantBrowser
}

func (u *pprofUI) SetAutoComplete(func(string) string) {}
