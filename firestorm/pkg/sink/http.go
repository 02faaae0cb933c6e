package sink

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yandex/firestorm/firestorm/pkg/profile/aggregate"
	"github.com/yandex/firestorm/firestorm/pkg/profile/flamegraph/collapsed"
	"github.com/yandex/firestorm/firestorm/pkg/xlog"
)

////////////////////////////////////////////////////////////////////////////////

// HTTPSink lays pages out like DirSink does, but in memory, and serves them
// over http.
type HTTPSink struct {
	log         xlog.Logger
	bindAddress string
	wantBrowser bool

	fs    afero.Fs
	pages *DirSink
}

var _ Sink = (*HTTPSink)(nil)

func NewHTTPSink(log xlog.Logger, address string, browser bool, opts Options) *HTTPSink {
	log = log.WithName("HTTPSink")
	fs := afero.NewMemMapFs()
	return &HTTPSink{
		log:         log,
		bindAddress: address,
		wantBrowser: browser,
		fs:          fs,
		pages:       newDirSink(log, fs, "/", opts),
	}
}

func (s *HTTPSink) Consume(ctx context.Context, mode aggregate.Mode, lines []collapsed.Line, dir Direction) error {
	return s.pages.Consume(ctx, mode, lines, dir)
}

func (s *HTTPSink) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.log.Debug(r.Context(), "Got request", zap.String("url", r.URL.String()))
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		index, err := afero.ReadFile(s.fs, "/"+IndexFile)
		if err != nil {
			http.Error(w, "nothing was recorded yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	})
	r.Handle("/"+DataDir+"/*", http.FileServer(afero.NewHttpFs(s.fs).Dir("/")))

	return r
}

// Serve blocks serving the consumed pages until ctx is done.
func (s *HTTPSink) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return err
	}

	addr := resolvableURL(ln.Addr().String())
	ctx = xlog.WrapContext(ctx, zap.String("address", addr))

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(s.log.WithContext(ctx), "", 0),
	}

	s.log.Info(ctx, "Starting http server")

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
	if s.wantBrowser {
		g.Go(func() error {
			if err := openInBrowser(gctx, s.log, addr); err != nil {
				s.log.Warn(gctx, "Failed to open browser", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func resolvableURL(addr string) string {
	if !strings.HasPrefix(addr, "http") {
		addr = "http://" + addr
	}
	if hostname, ok := getResolvableSelfHostname(); ok {
		addr = strings.ReplaceAll(addr, "[::]", hostname)
		addr = strings.ReplaceAll(addr, "0.0.0.0", hostname)
	}
	return addr
}

func openInBrowser(ctx context.Context, log xlog.Logger, address string) error {
	browserVariants := []string{"xdg-open", "open"}
	if browser, ok := os.LookupEnv("BROWSER"); ok {
		browserVariants = append([]string{browser}, browserVariants...)
	}

	var errs []error
	for _, browser := range browserVariants {
		log.Info(ctx, "Trying to open browser", zap.String("binary", browser))

		cmd := exec.CommandContext(ctx, browser, address)
		err := cmd.Run()
		if err == nil {
			return nil
		}
		if !errors.Is(err, exec.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to open browser: %w", errors.Join(errs...))
	}
	return errors.New("failed to open browser: no valid browser found")
}

func getResolvableSelfHostname() (string, bool) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "", false
	}

	// os.Hostname is not always resolvable, e.g. on macOS laptops.
	ips, err := net.LookupIP(hostname)
	if err != nil || len(ips) < 1 {
		return "", false
	}

	return hostname, true
}
