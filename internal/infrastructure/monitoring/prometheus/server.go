package prometheus

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

const readHeaderTimeout = 5 * time.Second

// Server exposes a collector on /metrics, with /healthz for liveness checks.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger logging.Logger
}

// StartServer binds addr and serves c in the background. Binding happens
// before it returns so a taken port is reported to the caller.
func StartServer(addr string, c MetricsCollector, log logging.Logger) (*Server, error) {
	if c == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "metrics server requires a collector")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to bind metrics listener").WithDetail("addr=" + addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		ln:     ln,
		logger: log.Named("metrics_server"),
	}
	go func() {
		s.logger.Info("metrics server listening", logging.String("addr", s.Addr()))
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", logging.Err(err))
		}
	}()
	return s, nil
}

// Addr returns the bound address, which differs from the requested one when
// port 0 was asked for.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "metrics server shutdown")
	}
	return nil
}
