package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeyushilai/VMware-Manager/internal/config"
	"github.com/yeyushilai/VMware-Manager/internal/util"
	"github.com/yeyushilai/VMware-Manager/pkg/log"
	"github.com/yeyushilai/VMware-Manager/pkg/metrics"
	"github.com/yeyushilai/VMware-Manager/pkg/requestid"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 10 * time.Second
	serviceName             = "vmware_manager_api"
)

type Server struct {
	cfg      *config.ServiceConfig
	svc      Service
	listener net.Listener
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
}

type Option func(*Server)

// WithRegistry serves and registers the server collectors on reg instead of
// the default prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.gatherer = reg
	}
}

// New returns a server for svc listening on listener.
func New(cfg *config.ServiceConfig, svc Service, listener net.Listener, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		listener: listener,
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router and registers the HTTP and inventory collectors.
func (s *Server) Handler() (http.Handler, error) {
	metricMiddleware, err := metrics.NewMiddleware(serviceName)
	if err != nil {
		return nil, err
	}
	if err := metricMiddleware.Register(s.registry); err != nil {
		return nil, err
	}
	if err := s.registry.Register(metrics.NewInventoryCollector(s.svc)); err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(
		util.StripPrefix(s.cfg.PathPrefix),
		chiMiddleware.RequestID,
		requestid.Middleware,
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CorsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{requestid.Header},
			MaxAge:         300,
		}),
		log.Logger(zap.L(), "http"),
		chiMiddleware.Recoverer,
	)
	router.NotFound(notFound)
	router.MethodNotAllowed(methodNotAllowed)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	RegisterApi(router, s.svc)

	return router, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("server")

	handler, err := s.Handler()
	if err != nil {
		return err
	}
	srv := http.Server{Handler: handler}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("server terminated")
	}()

	logger.Infof("Listening on %s...", s.listener.Addr().String())
	if s.cfg.TLSCertFile != "" {
		err = srv.ServeTLS(s.listener, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	} else {
		err = srv.Serve(s.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
