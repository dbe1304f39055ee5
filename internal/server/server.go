package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/harshithgowdakt/granulestore/internal/gologger"
	"github.com/harshithgowdakt/granulestore/internal/merge"
	"github.com/harshithgowdakt/granulestore/internal/metrics"
	"github.com/harshithgowdakt/granulestore/internal/storage"
)

var logger = gologger.Component("server")

// Server exposes the database over HTTP and runs the background merger.
type Server struct {
	db      *storage.Database
	merger  *merge.BackgroundMerger
	addr    string
	handler *Handler
	echo    *echo.Echo
}

// NewServer creates a new server.
func NewServer(db *storage.Database, addr string, mergeInterval time.Duration) *Server {
	s := &Server{
		db:      db,
		merger:  merge.NewBackgroundMerger(db, mergeInterval),
		addr:    addr,
		handler: NewHandler(db),
		echo:    echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadHeaderTimeout = 5 * time.Second

	s.echo.Use(requestContext)
	s.echo.Use(requestLogger)

	s.echo.GET("/ping", s.handler.HandlePing)
	s.echo.GET("/tables", s.handler.HandleTables)
	s.echo.GET("/tables/:table/parts", s.handler.HandleParts)
	s.echo.GET("/tables/:table/select", s.handler.HandleSelect)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return s
}

// Routes returns the HTTP handler serving all routes.
func (s *Server) Routes() http.Handler {
	return s.echo
}

// Start starts the HTTP server and background merger. It returns once ctx is
// cancelled and the listener has shut down.
func (s *Server) Start(ctx context.Context) error {
	go s.merger.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("addr", s.addr).Msg("granulestore listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestContext tags the request context logger with a request id.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := uuid.NewString()
		ctx := logger.With().Str("reqID", reqID).Logger().WithContext(c.Request().Context())
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)
		return next(c)
	}
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		req := c.Request()
		zerolog.Ctx(req.Context()).Debug().
			Str("method", req.Method).
			Str("uri", req.RequestURI).
			Str("handler_path", c.Path()).
			Int("status", c.Response().Status).
			Dur("latency", time.Since(start)).
			Int64("bytes_out", c.Response().Size).
			Msg("request")
		return nil
	}
}
