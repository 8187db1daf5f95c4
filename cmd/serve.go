package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/redflag-cli/internal/model"
	"github.com/sells-group/redflag-cli/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve review extraction and analysis over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := initCrawler(cfg, "")
		if err != nil {
			return err
		}
		var a flagger
		if an := initAnalyzer(cfg); an != nil {
			a = an
		} else {
			zap.L().Warn("anthropic.key not set, /v1/analyze disabled")
		}

		handler := buildRouter(serverDeps{
			Crawler:       c,
			Analyzer:      a,
			MaxConcurrent: cfg.Server.MaxConcurrent,
			Timeout:       time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		})
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// serverDeps holds what the HTTP handlers need.
type serverDeps struct {
	Crawler       reviewCrawler
	Analyzer      flagger // nil disables /v1/analyze
	MaxConcurrent int
	Timeout       time.Duration
}

type reviewsRequest struct {
	URL string `json:"url"`
	Max int    `json:"max"`
}

type ctxKey struct{}

// buildRouter wires the HTTP routes. At most MaxConcurrent crawls run at
// once; further requests wait for a slot until their deadline.
func buildRouter(deps serverDeps) http.Handler {
	if deps.MaxConcurrent < 1 {
		deps.MaxConcurrent = 1
	}
	sem := semaphore.NewWeighted(int64(deps.MaxConcurrent))

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/reviews", reviewsHandler(deps, sem, false))
		r.Post("/analyze", reviewsHandler(deps, sem, true))
	})

	return r
}

// requestID tags each request with a uuid and a logger carrying it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		log := zap.L().With(zap.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, log)))
	})
}

func logger(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return log
	}
	return zap.L()
}

func reviewsHandler(deps serverDeps, sem *semaphore.Weighted, analyze bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger(r.Context())

		var req reviewsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		if req.Max < 0 {
			writeError(w, http.StatusBadRequest, "max must be >= 0")
			return
		}
		if analyze && deps.Analyzer == nil {
			writeError(w, http.StatusServiceUnavailable, "analysis is not configured")
			return
		}

		ctx := r.Context()
		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
			defer cancel()
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn("no crawl slot available", zap.String("url", req.URL), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "server busy")
			return
		}
		res, err := deps.Crawler.Crawl(ctx, req.URL, req.Max)
		sem.Release(1)
		if err != nil {
			status := statusFor(err)
			log.Warn("crawl failed", zap.String("url", req.URL), zap.Int("status", status), zap.Error(err))
			writeError(w, status, err.Error())
			return
		}

		out := report.FromResult(res)
		if analyze {
			flags, err := deps.Analyzer.Analyze(ctx, res.Reviews)
			if err != nil {
				log.Error("analysis failed", zap.String("place_id", res.PlaceID.String()), zap.Error(err))
				out.SetAnalysisError(err)
			} else {
				out.SetFlags(flags)
			}
		}

		log.Info("request complete",
			zap.String("url", req.URL),
			zap.String("place_id", res.PlaceID.String()),
			zap.Int("reviews", len(res.Reviews)),
		)
		writeJSON(w, http.StatusOK, out)
	}
}

// statusFor maps a crawl error to an HTTP status.
func statusFor(err error) int {
	switch {
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsBlocked(err):
		return http.StatusLocked
	case model.IsNetwork(err):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
