package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meta-closure/zerot/pkg/api"
	"github.com/meta-closure/zerot/pkg/audit"
	"github.com/meta-closure/zerot/pkg/authctx"
	"github.com/meta-closure/zerot/pkg/config"
	"github.com/meta-closure/zerot/pkg/contract"
	"github.com/meta-closure/zerot/pkg/identity"
	"github.com/meta-closure/zerot/pkg/observability"
	"github.com/meta-closure/zerot/pkg/ratelimit"
	"github.com/meta-closure/zerot/pkg/rules"
)

const maxBodyBytes = 1 << 20

// app holds the wired service and the resources it must release.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	keys      identity.KeySet
	telemetry *observability.Provider
	profiles  *ProfileService
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, auditOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	telemetryCfg := observability.DefaultConfig()
	telemetryCfg.Enabled = cfg.OTelEnabled
	telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	telemetry, err := observability.New(ctx, telemetryCfg, logger)
	if err != nil {
		return nil, err
	}
	a.telemetry = telemetry

	keys, err := identity.NewSeededKeySet(cfg.JWTSeed)
	if err != nil {
		return nil, err
	}
	if cfg.JWTSeed == config.DefaultJWTSeed {
		logger.WarnContext(ctx, "using the default JWT seed; set JWT_SEED outside development")
	}
	a.keys = keys

	limiter, err := a.openLimiter(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	auditLog, err := a.openAudit(ctx, auditOut)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	presets, err := config.LoadPresets(cfg.PresetsPath)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	evaluator, err := rules.NewEvaluator()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.profiles, err = newProfileService(profileDeps{
		engine:    contract.NewEngine(contract.WithLogger(logger)),
		presets:   presets,
		limiter:   limiter,
		limit:     ratelimit.Policy{RPM: cfg.RateLimitRPM, Burst: cfg.RateLimitBurst},
		auditLog:  auditLog,
		evaluator: evaluator,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) openLimiter(ctx context.Context) (ratelimit.Store, error) {
	if a.cfg.RedisAddr == "" {
		return ratelimit.NewMemoryStore(), nil
	}
	store := ratelimit.DialRedis(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis %s: %w", a.cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, store.Close)
	a.logger.InfoContext(ctx, "rate limiting backed by redis", "addr", a.cfg.RedisAddr)
	return store, nil
}

func (a *app) openAudit(ctx context.Context, out io.Writer) (audit.Logger, error) {
	if a.cfg.AuditDriver == "stdout" {
		return audit.NewWriterLogger(out), nil
	}
	store, err := audit.Open(ctx, a.cfg.AuditDriver, a.cfg.AuditDSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// Close releases backends and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /profiles/{id}", a.track("GET /profiles/{id}", a.handleGetProfile))
	mux.Handle("PUT /profiles/{id}", a.track("PUT /profiles/{id}", a.handleUpdateProfile))

	auth := authctx.NewMiddleware(authctx.NewJWTValidator(a.keys, a.cfg.JWTIssuer))
	return authctx.RequestIDMiddleware(auth(mux))
}

// track instruments a handler that reports its error.
func (a *app) track(route string, h func(http.ResponseWriter, *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, done := a.telemetry.TrackOperation(r.Context(), route, attribute.String("http.route", route))
		err := h(w, r.WithContext(ctx))
		done(err)
		if err != nil {
			a.logger.InfoContext(ctx, "request rejected",
				"route", route,
				"request_id", authctx.RequestID(ctx),
				"error", err,
			)
			api.WriteError(w, r, err)
		}
	})
}

func (a *app) handleGetProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := a.profiles.Get(r.Context(), GetProfileInput{UserID: r.PathValue("id")}, nil)
	if err != nil {
		return err
	}
	api.WriteJSON(w, http.StatusOK, p)
	return nil
}

func (a *app) handleUpdateProfile(w http.ResponseWriter, r *http.Request) error {
	var in UpdateProfileInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		api.WriteBadRequest(w, r, "request body must be a JSON profile")
		return nil
	}
	in.UserID = r.PathValue("id")

	p, err := a.profiles.Update(r.Context(), in, nil)
	if err != nil {
		return err
	}
	api.WriteJSON(w, http.StatusOK, p)
	return nil
}

func runServeCmd(_ []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger := config.NewLogger(cfg.LogLevel, stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "audit", cfg.AuditDriver)
		errCh <- srv.ListenAndServe()
	}()

	code := 0
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			code = 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		code = 1
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("release resources", "error", err)
	}
	return code
}
