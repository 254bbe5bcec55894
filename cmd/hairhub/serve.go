package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ihblv/hairhub-server/internal/formula"
	"github.com/ihblv/hairhub-server/internal/httpapi"
	"github.com/ihblv/hairhub-server/internal/observability"
	"github.com/ihblv/hairhub-server/internal/report"
)

const shutdownGrace = 15 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     a.cfg.Tracing.Enabled,
		Endpoint:    a.cfg.Tracing.Endpoint,
		ServiceName: a.cfg.Tracing.ServiceName,
		Insecure:    a.cfg.Tracing.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(flushCtx); err != nil {
			a.log.Warn("flush traces", zap.Error(err))
		}
	}()

	reg, err := a.registry()
	if err != nil {
		return err
	}
	caller, err := a.caller(ctx)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	pipeline := formula.NewPipeline(caller,
		formula.WithLogger(a.log.Named("formula")),
		formula.WithRecorder(metrics),
		formula.WithTracer(tracing.Tracer("hairhub/formula")),
		formula.WithProvider(a.cfg.LLM.Provider),
	)

	handler, err := httpapi.NewServer(reg, pipeline,
		report.NewChromiumPDFRenderer(a.cfg.Report.ChromePath, a.cfg.Report.Timeout),
		httpapi.Options{
			MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
			RateLimit:      a.cfg.Server.RateLimit,
			Logger:         a.log.Named("http"),
			Metrics:        metrics,
		})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("provider", a.cfg.LLM.Provider),
			zap.String("model", caller.ModelName()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
