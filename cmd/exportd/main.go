package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/trackops/exportd/internal/api"
	"github.com/trackops/exportd/internal/config"
	"github.com/trackops/exportd/internal/dataset"
	"github.com/trackops/exportd/internal/export"
	"github.com/trackops/exportd/internal/queue"
	"github.com/trackops/exportd/internal/storage"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg.AppEnv)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()
	rdb := r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	store := storage.New(db)
	q := queue.New(rdb)

	reg := dataset.NewRegistry()
	dataset.NewPG(db).RegisterAll(reg)

	svc := export.NewService(store, q, reg, log)
	worker := export.NewWorker(store, reg, cfg.ExportDir, log)
	disp := export.NewDispatcher(q, worker, cfg.ExportWorkers, time.Duration(cfg.JobTimeoutSec)*time.Second, log)
	disp.Start(ctx)

	sweeper := export.NewSweeper(store, cfg.ExportDir, cfg.RetentionDays, log)
	sweeper.Start(ctx, cfg.CleanupAt)

	h := api.New(svc, sweeper, export.NewInspector(cfg.ExportDir), log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h.Routes()}
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shctx)
	}()

	log.Info("exportd listening", zap.String("addr", cfg.HTTPAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("serve", zap.Error(err))
	}
	disp.Wait()
	log.Info("shutdown complete")
}

func newLogger(appEnv string) *zap.Logger {
	if appEnv == "production" {
		l, _ := zap.NewProduction()
		return l
	}
	l, _ := zap.NewDevelopment()
	return l
}
