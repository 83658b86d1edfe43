package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wattwise/internal/config"
	"github.com/mamadbah2/wattwise/internal/repository/mongodb"
	"github.com/mamadbah2/wattwise/internal/repository/sheets"
	"github.com/mamadbah2/wattwise/internal/scheduler"
	"github.com/mamadbah2/wattwise/internal/server/handlers"
	"github.com/mamadbah2/wattwise/internal/server/router"
	"github.com/mamadbah2/wattwise/internal/server/ws"
	appliancesvc "github.com/mamadbah2/wattwise/internal/service/appliance"
	authsvc "github.com/mamadbah2/wattwise/internal/service/auth"
	"github.com/mamadbah2/wattwise/internal/service/prediction"
	reportingsvc "github.com/mamadbah2/wattwise/internal/service/reporting"
	predictorclient "github.com/mamadbah2/wattwise/pkg/clients/predictor"
	"github.com/mamadbah2/wattwise/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	// Spreadsheet export is optional; without credentials reports stay in MongoDB only.
	var exporter sheets.Exporter
	if cfg.Sheets.SpreadsheetID != "" {
		exporter, err = sheets.NewGoogleSheetExporter(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets exporter", zap.Error(err))
		}
		baseLogger.Info("google sheets export enabled")
	} else {
		baseLogger.Warn("google sheets credentials missing, report export disabled")
	}

	var predictor prediction.Predictor
	if cfg.Predictor.URL != "" {
		predictor = predictorclient.NewHTTPClient(cfg.Predictor.URL, cfg.Predictor.Timeout)
		baseLogger.Info("http predictor enabled", zap.String("url", cfg.Predictor.URL))
	} else {
		predictor = prediction.NewScriptPredictor(cfg.Predictor.Interpreter, cfg.Predictor.ScriptPath, cfg.Predictor.Timeout, baseLogger.Named("svc.prediction"))
		baseLogger.Info("script predictor enabled", zap.String("script", cfg.Predictor.ScriptPath))
	}

	applianceSvc := appliancesvc.NewService(mongoRepo, baseLogger.Named("svc.appliance"))
	authSvc := authsvc.NewService(mongoRepo, cfg.Auth, baseLogger.Named("svc.auth"))
	reportingSvc := reportingsvc.NewService(mongoRepo, mongoRepo, exporter, baseLogger.Named("svc.reporting"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := ws.NewHub(ws.BroadcastAll, baseLogger.Named("ws.hub"))
	go hub.Run(ctx)

	dispatcher := ws.NewDispatcher(hub, applianceSvc, predictor, baseLogger.Named("ws.dispatcher"))
	wsHandler := ws.NewHandler(hub, dispatcher, cfg.Server.CORSOrigin, baseLogger.Named("ws.handler"))

	userHandler := handlers.NewUserHandler(authSvc, mongoRepo, cfg.Server.IsProduction(), baseLogger.Named("handlers.user"))
	engine := router.New(userHandler, wsHandler, cfg.Server.CORSOrigin, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(cfg.Reporting, reportingSvc, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
