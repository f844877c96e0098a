package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minima/minima/config"
	"minima/minima/controllers"
	"minima/minima/realtime"
	"minima/minima/routes"
	"minima/minima/services/llm"
	"minima/minima/services/search"
	"minima/minima/sources/psql"
	"minima/minima/sources/psql/dao"
	"minima/minima/sources/storage"
	"minima/minima/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	hub := realtime.NewHub()
	userDAO := dao.NewUserDAO(db.DB)
	sessionDAO := dao.NewSessionDAO(db.DB, hub)
	messageDAO := dao.NewMessageDAO(db.DB, sessionDAO, hub)

	llmSvc := llm.NewService(cfg)
	searcher := search.NewSearcher()

	authCtrl := controllers.NewAuthController(userDAO, cfg)
	sessionCtrl := controllers.NewSessionController(sessionDAO, messageDAO)
	generateCtrl := controllers.NewGenerateController(llmSvc)
	healthCtrl := controllers.NewHealthController(llmSvc.Provider)
	searchCtrl := controllers.NewSearchController(searcher)

	// Initialize MinIO
	minioClient, err := storage.NewMinIOClient(cfg)
	if err != nil {
		logging.ErrorLogger.Error("minio connection error", zap.Error(err))
		os.Exit(1)
	}
	documentCtrl := controllers.NewDocumentController(minioClient)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.Mount("/auth", routes.AuthRoutes(authCtrl, cfg))
		gr.Mount("/sessions", routes.SessionRoutes(sessionCtrl, cfg))
		gr.Mount("/api", routes.GenerateRoutes(generateCtrl, healthCtrl))
		gr.Mount("/upload", routes.DocumentRoutes(documentCtrl, cfg))
		gr.Mount("/search", routes.SearchRoutes(searchCtrl, cfg))
	})
	// Change-feed connections are long-lived; keep them outside the timeout.
	r.Mount("/realtime", routes.RealtimeRoutes(hub, messageDAO, cfg))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	logging.AppLogger.Info("server started", zap.String("addr", cfg.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
