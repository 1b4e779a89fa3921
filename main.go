package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	router "gaia/api/api/http"
	"gaia/api/api/http/controller/home"
	"gaia/api/api/http/controller/viewer"
	"gaia/api/api/interceptor"
	"gaia/api/config"
	"gaia/api/log"
	"gaia/api/service"
	"gaia/api/service/assetpkg"
	"gaia/api/system"
)

func main() {
	confPath := flag.String("config", "", "Path to config.yaml")
	baseURL := flag.String("base-url", "", "Public URL prefix for tile links, empty = relative")
	flag.Parse()

	if err := config.Init(*confPath); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GetConfig()
	if err := log.Init(cfg.Log); err != nil {
		log.Fatalf("init log: %v", err)
	}

	var db *gorm.DB
	if cfg.Tiles.Source == "db" {
		var err error
		if db, err = system.InitDb(cfg.Database); err != nil {
			log.Fatalf("init db: %v", err)
		}
		defer system.CloseDb()
	}

	loader, err := assetpkg.NewLoader(cfg, db)
	if err != nil {
		log.Fatalf("init tile loader: %v", err)
	}
	if c, ok := loader.(io.Closer); ok {
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := service.NewSessionManager(ctx, cfg, loader, service.NewHandleUploader(*baseURL))
	home.Setup(service.NewMapService(loader))
	viewer.Setup(sessions)

	gin.SetMode(cfg.Server.Mode)
	e := gin.New()
	e.Use(gin.Recovery(), interceptor.AccessLog())
	e.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Routers(e.Group("/"))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("gaia api listening on %s (tiles from %s)", cfg.Server.Addr, cfg.Tiles.Source)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Janitor(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down http server...")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("bye")
}
