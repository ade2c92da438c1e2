package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/config"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/routes"
	"github.com/mbolis/quick-forms/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	svc := service.New(db, access.BcryptHasher{}, cfg.Strict)

	created, err := svc.Users.EnsureAdmin(context.Background(), cfg.AdminUser, cfg.AdminPassword)
	if err != nil {
		log.Fatal("main.bootstrap_admin:", err)
	}
	if created {
		log.Infof("created admin user %q", cfg.AdminUser)
	}
	if cfg.Strict {
		log.Info("strict mode: labels must be unique, required fields and value types are enforced")
	}

	app := app.App{
		Service:      svc,
		BearerServer: httpx.NewBearerServer(db, svc.Users, cfg),
		Config:       cfg,
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
