package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/datastore"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/telaga/secretwall"
	"github.com/telaga/secretwall/stores"
	gaestore "github.com/telaga/secretwall/stores/gae"
	gormstore "github.com/telaga/secretwall/stores/gorm"
)

func main() {
	app := &cli.App{
		Name:  "secretwall",
		Usage: "a wall of anonymous secrets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides SECRETWALL_ADDR)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "user store backend: memory, postgres or datastore (overrides SECRETWALL_STORE)",
			},
		},
		Action: serve,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("secretwall exited", "err", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := secretwall.LoadConfig()
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if name := c.String("store"); name != "" {
		cfg.Store = name
	}

	store, err := buildStore(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("building %s store: %w", cfg.Store, err)
	}

	app := secretwall.NewApp(cfg, store)
	slog.Info("server starting", "addr", cfg.Addr, "store", cfg.Store)
	return http.ListenAndServe(cfg.Addr, app.Handler())
}

func buildStore(ctx context.Context, cfg secretwall.Config) (secretwall.UserStore, error) {
	switch cfg.Store {
	case "", "memory":
		return stores.NewMemUserStore(), nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		return gormstore.NewUserStore(db), nil
	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject)
		if err != nil {
			return nil, err
		}
		return gaestore.NewUserStore(client, ""), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}
