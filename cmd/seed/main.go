package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/domain/model"
	"vpn-subscription-bot/internal/infra/db/migrations"
	pg "vpn-subscription-bot/internal/infra/db/postgres"
	"vpn-subscription-bot/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := migrations.Run(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	pool, err := pg.Connect(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	tariffUC := usecase.NewTariffUseCase(pg.NewPostgresTariffRepo(pool), &logger)

	// If tariffs already exist, do nothing
	tariffs, err := tariffUC.ListAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list tariffs")
	}
	if len(tariffs) > 0 {
		fmt.Printf("%d tariffs already present. No changes.\n", len(tariffs))
		for _, t := range tariffs {
			fmt.Printf("  - %s (days=%d, price=%s %s, active=%t)\n", t.Name, t.DurationDays, model.FormatAmount(t.Price), cfg.Payment.Currency, t.IsActive)
		}
		return
	}

	// Prices are in minor units.
	seed := []struct {
		Name  string
		Days  int
		Price int64
	}{
		{"1 month", 30, 19900},
		{"3 months", 90, 54900},
		{"6 months", 180, 99900},
		{"12 months", 365, 179900},
	}

	for _, s := range seed {
		t, err := tariffUC.Create(ctx, s.Name, s.Price, s.Days)
		if err != nil {
			logger.Fatal().Err(err).Str("tariff", s.Name).Msg("create tariff")
		}
		fmt.Printf("seeded: %s (id=%d, days=%d, price=%s %s)\n", t.Name, t.ID, t.DurationDays, model.FormatAmount(t.Price), cfg.Payment.Currency)
	}

	fmt.Println("Seeding complete.")
}
