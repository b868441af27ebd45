//go:build integration

package postgres

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/infra/db/migrations"
)

var testPool *pgxpool.Pool

// TEST_DATABASE_URL skips the throwaway container and uses an existing database.
const externalDSNEnv = "TEST_DATABASE_URL"

func TestMain(m *testing.M) {
	os.Exit(runWithDatabase(m))
}

func runWithDatabase(m *testing.M) int {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("component", "pg-it").Logger()
	ctx := context.Background()

	dsn := os.Getenv(externalDSNEnv)
	if dsn == "" {
		id, url, err := startContainer()
		if err != nil {
			log.Error().Err(err).Msg("could not start postgres container. Is Docker running?")
			return 1
		}
		defer func() {
			if err := exec.Command("docker", "stop", id).Run(); err != nil {
				log.Warn().Err(err).Str("container", id).Msg("could not stop container")
			}
		}()
		dsn = url
	}

	connect := func() error {
		p, err := pgxpool.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		testPool = p
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 45 * time.Second
	notify := func(err error, wait time.Duration) {
		log.Info().Err(err).Dur("retry_in", wait).Msg("waiting for database")
	}
	if err := backoff.RetryNotify(connect, b, notify); err != nil {
		log.Error().Err(err).Msg("database never became ready")
		return 1
	}
	defer testPool.Close()

	if err := migrations.Run(dsn); err != nil {
		log.Error().Err(err).Msg("could not apply migrations")
		return 1
	}
	return m.Run()
}

func startContainer() (id, dsn string, err error) {
	const (
		db   = "vpn_test"
		user = "vpn"
		pass = "vpn"
		port = "55432"
	)
	cmd := exec.Command("docker", "run", "-d", "--rm",
		"-p", port+":5432",
		"-e", "POSTGRES_DB="+db,
		"-e", "POSTGRES_USER="+user,
		"-e", "POSTGRES_PASSWORD="+pass,
		"postgres:16-alpine",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", "", err
	}
	id = strings.TrimSpace(out.String())
	if len(id) > 12 {
		id = id[:12]
	}
	return id, fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", user, pass, port, db), nil
}

func cleanup(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		TRUNCATE
			users, tariffs, promo_codes, promo_redemptions, channels,
			processed_payments, reminder_log
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean up database: %v", err)
	}
}
