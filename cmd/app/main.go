package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/application"
	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	mailAdapters "vpn-subscription-bot/internal/infra/adapters/mail"
	panelAdapters "vpn-subscription-bot/internal/infra/adapters/panel"
	payAdapters "vpn-subscription-bot/internal/infra/adapters/payment"
	tele "vpn-subscription-bot/internal/infra/adapters/telegram"
	"vpn-subscription-bot/internal/infra/api"
	"vpn-subscription-bot/internal/infra/db/migrations"
	pg "vpn-subscription-bot/internal/infra/db/postgres"
	"vpn-subscription-bot/internal/infra/events"
	httpapi "vpn-subscription-bot/internal/infra/http"
	"vpn-subscription-bot/internal/infra/i18n"
	"vpn-subscription-bot/internal/infra/logging"
	"vpn-subscription-bot/internal/infra/metrics"
	red "vpn-subscription-bot/internal/infra/redis"
	"vpn-subscription-bot/internal/infra/sched"
	"vpn-subscription-bot/internal/infra/web"
	"vpn-subscription-bot/internal/infra/worker"
	"vpn-subscription-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, no real payments")
	noBot := flag.Bool("no-bot", false, "serve HTTP only; bot messages are logged instead of sent")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] payments go to the noop gateway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if cfg.Database.MigrateOnStart {
		if err := migrations.Run(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	sessions := red.NewSessionRepo(redisClient, 24*time.Hour)
	locker := red.NewLocker(redisClient)

	// ---- i18n ----
	translator, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("translations")
	}

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	tariffRepo := pg.NewTariffRepoCacheDecorator(pg.NewPostgresTariffRepo(pool), redisClient, cfg.Redis.TTL, logger)
	promoRepo := pg.NewPostgresPromoRepo(pool)
	processedRepo := pg.NewPostgresProcessedPaymentRepo(pool)
	reminderRepo := pg.NewReminderLogRepo(pool)
	channelRepo := pg.NewPostgresChannelRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Adapters ----
	panel, err := panelAdapters.NewMarzbanClient(cfg.Panel, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("panel client")
	}

	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopPaymentGateway()
	} else {
		yk, err := payAdapters.NewYooKassaGateway(cfg.Payment.YooKassa.ShopID, cfg.Payment.YooKassa.SecretKey, cfg.Payment.YooKassa.BaseURL, cfg.Payment.ReturnURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("yookassa gateway")
		}
		gateway = yk
	}

	var (
		bot     adapter.TelegramBotAdapter
		realBot *tele.RealTelegramBotAdapter
	)
	if *noBot {
		bot = tele.NewNoopBotAdapter(logger)
	} else {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		bot = realBot
	}

	var mailer adapter.MailSender
	if cfg.Mail.Host != "" {
		mailer = mailAdapters.NewSMTPSender(&cfg.Mail, logger)
	} else {
		logger.Warn().Msg("mail.host is empty; password reset codes will not be delivered")
		mailer = mailAdapters.NewNoopMailSender(logger)
	}

	txlog := events.MultiLogger{tele.NewAdminChatLogger(bot, translator, cfg.Bot.AdminChatID, cfg.Payment.Currency)}
	if cfg.AMQP.URL != "" {
		pub, err := events.DialPublisher(ctx, cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("amqp")
		}
		defer pub.Close()
		txlog = append(txlog, pub)
	}

	// ---- Use cases ----
	workerPool := worker.NewPool(cfg.Bot.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	userUC := usecase.NewUserUseCase(userRepo, panel, tm, logger)
	tariffUC := usecase.NewTariffUseCase(tariffRepo, logger)
	provUC := usecase.NewProvisioningUseCase(userRepo, panel, tm, logger)
	paymentUC := usecase.NewPaymentUseCase(gateway, userRepo, tariffRepo, processedRepo, sessions,
		usecase.PaymentOptions{Currency: cfg.Payment.Currency, ReturnURL: cfg.Payment.ReturnURL}, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, sessions, provUC, tm, logger)
	referralUC := usecase.NewReferralUseCase(userRepo, panel, provUC, bot, tm, translator, cfg.Subscription.ReferralBonusDays, logger)
	reconcileUC := usecase.NewReconcileUseCase(gateway, userRepo, tariffRepo, processedRepo, provUC, referralUC, txlog, bot, locker, tm, translator,
		usecase.ReconcileOptions{VerifyWithGateway: cfg.Payment.VerifyWebhooks, LockTTL: 2 * time.Minute}, logger)
	trialUC := usecase.NewTrialUseCase(userRepo, channelRepo, provUC, bot, tm, cfg.Subscription.TrialDays, logger)
	supportUC := usecase.NewSupportUseCase(userRepo, sessions, bot, translator, cfg.Bot.SupportChatID, cfg.Support.SessionTimeout, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, panel, logger)
	notifUC := usecase.NewNotificationUseCase(userRepo, reminderRepo, bot, translator,
		usecase.ReminderOptions{Days: cfg.Subscription.ReminderDays, Hours: cfg.Subscription.ReminderHours}, logger)
	broadcastUC := usecase.NewBroadcastUseCase(userRepo, bot, workerPool, logger)
	resetCodes := red.NewResetCodeRepo(redisClient, cfg.Mail.ResetCodeTTL, cfg.Mail.ResetAttempts)
	passwordResetUC := usecase.NewPasswordResetUseCase(userRepo, resetCodes, mailer, logger)

	// ---- Telegram ----
	if realBot != nil {
		facade := application.NewBotFacade(userUC, tariffUC, paymentUC, promoUC, trialUC, supportUC, statsUC, broadcastUC, sessions, translator,
			application.FacadeOptions{AdminIDs: cfg.Bot.AdminIDs, BotUsername: cfg.Bot.Username, Currency: cfg.Payment.Currency})
		realBot.Attach(facade)
		go func() {
			if err := realBot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
		defer realBot.StopPolling()
	}

	// ---- HTTP ----
	webhook := api.NewServer(reconcileUC, cfg.Payment.WebhookPath, logger)
	webhook.AddHealthCheck("postgres", func(ctx context.Context) error { return pool.Ping(ctx) })
	webhook.AddHealthCheck("redis", redisClient.Ping)

	var dashboard *web.Server
	if cfg.Web.JWTSecret != "" {
		auth := web.NewAuthManager(cfg.Web.JWTSecret, cfg.Web.SecureCookie, cfg.Web.CookieDomain, cfg.Web.SessionTTL)
		dashboard = web.NewServer(web.UseCases{
			User:          userUC,
			Tariff:        tariffUC,
			Payment:       paymentUC,
			Promo:         promoUC,
			Trial:         trialUC,
			Stats:         statsUC,
			Broadcast:     broadcastUC,
			Provisioning:  provUC,
			PasswordReset: passwordResetUC,
		}, auth, cfg.Web.AdminAPIKey, logger)
	} else {
		logger.Warn().Msg("web.jwt_secret is empty; dashboard and admin API are disabled")
	}

	srv := httpapi.NewServer(&cfg.HTTP, webhook, dashboard, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Background workers ----
	go runWorker(ctx, logger, "notification", sched.NewNotificationWorker(cfg.Scheduler.ReminderInterval, notifUC, logger).Run)
	go runWorker(ctx, logger, "expiry", sched.NewExpiryWorker(cfg.Scheduler.GaugeInterval, statsUC, logger).Run)
	go runWorker(ctx, logger, "sweeper", sched.NewProvisioningSweeper(provUC, cfg.Scheduler.SweepInterval, cfg.Scheduler.SweepBatch, logger).Run)
	go reportPoolStats(ctx, pool, cfg.Scheduler.GaugeInterval)

	logger.Info().Str("version", version).Msg("service started")

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func runWorker(ctx context.Context, logger *zerolog.Logger, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Str("worker", name).Msg("worker stopped")
	}
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObservePool(pool.Stat())
		}
	}
}
