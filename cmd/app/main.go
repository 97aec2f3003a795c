// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paysession/internal/config"
	"paysession/internal/domain/ports/adapter"
	gen "paysession/internal/infra/adapters/generator"
	pg "paysession/internal/infra/db/postgres"
	"paysession/internal/infra/logging"
	"paysession/internal/infra/metrics"
	"paysession/internal/infra/payment"
	red "paysession/internal/infra/redis"
	"paysession/internal/infra/sched"
	"paysession/internal/infra/security"
	"paysession/internal/infra/token"
	"paysession/internal/infra/web"
	"paysession/internal/infra/worker"
	"paysession/internal/usecase"
)

const srvShutdownTimeout = 10 * time.Second

// Overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway and generator)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	sessionCache := red.NewSessionCache(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Encryption ----
	encKey := cfg.Generator.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("generator.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	sessionRepo := pg.NewSessionRepo(pool, sessionCache, encSvc)
	creditRepo := pg.NewTimeCreditRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev || cfg.Payment.Gateway.BaseURL == "" {
		gateway = payment.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop")
	} else {
		gateway = payment.NewHTTPGateway(cfg.Payment.Gateway.BaseURL, cfg.Payment.Gateway.APIKey, cfg.Payment.Gateway.Sandbox)
		logger.Info().Str("base_url", cfg.Payment.Gateway.BaseURL).Msg("payment gateway: http")
	}

	// ---- Content generator (OpenAI -> Gemini failover) ----
	var chain []adapter.ContentGenerator
	if cfg.Generator.OpenAIKey != "" {
		g, err := gen.NewOpenAIGenerator(cfg.Generator.OpenAIKey, cfg.Generator.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai generator")
		}
		chain = append(chain, g)
	}
	if cfg.Generator.GeminiKey != "" {
		g, err := gen.NewGeminiGenerator(ctx, cfg.Generator.GeminiKey, cfg.Generator.GeminiURL, "", 4096)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini generator")
		}
		chain = append(chain, g)
	}
	if len(chain) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no generation provider configured: set generator.openai_key or generator.gemini_key")
		}
		chain = append(chain, gen.NewNoopGenerator())
		logger.Warn().Msg("content generator: noop")
	}
	generator := gen.NewMultiGenerator(chain...)

	// ---- Tokens ----
	issuer := token.NewIssuer(cfg.Session.TokenSecret, cfg.Session.TokenTTL)

	// ---- Use cases ----
	orderUC := usecase.NewOrderUseCase(orderRepo, paymentRepo, sessionRepo, gateway, tm, cfg.Payment.DiscountPercent, logger)
	confirmUC := usecase.NewConfirmUseCase(orderRepo, paymentRepo, gateway, tm, cfg.Payment.PollAttempts, cfg.Payment.PollInterval, logger)
	sessionUC := usecase.NewSessionUseCase(sessionRepo, orderRepo, paymentRepo, creditRepo, confirmUC, generator, issuer, tm, locker, logger)
	creditUC := usecase.NewCreditUseCase(creditRepo, sessionRepo, orderRepo, paymentRepo, confirmUC, tm, logger)

	// ---- Background workers ----
	workers := worker.NewPool(cfg.Generator.WorkerCount, logger)
	workers.Start(ctx)
	defer workers.Stop()
	regen := worker.NewRegenProcessor(workers, sessionUC, logger)

	reconciler := sched.NewPaymentReconciler(confirmUC, paymentRepo, cfg.Payment.ReconcileEvery, cfg.Payment.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	expiry := sched.NewExpiryWorker(cfg.Session.ExpirySweep, sessionRepo, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(orderUC, confirmUC, sessionUC, creditUC, regen, cfg.Payment.WebhookSecret, logger)
	go func() {
		if err := srv.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), srvShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
