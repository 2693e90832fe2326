// server runs the campus auth REST API and the gRPC health endpoint.
package main

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"github.com/dip-aaa/web-project-sub002/internal/audit"
	auditrepo "github.com/dip-aaa/web-project-sub002/internal/audit/repository"
	"github.com/dip-aaa/web-project-sub002/internal/cache"
	catalogrepo "github.com/dip-aaa/web-project-sub002/internal/catalog/repository"
	"github.com/dip-aaa/web-project-sub002/internal/config"
	"github.com/dip-aaa/web-project-sub002/internal/db"
	"github.com/dip-aaa/web-project-sub002/internal/devotp"
	healthhandler "github.com/dip-aaa/web-project-sub002/internal/health/handler"
	identityrepo "github.com/dip-aaa/web-project-sub002/internal/identity/repository"
	"github.com/dip-aaa/web-project-sub002/internal/identity/service"
	"github.com/dip-aaa/web-project-sub002/internal/logger"
	"github.com/dip-aaa/web-project-sub002/internal/mail"
	otprepo "github.com/dip-aaa/web-project-sub002/internal/otp/repository"
	"github.com/dip-aaa/web-project-sub002/internal/policy/engine"
	"github.com/dip-aaa/web-project-sub002/internal/security"
	"github.com/dip-aaa/web-project-sub002/internal/server"
	sessionrepo "github.com/dip-aaa/web-project-sub002/internal/session/repository"
	"github.com/dip-aaa/web-project-sub002/internal/telemetry"
	otelsetup "github.com/dip-aaa/web-project-sub002/internal/telemetry/otel"
	"github.com/dip-aaa/web-project-sub002/internal/telemetry/producer"
	userrepo "github.com/dip-aaa/web-project-sub002/internal/user/repository"
)

const (
	serviceName     = "campus-auth"
	shutdownTimeout = 10 * time.Second
	healthInterval  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.Warn("otel shutdown", zap.Error(err))
		}
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	signer, pub, err := loadKeys(cfg, log)
	if err != nil {
		return err
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	var policy *engine.OPAEvaluator
	if cfg.SignupPolicyFile != "" {
		policy, err = engine.NewOPAEvaluatorFromFile(ctx, cfg.SignupPolicyFile, log)
	} else {
		policy, err = engine.NewOPAEvaluator(ctx, "", log)
	}
	if err != nil {
		return fmt.Errorf("signup policy: %w", err)
	}

	mailer, err := mail.New(ctx, cfg, log)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = limiter.Close() }()

	events := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider, providers.MeterProvider.Meter("campus.auth"))}
	if p := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.TelemetryKafkaTopic); p != nil {
		log.Info("streaming auth events to kafka", zap.String("topic", cfg.TelemetryKafkaTopic))
		events = append(events, p)
		defer func() { _ = p.Close() }()
	}

	var devStore devotp.Store
	if cfg.DevOTPEnabled() {
		devStore = devotp.NewMemoryStore()
	}

	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	colleges := catalogrepo.NewPostgresRepository(conn)
	svc := service.NewAuthService(service.Deps{
		Users:      userrepo.NewPostgresRepository(conn),
		Identities: identities,
		Signups:    identities,
		Sessions:   sessions,
		OTPs:       otprepo.NewPostgresRepository(conn),
		Colleges:   colleges,
		Policy:     policy,
		Hasher:     security.NewHasher(cfg.BcryptCost),
		Tokens:     tokens,
		Mailer:     mailer,
		DevOTP:     devStore,
		Audit:      audit.NewLogger(auditrepo.NewPostgresRepository(conn), log),
		Events:     events,
		Log:        log,
	}, service.Options{
		AllowedDomains: cfg.AllowedEmailDomains(),
		OTPTTL:         cfg.OTPTTL(),
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		ResendCooldown: cfg.ResendCooldown(),
		RefreshTTL:     cfg.RefreshTTL(),
	})

	checker := healthhandler.NewChecker(conn, policy, log)
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.Deps{
			Auth:               svc,
			Tokens:             tokens,
			Sessions:           svc.SessionActive,
			Catalog:            colleges,
			Health:             checker,
			Limiter:            limiter,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			DevOTP:             devStore,
			CORSOrigins:        cfg.CORSOrigins(),
			Log:                log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	var stopGRPC func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		hs := health.NewServer()
		grpcSrv := server.NewGRPCServer(hs)
		stopGRPC = grpcSrv.GracefulStop
		g.Go(func() error {
			log.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			checker.Sync(gctx, hs, healthInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		if stopGRPC != nil {
			stopGRPC()
		}
		return err
	})

	err = g.Wait()
	// let in-flight EmitAsync calls finish before the providers shut down
	time.Sleep(telemetry.ShutdownDrainDuration)
	return err
}

// loadKeys reads the JWT key pair. Outside production a missing pair is replaced by an
// ephemeral one, which invalidates every token on restart.
func loadKeys(cfg *config.Config, log *zap.Logger) (crypto.Signer, crypto.PublicKey, error) {
	if cfg.JWTPrivateKey != "" || cfg.JWTPublicKey != "" {
		return security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	}
	if cfg.Env == "production" {
		return nil, nil, errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set in production")
	}
	log.Warn("JWT keys not configured; using an ephemeral key pair")
	return security.GenerateKeyPair()
}

func newLimiter(cfg *config.Config, log *zap.Logger) (cache.RateLimiter, error) {
	addrs := cfg.RedisAddrs()
	if len(addrs) == 0 {
		return cache.NewMemoryLimiter(), nil
	}
	l, err := cache.NewRedisLimiter(addrs, cfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("using redis rate limiter", zap.Strings("addrs", addrs))
	return l, nil
}
