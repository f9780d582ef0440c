package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/guidely/guidely-backend/api/routes"
	"github.com/guidely/guidely-backend/internal/activities"
	"github.com/guidely/guidely-backend/internal/auth"
	"github.com/guidely/guidely-backend/internal/companies"
	"github.com/guidely/guidely-backend/internal/enrollment"
	"github.com/guidely/guidely-backend/internal/invitations"
	"github.com/guidely/guidely-backend/internal/members"
	"github.com/guidely/guidely-backend/internal/notifications"
	"github.com/guidely/guidely-backend/internal/registrations"
	"github.com/guidely/guidely-backend/internal/users"
	"github.com/guidely/guidely-backend/pkg/auth/session"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/logger"
	"github.com/guidely/guidely-backend/pkg/mail"
	"github.com/guidely/guidely-backend/pkg/migrate"
	"github.com/guidely/guidely-backend/pkg/outbox"
	"github.com/guidely/guidely-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	// Pending intents live as long as a refresh session would.
	intentStore, err := enrollment.NewIntentStore(redisClient, cfg.JWT.RefreshTokenTTL())
	if err != nil {
		logg.Error(context.Background(), "failed to create intent store", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registrationService, err := registrations.NewService(registrations.ServiceParams{
		TxRunner: dbClient,
		Outbox:   outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create registration service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		Intents:        intentStore,
		Registrar:      registrationService,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	companyService, err := companies.NewService(companies.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create company service", err)
		os.Exit(1)
	}

	memberService, err := members.NewService(members.ServiceParams{
		TxRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create members service", err)
		os.Exit(1)
	}

	mailSender, err := mail.NewSender(cfg.Invites, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail sender", err)
		os.Exit(1)
	}

	invitationService, err := invitations.NewService(invitations.ServiceParams{
		TxRunner:   dbClient,
		Outbox:     outboxService,
		Mail:       mailSender,
		InvitesCfg: cfg.Invites,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create invitation service", err)
		os.Exit(1)
	}

	activityService, err := activities.NewServiceFromDB(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create activity service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:              cfg,
			Logger:              logg,
			DB:                  dbClient,
			Redis:               redisClient,
			SessionChecker:      sessionManager,
			AuthService:         authService,
			RegisterService:     registerService,
			IntentStore:         intentStore,
			CompanyService:      companyService,
			MemberService:       memberService,
			InvitationService:   invitationService,
			ActivityService:     activityService,
			RegistrationService: registrationService,
			NotificationService: notificationService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
