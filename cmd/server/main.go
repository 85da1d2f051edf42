package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/forgo/atelier/internal/config"
	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/handler"
	"github.com/forgo/atelier/internal/jobs"
	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/middleware"
	"github.com/forgo/atelier/internal/repository"
	"github.com/forgo/atelier/internal/service"
	"github.com/forgo/atelier/pkg/jwt"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("server exited")
}

// newLogger prints colored text in development and JSON everywhere else
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
		TLS:       cfg.Database.TLS,
		SlowQuery: cfg.Database.SlowQuery,
	})
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		Audience:       cfg.JWT.Audience,
		ExpirationMins: cfg.JWT.ExpirationMins,
		Leeway:         cfg.JWT.Leeway,
	})
	if err != nil {
		return err
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	clientRepo := repository.NewClientRepository(db)
	roleLevelRepo := repository.NewRoleLevelRepository(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	participationRepo := repository.NewParticipationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	// Services
	tokenService := service.NewTokenService(service.TokenServiceConfig{
		JWTService: jwtService,
		TokenRepo:  tokenRepo,
	})
	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     userRepo,
		TokenService: tokenService,
	})
	clientService := service.NewClientService(service.ClientServiceConfig{
		Repo: clientRepo,
	})
	catalogService := service.NewCatalogService(service.CatalogServiceConfig{
		Repo:   catalogRepo,
		Levels: roleLevelRepo,
	})
	certService := service.NewCertificationService(service.CertificationServiceConfig{
		Repo:      roleLevelRepo,
		Users:     userRepo,
		Types:     catalogRepo,
		Workshops: workshopRepo,
	})
	emailService := service.NewEmailService(service.EmailServiceConfig{
		Enabled: cfg.Email.Enabled,
		APIURL:  cfg.Email.APIURL,
		APIKey:  cfg.Email.APIKey,
		From:    cfg.Email.From,
		Timeout: cfg.Email.Timeout,
	})
	notifier := service.NewNotifier(service.NotifierConfig{
		Sender:        emailService,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	})
	waitlistService := service.NewWaitlistService(service.WaitlistServiceConfig{
		WaitlistRepo: waitlistRepo,
		Workshops:    workshopRepo,
		Notifier:     notifier,
	})
	workshopService := service.NewWorkshopService(service.WorkshopServiceConfig{
		WorkshopRepo:      workshopRepo,
		ParticipationRepo: participationRepo,
		WaitlistRepo:      waitlistRepo,
		Types:             catalogRepo,
		Clients:           clientService,
		Users:             userRepo,
		Seats:             waitlistService,
		Notifier:          notifier,
	})
	participationService := service.NewParticipationService(service.ParticipationServiceConfig{
		ParticipationRepo: participationRepo,
		WaitlistRepo:      waitlistRepo,
		Workshops:         workshopRepo,
		Users:             userRepo,
		Eligibility:       certService,
		Seats:             waitlistService,
		Notifier:          notifier,
	})
	adminUsersService := service.NewAdminUsersService(userRepo, roleLevelRepo, clientService)

	calendar := service.NewCalendarRenderer(cfg.Server.PublicBaseURL, time.Now)

	// Handlers
	healthHandler := handler.NewHealthHandler(db, version)
	authHandler := handler.NewAuthHandler(authService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	certHandler := handler.NewCertificationHandler(certService)
	clientHandler := handler.NewClientHandler(clientService)
	workshopHandler := handler.NewWorkshopHandler(workshopService, calendar)
	participationHandler := handler.NewParticipationHandler(participationService, calendar)
	waitlistHandler := handler.NewWaitlistHandler(waitlistService)
	emailHandler := handler.NewEmailHandler(emailService)
	adminUsersHandler := handler.NewAdminUsersHandler(adminUsersService)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:            cfg.RateLimit.Rate,
		Window:          cfg.RateLimit.Window,
		Burst:           cfg.RateLimit.Burst,
		CredentialsRate: cfg.RateLimit.CredentialsRate,
	})
	defer rateLimiter.Stop()

	idempotencyStore := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{
		TTL: 24 * time.Hour,
	})
	defer idempotencyStore.Stop()

	authMiddleware := middleware.Auth(tokenService)
	optionalAuth := middleware.OptionalAuth(tokenService)
	organizerAuth := middleware.OrganizerAuth()
	adminAuth := middleware.AdminAuth()

	public := func(h http.HandlerFunc) http.Handler { return optionalAuth(h) }
	authed := func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }
	organizer := func(h http.HandlerFunc) http.Handler { return authMiddleware(organizerAuth(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMiddleware(adminAuth(h)) }

	mux := http.NewServeMux()

	// Operational
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /v1/auth/refresh", authHandler.Refresh)
	mux.Handle("POST /v1/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /v1/auth/me", authed(authHandler.Me))
	mux.Handle("POST /v1/auth/password", authed(authHandler.ChangePassword))

	// Catalog and certification ladder (public reads)
	mux.Handle("GET /v1/catalog/families", public(catalogHandler.ListFamilies))
	mux.Handle("GET /v1/catalog/families/{familyId}/types", public(catalogHandler.ListTypes))
	mux.Handle("GET /v1/catalog/types/{typeId}", public(catalogHandler.GetType))
	mux.Handle("GET /v1/role-levels", public(certHandler.ListLevels))

	// Workshops
	mux.Handle("GET /v1/workshops", public(workshopHandler.List))
	mux.Handle("GET /v1/workshops/{workshopId}", public(workshopHandler.Get))
	mux.Handle("GET /v1/workshops/{workshopId}/calendar.ics", public(workshopHandler.Calendar))
	mux.Handle("POST /v1/workshops", organizer(workshopHandler.Create))
	mux.Handle("POST /v1/workshops/series", organizer(workshopHandler.CreateSeries))
	mux.Handle("PATCH /v1/workshops/{workshopId}", organizer(workshopHandler.Update))
	mux.Handle("POST /v1/workshops/{workshopId}/status", organizer(workshopHandler.Transition))
	mux.Handle("GET /v1/workshops/{workshopId}/participants", organizer(workshopHandler.Participants))
	mux.Handle("POST /v1/workshops/{workshopId}/participants", organizer(workshopHandler.AddAnimator))
	mux.Handle("POST /v1/workshops/{workshopId}/organizers", organizer(workshopHandler.AddOrganizer))
	mux.Handle("PATCH /v1/workshops/{workshopId}/participants/{participationId}", organizer(workshopHandler.MarkAttendance))
	mux.Handle("GET /v1/workshops/{workshopId}/waitlist", organizer(workshopHandler.Waitlist))

	// Participation
	mux.Handle("POST /v1/workshops/{workshopId}/registration", authed(participationHandler.Register))
	mux.Handle("DELETE /v1/workshops/{workshopId}/registration", authed(participationHandler.Cancel))
	mux.Handle("POST /v1/workshops/{workshopId}/feedback", authed(participationHandler.Feedback))
	mux.Handle("GET /v1/workshops/{workshopId}/eligibility", authed(certHandler.Eligibility))

	// Me
	mux.Handle("GET /v1/me/participations", authed(participationHandler.MyParticipations))
	mux.Handle("GET /v1/me/waitlist", authed(participationHandler.MyWaitlist))
	mux.Handle("GET /v1/me/certification", authed(certHandler.MyStatus))
	mux.Handle("GET /v1/me/calendar.ics", authed(participationHandler.MyCalendar))

	// Email
	mux.Handle("POST /v1/email/send", organizer(emailHandler.Send))

	// Admin catalog
	mux.Handle("POST /v1/admin/families", admin(catalogHandler.CreateFamily))
	mux.Handle("PATCH /v1/admin/families/{familyId}", admin(catalogHandler.UpdateFamily))
	mux.Handle("DELETE /v1/admin/families/{familyId}", admin(catalogHandler.DeleteFamily))
	mux.Handle("POST /v1/admin/types", admin(catalogHandler.CreateType))
	mux.Handle("PATCH /v1/admin/types/{typeId}", admin(catalogHandler.UpdateType))
	mux.Handle("DELETE /v1/admin/types/{typeId}", admin(catalogHandler.DeleteType))

	// Admin certification
	mux.Handle("POST /v1/admin/role-levels", admin(certHandler.CreateLevel))
	mux.Handle("PATCH /v1/admin/role-levels/{levelId}", admin(certHandler.UpdateLevel))
	mux.Handle("DELETE /v1/admin/role-levels/{levelId}", admin(certHandler.DeleteLevel))
	mux.Handle("POST /v1/admin/role-levels/{levelId}/requirements", admin(certHandler.AddRequirement))
	mux.Handle("DELETE /v1/admin/requirements/{requirementId}", admin(certHandler.DeleteRequirement))

	// Admin clients
	mux.Handle("GET /v1/admin/clients", admin(clientHandler.List))
	mux.Handle("POST /v1/admin/clients", admin(clientHandler.Create))
	mux.Handle("GET /v1/admin/clients/{clientId}", admin(clientHandler.Get))
	mux.Handle("PATCH /v1/admin/clients/{clientId}", admin(clientHandler.Update))
	mux.Handle("DELETE /v1/admin/clients/{clientId}", admin(clientHandler.Delete))

	// Admin users
	mux.Handle("GET /v1/admin/users", admin(adminUsersHandler.ListUsers))
	mux.Handle("GET /v1/admin/users/{userId}", admin(adminUsersHandler.GetUser))
	mux.Handle("PATCH /v1/admin/users/{userId}/role", admin(adminUsersHandler.UpdateRole))
	mux.Handle("PATCH /v1/admin/users/{userId}/client", admin(adminUsersHandler.AttachClient))
	mux.Handle("DELETE /v1/admin/users/{userId}", admin(adminUsersHandler.DeleteUser))
	mux.Handle("POST /v1/admin/users/{userId}/role-level", admin(certHandler.GrantLevel))
	mux.Handle("GET /v1/admin/users/{userId}/certification", admin(certHandler.UserStatus))

	// Admin waiting lists
	mux.Handle("GET /v1/admin/waitlists", admin(waitlistHandler.List))
	mux.Handle("POST /v1/admin/waitlists/{entryId}/promote", admin(waitlistHandler.Promote))
	mux.Handle("DELETE /v1/admin/waitlists/{entryId}", admin(waitlistHandler.Remove))

	wrapped := middleware.Chain(
		middleware.Metrics(mux),
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(rateLimiter),
		middleware.Idempotency(idempotencyStore),
		middleware.Compress,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Jobs.Enabled {
		lifecycle := jobs.NewWorkshopLifecycleProcessor(jobs.LifecycleConfig{
			Workshops: workshopRepo,
			Waitlists: waitlistRepo,
			Tokens:    tokenService,
			Interval:  cfg.Jobs.LifecycleInterval,
		})
		reminders := jobs.NewReminderProcessor(jobs.ReminderConfig{
			Workshops:    workshopRepo,
			Participants: participationRepo,
			Notifier:     notifier,
			Interval:     cfg.Jobs.ReminderInterval,
			LeadTime:     cfg.Jobs.ReminderLeadTime,
		})
		g.Go(func() error { return lifecycle.Run(gctx) })
		g.Go(func() error { return reminders.Run(gctx) })
	}

	g.Go(func() error {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
