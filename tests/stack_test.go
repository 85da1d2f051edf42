// Package tests holds acceptance tests that drive the services against a
// real SurrealDB.
//
// To run them:
//  1. Start SurrealDB: surreal start memory -A --user root --pass root
//  2. Run: go test ./tests/...
//
// Without a reachable database every test is skipped. TEST_DB_HOST,
// TEST_DB_PORT, TEST_DB_USER and TEST_DB_PASSWORD override the defaults.
package tests

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/internal/repository"
	"github.com/forgo/atelier/internal/service"
	"github.com/forgo/atelier/internal/testing/fixtures"
	"github.com/forgo/atelier/internal/testing/helpers"
	"github.com/forgo/atelier/internal/testing/testdb"
)

// stack is the service graph the server builds, over a test database
type stack struct {
	tdb *testdb.TestDB
	f   *fixtures.Factory

	auth           *service.AuthService
	tokens         *service.TokenService
	catalog        *service.CatalogService
	certs          *service.CertificationService
	clients        *service.ClientService
	workshops      *service.WorkshopService
	participations *service.ParticipationService
	waitlists      *service.WaitlistService

	workshopRepo *repository.WorkshopRepository
	waitlistRepo *repository.WaitlistRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()

	tdb := testdb.New(t)
	db := tdb.DB
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	roleLevelRepo := repository.NewRoleLevelRepository(db)
	workshopRepo := repository.NewWorkshopRepository(db)
	participationRepo := repository.NewParticipationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	tokens := service.NewTokenService(service.TokenServiceConfig{
		JWTService: helpers.NewTokenHelper(t).Service,
		TokenRepo:  repository.NewTokenRepository(db),
	})
	clients := service.NewClientService(service.ClientServiceConfig{
		Repo: repository.NewClientRepository(db),
	})
	certs := service.NewCertificationService(service.CertificationServiceConfig{
		Repo:      roleLevelRepo,
		Users:     userRepo,
		Types:     catalogRepo,
		Workshops: workshopRepo,
	})
	// Email disabled: notifications are rendered and dropped
	notifier := service.NewNotifier(service.NotifierConfig{
		Sender:        service.NewEmailService(service.EmailServiceConfig{Logger: logger}),
		PublicBaseURL: "http://atelier.test",
		Logger:        logger,
	})
	waitlists := service.NewWaitlistService(service.WaitlistServiceConfig{
		WaitlistRepo: waitlistRepo,
		Workshops:    workshopRepo,
		Notifier:     notifier,
		Logger:       logger,
	})

	return &stack{
		tdb: tdb,
		f:   fixtures.New(db),
		auth: service.NewAuthService(service.AuthServiceConfig{
			UserRepo:     userRepo,
			TokenService: tokens,
		}),
		tokens:  tokens,
		catalog: service.NewCatalogService(service.CatalogServiceConfig{Repo: catalogRepo, Levels: roleLevelRepo}),
		certs:   certs,
		clients: clients,
		workshops: service.NewWorkshopService(service.WorkshopServiceConfig{
			WorkshopRepo:      workshopRepo,
			ParticipationRepo: participationRepo,
			WaitlistRepo:      waitlistRepo,
			Types:             catalogRepo,
			Clients:           clients,
			Users:             userRepo,
			Seats:             waitlists,
			Notifier:          notifier,
			Logger:            logger,
		}),
		participations: service.NewParticipationService(service.ParticipationServiceConfig{
			ParticipationRepo: participationRepo,
			WaitlistRepo:      waitlistRepo,
			Workshops:         workshopRepo,
			Users:             userRepo,
			Eligibility:       certs,
			Seats:             waitlists,
			Notifier:          notifier,
			Logger:            logger,
		}),
		waitlists:    waitlists,
		workshopRepo: workshopRepo,
		waitlistRepo: waitlistRepo,
	}
}

// viewerOf is the service viewer for u
func viewerOf(u *model.User) *service.Viewer {
	return &service.Viewer{UserID: u.ID, Role: u.Role}
}

// published creates a published workshop of a fresh type for n people
func (s *stack) published(t *testing.T, organizer *model.User, capacity int) *model.Workshop {
	t.Helper()
	wt := s.f.CreateType(t, s.f.CreateFamily(t))
	return s.f.CreateWorkshop(t, wt, organizer, func(o *fixtures.WorkshopOpts) {
		o.Capacity = capacity
		o.StartsAt = time.Now().Add(72 * time.Hour).Truncate(time.Minute)
	})
}
