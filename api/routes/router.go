package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guidely/guidely-backend/api/controllers"
	"github.com/guidely/guidely-backend/api/middleware"
	"github.com/guidely/guidely-backend/internal/activities"
	"github.com/guidely/guidely-backend/internal/auth"
	"github.com/guidely/guidely-backend/internal/companies"
	"github.com/guidely/guidely-backend/internal/enrollment"
	"github.com/guidely/guidely-backend/internal/invitations"
	"github.com/guidely/guidely-backend/internal/members"
	"github.com/guidely/guidely-backend/internal/notifications"
	"github.com/guidely/guidely-backend/internal/registrations"
	"github.com/guidely/guidely-backend/pkg/auth/session"
	"github.com/guidely/guidely-backend/pkg/config"
	"github.com/guidely/guidely-backend/pkg/db"
	"github.com/guidely/guidely-backend/pkg/enums"
	"github.com/guidely/guidely-backend/pkg/logger"
	"github.com/guidely/guidely-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	SessionChecker session.AccessSessionChecker

	AuthService         auth.Service
	RegisterService     auth.RegisterService
	IntentStore         *enrollment.IntentStore
	CompanyService      companies.Service
	MemberService       members.Service
	InvitationService   invitations.Service
	ActivityService     activities.Service
	RegistrationService registrations.Service
	NotificationService notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DB, p.Redis, logg))
	})

	// Anonymous surface. The visitor session middleware hands out the
	// session id that carries enrollment intents through signup.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(logg))

			r.Post("/auth/login", controllers.AuthLogin(p.AuthService, logg))
			r.Post("/auth/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
			r.Post("/intents", controllers.RecordIntent(p.IntentStore, logg))
		})

		r.Post("/auth/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/auth/logout", controllers.AuthLogout(p.AuthService, logg))

		r.Get("/activities", controllers.ActivityListUpcoming(p.ActivityService, logg))
		r.Get("/activities/{activityID}", controllers.ActivityGet(p.ActivityService, logg))
		r.Get("/invitations/{token}", controllers.InvitationPreview(p.InvitationService, logg))
	})

	// Authenticated surface.
	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Get("/activities", controllers.RegistrationMyActivities(p.RegistrationService, logg))
		r.Post("/activities/{activityID}/register", controllers.RegistrationCreate(p.RegistrationService, logg))
		r.Delete("/activities/{activityID}/register", controllers.RegistrationCancel(p.RegistrationService, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.NotificationService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(p.NotificationService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.NotificationService, logg))
		})
	})

	r.Route("/api/v1/guide", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Use(middleware.RequireRole(string(enums.RoleGuide), logg))

		r.Get("/activities", controllers.ActivityGuideSchedule(p.ActivityService, logg))
	})

	// Company management. Service-level checks scope owners to their own
	// company; platform admins pass everywhere.
	r.Route("/api/v1/companies", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Route("/{companyID}", func(r chi.Router) {
			r.Get("/", controllers.CompanyGet(p.CompanyService, logg))
			r.Put("/", controllers.CompanyUpdate(p.CompanyService, logg))

			r.Get("/activities", controllers.ActivityListForCompany(p.ActivityService, logg))
			r.Post("/activities", controllers.ActivityCreate(p.ActivityService, logg))
			r.Put("/activities/{activityID}", controllers.ActivityUpdate(p.ActivityService, logg))
			r.Delete("/activities/{activityID}", controllers.ActivityDelete(p.ActivityService, logg))

			r.Get("/invitations", controllers.InvitationList(p.InvitationService, logg))
			r.Post("/invitations", controllers.InvitationCreate(p.InvitationService, logg))

			r.Get("/members", controllers.MemberList(p.MemberService, logg))
			r.Put("/members/{userID}", controllers.MemberUpdate(p.MemberService, logg))
			r.Delete("/members/{userID}", controllers.MemberRemove(p.MemberService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Use(middleware.RequireRole(string(enums.RolePlatformAdmin), logg))

		r.Get("/companies", controllers.CompanyList(p.CompanyService, logg))
		r.Post("/companies", controllers.CompanyCreate(p.CompanyService, logg))
		r.Delete("/companies/{companyID}", controllers.CompanyDelete(p.CompanyService, logg))
	})

	return r
}
