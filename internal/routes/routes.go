package routes

import (
	"net/http"

	"github.com/questboard/questboard/internal/app"
	"github.com/questboard/questboard/internal/handler"
	"github.com/questboard/questboard/internal/middleware"
	"github.com/questboard/questboard/internal/render"
	"github.com/questboard/questboard/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.ProfileService, app.Cfg)
	account := handler.NewAccountHandler(app.AuthService, app.UserService)
	profile := handler.NewProfileHandler(app.UserService, app.ProfileService, app.QuestService)
	quest := handler.NewQuestHandler(app.QuestService)
	follow := handler.NewFollowHandler(app.FollowService)
	dashboard := handler.NewDashboardHandler(app.DashboardService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// Uploaded files (local storage only; S3 serves its own URLs)
	if local, ok := app.Storage.(*storage.LocalStorage); ok {
		mux.Handle("GET "+local.URLPrefix()+"/public/", local.Handler())
	}

	// Auth (rate limited)
	rateLimit := middleware.RateLimit(app.AuthLimiter)

	mux.HandleFunc("POST /api/auth/signup", rateLimit(auth.Signup))
	mux.HandleFunc("POST /api/auth/login", rateLimit(auth.Login))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/auth/{provider}", rateLimit(auth.OAuthStart))
	mux.HandleFunc("GET /api/auth/{provider}/callback", rateLimit(auth.OAuthCallback))

	// ============================================================================
	// PROTECTED ROUTES (/api/*)
	// ============================================================================

	// Account & profile
	mux.HandleFunc("GET /api/me", middleware.RequireAuth(profile.Me))
	mux.HandleFunc("PUT /api/profile/update", middleware.RequireAuth(profile.Update))
	mux.HandleFunc("POST /api/profile/avatar", middleware.RequireAuth(profile.UploadAvatar))
	mux.HandleFunc("DELETE /api/account/delete", middleware.RequireAuth(account.DeleteAccount))

	// Profiles
	mux.HandleFunc("GET /api/profiles/{profileId}", middleware.RequireAuth(profile.Show))
	mux.HandleFunc("GET /api/profiles/{profileId}/quests", middleware.RequireAuth(profile.Quests))
	mux.HandleFunc("GET /api/profiles/{profileId}/followers", middleware.RequireAuth(profile.Followers))
	mux.HandleFunc("GET /api/profiles/{profileId}/following", middleware.RequireAuth(profile.Following))

	// Follows
	mux.HandleFunc("POST /api/follow/toggle", middleware.RequireAuth(follow.Toggle))

	// Quests & KPIs
	mux.HandleFunc("GET /api/quests", middleware.RequireAuth(quest.List))
	mux.HandleFunc("POST /api/quests", middleware.RequireAuth(quest.Create))
	mux.HandleFunc("GET /api/quests/{questId}", middleware.RequireAuth(quest.Get))
	mux.HandleFunc("PUT /api/quests/{questId}", middleware.RequireAuth(quest.Update))
	mux.HandleFunc("DELETE /api/quests/{questId}", middleware.RequireAuth(quest.Delete))
	mux.HandleFunc("POST /api/quests/{questId}/kpis", middleware.RequireAuth(quest.AddKPIs))
	mux.HandleFunc("PUT /api/quests/{questId}/kpis/{kpiId}", middleware.RequireAuth(quest.UpdateKPI))
	mux.HandleFunc("DELETE /api/quests/{questId}/kpis/{kpiId}", middleware.RequireAuth(quest.DeleteKPI))

	// Dashboard & feed
	mux.HandleFunc("GET /api/dashboard", middleware.RequireAuth(dashboard.Dashboard))
	mux.HandleFunc("GET /api/feed", middleware.RequireAuth(dashboard.Feed))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", func(w http.ResponseWriter, r *http.Request) {
		render.Error(w, http.StatusNotFound, "not found")
	})

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.Config(app.Cfg),
		middleware.RequestID,
		middleware.SecurityHeaders,
		middleware.RequestLogging,
		middleware.Recover,
		middleware.CSRFProtection,
		middleware.AuthMiddleware(app.AuthService, app.UserService, app.ProfileService),
	)

	return handler
}
