package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/erdstudio/engine/internal/api/handlers"
	mw "github.com/erdstudio/engine/internal/api/middleware"
)

type Dependencies struct {
	Tokens          mw.TokenParser
	HealthChecks    map[string]handlers.Pinger
	AuthHandler     *handlers.AuthHandler
	ProjectsHandler *handlers.ProjectsHandler
	VersionsHandler *handlers.VersionsHandler
	UsersHandler    *handlers.UsersHandler
	// RateLimit disables the per-IP limiter when zero.
	RateLimit float64
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	if dep.RateLimit > 0 {
		r.Use(mw.RateLimit(dep.RateLimit, int(dep.RateLimit*2)))
	}
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler(dep.HealthChecks)
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})

		// Protected routes
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.Tokens))

			protected.Route("/projects", func(pr chi.Router) {
				pr.Get("/", dep.ProjectsHandler.List)
				pr.Post("/", dep.ProjectsHandler.Create)
				pr.Route("/{id}", func(p chi.Router) {
					p.Get("/", dep.ProjectsHandler.Get)
					p.Put("/", dep.ProjectsHandler.Update)
					p.Delete("/", dep.ProjectsHandler.Delete)
					p.Post("/members", dep.ProjectsHandler.AddMember)
					p.Delete("/members/{userID}", dep.ProjectsHandler.RemoveMember)
					p.Put("/data", dep.ProjectsHandler.SaveData)
					p.Get("/changelogs", dep.ProjectsHandler.ListChangelogs)
					p.Get("/changelogs/{changelogID}", dep.ProjectsHandler.GetChangelog)
					p.Get("/versions", dep.VersionsHandler.List)
					p.Post("/versions", dep.VersionsHandler.Create)
				})
			})

			protected.Route("/versions/{versionID}", func(vr chi.Router) {
				vr.Put("/", dep.VersionsHandler.Update)
				vr.Delete("/", dep.VersionsHandler.Delete)
				vr.Get("/histories", dep.VersionsHandler.ListHistories)
				vr.Post("/histories", dep.VersionsHandler.AppendHistory)
				vr.Post("/rollback/{historyID}", dep.VersionsHandler.Rollback)
			})

			protected.Route("/histories/{historyID}", func(hr chi.Router) {
				hr.Get("/", dep.VersionsHandler.GetHistory)
				hr.Put("/", dep.VersionsHandler.UpdateHistory)
				hr.Delete("/", dep.VersionsHandler.DeleteHistory)
			})

			protected.Route("/users/me", func(ur chi.Router) {
				ur.Get("/", dep.UsersHandler.Me)
				ur.Delete("/", dep.UsersHandler.Delete)
				ur.Get("/settings", dep.UsersHandler.GetSettings)
				ur.Put("/settings", dep.UsersHandler.UpdateSettings)
			})
		})
	})

	return r
}
