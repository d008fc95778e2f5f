package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koas-web/koasbackend/config"
	"github.com/koas-web/koasbackend/media"
	"github.com/koas-web/koasbackend/repository"
	"github.com/koas-web/koasbackend/sessions"
)

// API bundles the handler set mounted under /api.
type API struct {
	Auth          *AuthHandler
	Members       *TeamMemberHandler
	Uploads       *UploadHandler
	Sessions      *sessions.Manager
	AuthLimiter   *RateLimiter
	UploadLimiter *RateLimiter
}

// NewAPI wires the handlers against their dependencies.
func NewAPI(cfg config.Config, adminRepo repository.AdminUserRepository, memberRepo repository.TeamMemberRepository, mgr *sessions.Manager, processor *media.Processor) *API {
	return &API{
		Auth:          &AuthHandler{AdminRepo: adminRepo, Sessions: mgr},
		Members:       &TeamMemberHandler{Repo: memberRepo},
		Uploads:       &UploadHandler{Processor: processor, Cfg: cfg},
		Sessions:      mgr,
		AuthLimiter:   NewRateLimiter(cfg.AuthRateLimit, cfg.RateLimitWindow),
		UploadLimiter: NewRateLimiter(cfg.UploadRateLimit, cfg.RateLimitWindow),
	}
}

// Routes builds the /api route tree. auth-gated groups resolve the session
// per request; the limiters wrap only the abuse-prone endpoints.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	requireSession := RequireSession(a.Sessions)

	r.Route("/auth", func(r chi.Router) {
		r.Use(a.AuthLimiter.Middleware)
		r.Post("/login", a.Auth.Login)
		r.Get("/status", a.Auth.Status)
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", a.Auth.Logout)
			r.Post("/change-password", a.Auth.ChangePassword)
		})
	})

	r.Route("/team-members", func(r chi.Router) {
		r.Get("/", a.Members.List)
		r.Get("/{id}", a.Members.Get)
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/", a.Members.Create)
			r.Put("/{id}", a.Members.Update)
			r.Delete("/{id}", a.Members.Delete)
		})
	})

	r.With(a.UploadLimiter.Middleware).Post("/upload", a.Uploads.PublicUpload)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireSession)
		r.With(a.UploadLimiter.Middleware).Post("/upload", a.Uploads.AdminUpload)
		r.Get("/photos", a.Uploads.ListPhotos)
	})

	return r
}

// Healthz is a liveness probe for Docker and infra checks.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
