package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pinned/internal/auth"
	"pinned/internal/board"
	"pinned/internal/config"
	"pinned/internal/http/handler"
	mw "pinned/internal/http/middleware"
	"pinned/internal/imagehost"
	"pinned/internal/logging"
	"pinned/internal/metadata"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	DB       *gorm.DB
	JWT      *auth.JWT
	Log      *zap.Logger
	Boards   *board.Service
	Images   imagehost.Host
	Metadata *metadata.Fetcher
	// UploadDir, when set, is served read-only under /uploads/.
	UploadDir string
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	log := logging.OrNop(d.Log)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if d.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Log: log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.With(auth.RequireAuth(d.JWT)).Get("/auth/me", ah.Me)

	bh := &handler.BoardHandler{Svc: d.Boards, Log: log}
	th := &handler.TileHandler{Svc: d.Boards, Log: log}

	r.Route("/boards", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Get("/", bh.List)
		r.Post("/", bh.Create)
		r.Get("/{id}", bh.Get)
		r.Patch("/{id}", bh.Update)
		r.Delete("/{id}", bh.Delete)
		r.Post("/{id}/duplicate", bh.Duplicate)

		r.Get("/{id}/tiles", th.List)
		r.Post("/{id}/tiles", th.Create)
		r.Get("/{id}/tiles/{tileID}", th.Get)
		r.Patch("/{id}/tiles/{tileID}", th.Update)
		r.Delete("/{id}/tiles/{tileID}", th.Delete)
	})

	if d.Images != nil {
		uh := &handler.UploadHandler{Host: d.Images, MaxBytes: cfg.UploadMaxBytes, Log: log}
		r.With(auth.RequireAuth(d.JWT)).Post("/upload/image", uh.Image)
	}
	if d.Metadata != nil {
		mh := &handler.MetadataHandler{Fetcher: d.Metadata, Log: log}
		r.With(auth.RequireAuth(d.JWT)).Get("/metadata", mh.Get)
	}

	return r
}
