// Package server wires the blog together and runs the HTTP server.
//
// This is the composition root: every dependency is built here and handed
// down, so no other package constructs its own collaborators.
//
//	config → sqldb.DB → services → handlers → chi routes
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/handler"
	"github.com/sakif/inkwell/internal/mail"
	"github.com/sakif/inkwell/internal/middleware"
	"github.com/sakif/inkwell/internal/repository/sqldb"
	"github.com/sakif/inkwell/internal/service"
	"github.com/sakif/inkwell/web"
)

// Server owns the router and the database handle. The database is closed
// when Start returns or Close is called.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqldb.DB
}

type options struct {
	mailer    mail.Mailer
	github    handler.GitHubAuthenticator
	passwords *auth.PasswordService
	dbOptions []sqldb.Option
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

// WithMailer replaces the SMTP mailer.
func WithMailer(m mail.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithGitHub enables GitHub sign-in with the given provider.
func WithGitHub(g handler.GitHubAuthenticator) Option {
	return func(o *options) { o.github = g }
}

// WithPasswordService replaces the bcrypt settings (tests use a low cost).
func WithPasswordService(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// WithDBOptions passes options through to sqldb.Open.
func WithDBOptions(opts ...sqldb.Option) Option {
	return func(o *options) { o.dbOptions = append(o.dbOptions, opts...) }
}

// New opens the database and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	// === DATABASE ===
	db, err := sqldb.Open(ctx, cfg.DatabaseURL, o.dbOptions...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(o); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes builds the services and handlers and mounts them.
//
// ROUTES:
//
//	GET       /, /index              home page
//	GET       /posts                 all posts, paged
//	GET       /posts/{id}            one post
//	GET/POST  /posts/new             new post              (login)
//	GET/POST  /posts/edit/{id}       edit post             (login, author only)
//	POST      /posts/delete/{id}     delete post           (login, author only)
//	GET       /categories/{id}       posts in a category
//	GET       /tags/{id}             posts with a tag
//	GET       /user/{username}       profile page          (login)
//	GET/POST  /profile               edit own profile      (login)
//	GET/POST  /login, /register      sign in, sign up
//	GET       /logout                sign out
//	GET/POST  /contact               contact form
//	GET       /auth/github/*         GitHub sign-in (when configured)
//	GET       /api/...               read-only JSON API (CORS enabled)
//	GET       /static/*              embedded assets
//	GET       /healthz               database ping
func (s *Server) setupRoutes(o options) error {
	cfg := s.config

	// === Services ===
	tokens, err := auth.NewTokenService(cfg.SecretKey, cfg.SessionTTL)
	if err != nil {
		return err
	}
	passwords := o.passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}
	mailer := o.mailer
	if mailer == nil {
		if !cfg.Mail.Enabled() {
			s.logger.Warn("mail is not configured; the contact form will report delivery failures")
		}
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Mail.Server,
			Port:     cfg.Mail.Port,
			UseSSL:   cfg.Mail.UseSSL,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, s.logger)
	}
	github := o.github
	if github == nil && cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	users := service.NewUserService(s.db, passwords, tokens, s.logger)
	posts := service.NewPostService(s.db, s.logger)
	taxonomy := service.NewTaxonomyService(s.db, s.logger)
	contact := service.NewContactService(mailer, cfg.Mail.From(), cfg.Mail.Recipients, s.logger)

	// === Handlers ===
	pages, err := handler.NewRenderer(web.Templates(), s.logger, cfg.CookieSecure)
	if err != nil {
		return err
	}
	postHandler := handler.NewPostHandler(posts, taxonomy, pages, s.logger, cfg.CookieSecure)
	authHandler := handler.NewAuthHandler(users, github, pages, s.logger, cfg.SessionTTL, cfg.CookieSecure)
	userHandler := handler.NewUserHandler(users, posts, pages, s.logger, cfg.CookieSecure)
	contactHandler := handler.NewContactHandler(contact, pages, s.logger)
	apiHandler := handler.NewAPIHandler(posts, taxonomy, s.logger)

	// === Global middleware ===
	// Order: request id first so the logger can report it; Recoverer inside
	// the logger so a recovered panic is logged as a 500.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(pages.NotFound)

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/posts", apiHandler.HandleListPosts)
		r.Get("/posts/{id}", apiHandler.HandleGetPost)
		r.Get("/categories", apiHandler.HandleListCategories)
		r.Get("/tags", apiHandler.HandleListTags)
	})

	// === Pages ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.Session(tokens))
		r.Use(middleware.RecordUser)
		r.Use(auth.TrackLastSeen(users, s.logger, cfg.CookieSecure))
		r.Use(handler.LoadUser(users, s.logger))

		r.Get("/", postHandler.HandleIndex)
		r.Get("/index", postHandler.HandleIndex)
		r.Get("/posts", postHandler.HandleList)
		r.Get("/posts/{id}", postHandler.HandleShow)
		r.Get("/categories/{id}", postHandler.HandleCategory)
		r.Get("/tags/{id}", postHandler.HandleTag)

		r.Get("/login", authHandler.HandleLogin)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/register", authHandler.HandleRegister)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

		r.Get("/contact", contactHandler.HandleContact)
		r.Post("/contact", contactHandler.HandleContact)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin)

			r.Get("/posts/new", postHandler.HandleNew)
			r.Post("/posts/new", postHandler.HandleNew)
			r.Get("/posts/edit/{id}", postHandler.HandleEdit)
			r.Post("/posts/edit/{id}", postHandler.HandleEdit)
			r.Post("/posts/delete/{id}", postHandler.HandleDelete)

			r.Get("/user/{username}", userHandler.HandleProfile)
			r.Get("/profile", userHandler.HandleEditProfile)
			r.Post("/profile", userHandler.HandleEditProfile)
		})
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "unavailable", "database": s.db.Engine()})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok", "database": s.db.Engine()})
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully:
// stop accepting connections, let in-flight requests finish (30s at most),
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.db.Engine()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
