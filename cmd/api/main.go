package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mkhalid11/learnbuddy/backend/internal/config"
	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/internal/repository/postgres"
	"github.com/mkhalid11/learnbuddy/backend/internal/repository/redis"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/chat"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/cleanup"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/session"
	transportHttp "github.com/mkhalid11/learnbuddy/backend/internal/transport/http"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/http/middleware"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/websocket"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	// An unconfigured signing secret is a fatal startup condition, not a
	// runtime error.
	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("JWT_SECRET must be set")
	}

	db, err := postgres.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := postgres.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	refreshRepo := postgres.NewRefreshRepo(db, cfg.RefreshTokenTTL)
	childRepo := postgres.NewChildRepo(db)

	var cache transportHttp.CacheRepository
	if client := redis.Connect(cfg.RedisURL, cfg.RedisPassword); client != nil {
		defer client.Close()
		cache = redis.NewCache(client)
	}

	// Services
	issuer := session.NewIssuer(userRepo, refreshRepo, codec, cfg.AccessTokenTTL)
	chatService := chat.NewService(chat.NewHTTPCompleter(cfg.LLMGatewayURL, cfg.LLMGatewayKey))

	cleanupWorker := cleanup.NewWorker(refreshRepo)
	cleanupWorker.Start()

	// HTTP layer
	cookieOpts := httputil.CookieOptions{Secure: cfg.IsProduction()}
	authorizer := middleware.NewAuthorizer(codec)
	authHandler := transportHttp.NewAuthHandler(userRepo, issuer, cache, cookieOpts, cfg.AccessTokenTTL)
	childrenHandler := transportHttp.NewChildrenHandler(childRepo)
	adminHandler := transportHttp.NewAdminHandler(userRepo, refreshRepo)
	chatHandler := transportHttp.NewChatHandler(chatService)

	checkOrigin := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range cfg.AllowedOrigins {
			if allowed == origin {
				return true
			}
		}
		return false
	}
	wsChatHandler := websocket.NewChatHandler(authorizer, chatService, checkOrigin)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /login", transportHttp.LoginPage)

	// Public auth routes
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)

	// Session routes
	mux.HandleFunc("POST /api/auth/logout", authorizer.RequireAuth(authHandler.Logout))
	mux.HandleFunc("GET /api/auth/me", authorizer.RequireAuth(authHandler.Me))
	mux.HandleFunc("PUT /api/auth/profile", authorizer.RequireAuth(authHandler.UpdateProfile))

	// Children and logs (parents and admins)
	parentOrAdmin := func(h http.HandlerFunc) http.HandlerFunc {
		return authorizer.RequireRoles(h, domain.RoleParent, domain.RoleAdmin)
	}
	mux.HandleFunc("POST /api/children", parentOrAdmin(childrenHandler.Create))
	mux.HandleFunc("GET /api/children", parentOrAdmin(childrenHandler.List))
	mux.HandleFunc("GET /api/children/{id}", parentOrAdmin(childrenHandler.Get))
	mux.HandleFunc("PUT /api/children/{id}", parentOrAdmin(childrenHandler.Update))
	mux.HandleFunc("DELETE /api/children/{id}", parentOrAdmin(childrenHandler.Delete))
	mux.HandleFunc("POST /api/children/{id}/skills", parentOrAdmin(childrenHandler.CreateSkillLog))
	mux.HandleFunc("GET /api/children/{id}/skills", parentOrAdmin(childrenHandler.ListSkillLogs))
	mux.HandleFunc("DELETE /api/children/{id}/skills/{logID}", parentOrAdmin(childrenHandler.DeleteSkillLog))
	mux.HandleFunc("POST /api/children/{id}/evaluations", parentOrAdmin(childrenHandler.CreateEvaluation))
	mux.HandleFunc("GET /api/children/{id}/evaluations", parentOrAdmin(childrenHandler.ListEvaluations))

	// Admin routes
	adminOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return authorizer.RequireRoles(h, domain.RoleAdmin)
	}
	mux.HandleFunc("GET /api/admin/users", adminOnly(adminHandler.ListUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}/role", adminOnly(adminHandler.UpdateUserRole))
	mux.HandleFunc("POST /api/admin/users/{id}/disable", adminOnly(adminHandler.DisableUser))

	// Tutor chat (any authenticated role)
	mux.HandleFunc("POST /api/chat", authorizer.RequireAuth(chatHandler.Ask))
	mux.HandleFunc("GET /ws/chat", wsChatHandler.Handle)

	// Edge guard: presence-only check, redirect to /login otherwise.
	guard := middleware.NewGuard(
		"/login",
		[]string{"/login", "/health", "/api/auth/register", "/api/auth/login", "/api/auth/refresh"},
		[]string{"/api/", "/ws/"},
	)

	handler := middleware.CORS(cfg.AllowedOrigins)(guard.Middleware(mux))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server is shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited gracefully")
}
