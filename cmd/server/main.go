package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/banterhq/banter/internal/auth"
	"github.com/banterhq/banter/internal/config"
	"github.com/banterhq/banter/internal/db"
	"github.com/banterhq/banter/internal/files"
	"github.com/banterhq/banter/internal/friends"
	"github.com/banterhq/banter/internal/groups"
	"github.com/banterhq/banter/internal/hub"
	"github.com/banterhq/banter/internal/messages"
	mw "github.com/banterhq/banter/internal/middleware"
	"github.com/banterhq/banter/internal/users"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		slog.Error("BANTER_JWT_SECRET must be set")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	usersSvc := users.NewService(database)
	chatSvc := messages.NewService(database)
	groupsSvc := groups.NewService(database)
	friendsSvc := friends.NewService(database)

	wsHub := hub.NewHub(cfg.Domain, chatSvc, groupsSvc, usersSvc)

	authSvc := auth.NewService(database, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authHandler := auth.NewHandler(authSvc)
	usersHandler := users.NewHandler(usersSvc, wsHub.Coordinator())
	messagesHandler := messages.NewHandler(chatSvc)
	friendsHandler := friends.NewHandler(friendsSvc, wsHub.Coordinator())
	groupsHandler := groups.NewHandler(groupsSvc)

	filesHandler, err := files.NewHandler(database, cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		slog.Error("init upload storage", "err", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Health probe, no auth; polled by Docker HEALTHCHECK and load balancers
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true}) //nolint:errcheck
	})

	// Public auth endpoints
	r.Post("/api/register", authHandler.Register)
	r.Post("/api/login", authHandler.Login)
	r.Post("/api/refresh", authHandler.Refresh)

	// WebSocket upgrade sits outside the auth middleware group because browsers
	// cannot set custom headers on WS upgrade requests. The token is passed
	// as a ?token= query param and validated here directly.
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		claims, err := auth.ValidateAccessToken(token, cfg.JWTSecret)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		user, err := usersSvc.FindByID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		wsHub.ServeWS(w, r, hub.Identity{
			UserID:   user.ID,
			Username: user.Username,
			Avatar:   user.Avatar,
		})
	})

	// Uploaded files are public once the unguessable stored name is known.
	r.Handle("/uploads/*", filesHandler.Serve())

	// Protected endpoints
	r.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))

		r.Get("/api/user/profile", usersHandler.Profile)
		r.Patch("/api/user", usersHandler.Update)
		r.Get("/api/users", usersHandler.List)

		r.Get("/api/messages/{channelID}", messagesHandler.ListChannel)
		r.Get("/api/dm/{userID}", messagesHandler.ListDM)

		r.Get("/api/friends", friendsHandler.List)
		r.Get("/api/friends/pending", friendsHandler.ListPending)
		r.Post("/api/friends/request", friendsHandler.Request)
		r.Post("/api/friends/accept", friendsHandler.Accept)
		r.Post("/api/friends/reject", friendsHandler.Reject)
		r.Delete("/api/friends/{friendID}", friendsHandler.Remove)

		r.Get("/api/groups", groupsHandler.List)
		r.Post("/api/groups", groupsHandler.Create)
		r.Route("/api/groups/{id}", func(r chi.Router) {
			r.Delete("/", groupsHandler.Delete)
			r.Get("/messages", groupsHandler.ListMessages)
			r.Get("/members", groupsHandler.ListMembers)
			r.Post("/members", groupsHandler.AddMember)
			r.Delete("/members/{userID}", groupsHandler.RemoveMember)
		})

		r.Post("/api/upload", filesHandler.Upload)
	})

	slog.Info("server listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
