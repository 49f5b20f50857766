package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"notevault/config"
	noteHandler "notevault/internal/note"
	"notevault/internal/note/model"
	"notevault/internal/note/repository"
	"notevault/internal/note/service"
	"notevault/middleware"
	"notevault/pkg/logger"
	"notevault/socket"

	"github.com/gorilla/mux"
)

const healthTimeout = 2 * time.Second

func Setup(db *sql.DB, hub *socket.Hub, cfg config.Config) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", Health(db)).Methods(http.MethodGet)

	auth := middleware.Auth(middleware.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		Fallback:  model.Identity{UserID: cfg.DefaultUserID, Role: model.ParseRole(cfg.DefaultUserRole)},
	})

	// WebSocket
	r.Handle("/ws", auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := middleware.IdentityFrom(r.Context())
		socket.ServeWs(hub, w, r, identity)
	}))).Methods(http.MethodGet)

	// REST API
	noteRepo := repository.NewNoteRepository(db)
	tagRepo := repository.NewTagRepository(db)
	noteService := service.NewNoteService(noteRepo, tagRepo, repository.NewTransactor(db), hub)
	notes := noteHandler.NewNoteHandler(noteService)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth)
	api.HandleFunc("/notes", notes.ListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", notes.CreateNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id}", notes.GetNote).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id}", notes.UpdateNote).Methods(http.MethodPut)
	api.HandleFunc("/notes/{id}", notes.DeleteNote).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "No route for "+r.URL.Path, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	// Wrapped outside the router so preflights and unmatched paths are
	// logged and carry CORS headers too.
	return middleware.RequestLogger(middleware.CORS(cfg.CORSOrigin)(r))
}

// Health reports 503 while the database cannot be pinged.
func Health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Sugar.Warnf("Health check failed: %v", err)
			middleware.WriteError(w, http.StatusServiceUnavailable, "Database is unreachable", nil)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
