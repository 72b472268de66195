package handlers

import (
	"github.com/gorilla/mux"

	"github.com/pixelgrove/holospace/holospace-backend/middleware"
)

func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/api/register", s.Register).Methods("POST")
	r.HandleFunc("/api/login", s.Login).Methods("POST")
	r.HandleFunc("/api/refresh/token", s.RefreshToken).Methods("POST")
	r.HandleFunc("/ws/{token}", s.WsHandler)

	// Secured routes
	secured := r.PathPrefix("/api").Subrouter()
	secured.Use(middleware.JWTValidationMiddleware(s.jwtSecret))
	secured.HandleFunc("/lobbies", s.ListLobbies).Methods("GET")
	secured.HandleFunc("/lobbies/history", s.LobbyHistory).Methods("GET")
	secured.HandleFunc("/logout", s.Logout).Methods("POST")
	return r
}
