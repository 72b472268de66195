package handlers

import (
	"database/sql"

	"github.com/pixelgrove/holospace/holospace-backend/lobby"
	"github.com/pixelgrove/holospace/holospace-backend/repository"
)

// Server bundles the handler dependencies: the lobby coordinator, the
// connection hub it notifies through, and the stores behind the REST
// surface. It is built once in main and passed by handle, there is no
// package-level state.
type Server struct {
	Coordinator *lobby.Coordinator
	Hub         *Hub
	Archive     *repository.TranscriptArchive
	DB          *sql.DB

	jwtSecret string
}

func NewServer(coordinator *lobby.Coordinator, hub *Hub, archive *repository.TranscriptArchive, db *sql.DB, jwtSecret string) *Server {
	return &Server{
		Coordinator: coordinator,
		Hub:         hub,
		Archive:     archive,
		DB:          db,
		jwtSecret:   jwtSecret,
	}
}
