package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/pixelgrove/holospace/holospace-backend/config"
	"github.com/pixelgrove/holospace/holospace-backend/handlers"
	"github.com/pixelgrove/holospace/holospace-backend/lobby"
	"github.com/pixelgrove/holospace/holospace-backend/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}
	cfg := config.LoadConfig()

	db, err := repository.ConnectToPostgreSQL(cfg)
	if err != nil {
		log.Fatal("Error connecting to PostgreSQL:", err)
	}

	archive := &repository.TranscriptArchive{DB: db}
	mongoClient, err := repository.ConnectMongoDB(cfg.MongoURI)
	if err != nil {
		// Transcripts are best-effort; run without the Mongo archive.
		log.Println("MongoDB unavailable, chat transcripts will not be archived:", err)
	} else {
		archive.Mongo = mongoClient
	}

	hub := handlers.NewHub()
	coordinator := lobby.NewCoordinator(hub, archive, cfg.ChatHistory)
	srv := handlers.NewServer(coordinator, hub, archive, db, cfg.JWTSecret)

	log.Println("Server running on", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, srv.NewRouter()); err != nil {
		log.Fatal(err)
	}
}
