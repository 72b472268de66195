package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pixelgrove/holospace/holospace-backend/lobby"
	"github.com/pixelgrove/holospace/holospace-backend/models"
)

// TranscriptArchive persists closed-lobby transcripts: the full chat log
// goes to MongoDB, a queryable summary row to PostgreSQL. Archival is
// best-effort; the lobby core never waits on it and a failed write only
// costs the transcript.
type TranscriptArchive struct {
	DB    *sql.DB
	Mongo *mongo.Client
}

type transcriptDocument struct {
	LobbyID   string            `bson:"lobbyId"`
	Name      string            `bson:"name"`
	Scene     string            `bson:"scene"`
	CreatorID string            `bson:"creatorId"`
	UserIDs   []string          `bson:"userIds"`
	OpenedAt  time.Time         `bson:"openedAt"`
	ClosedAt  time.Time         `bson:"closedAt"`
	Entries   []transcriptEntry `bson:"entries"`
}

type transcriptEntry struct {
	SenderID string `bson:"senderId"`
	Text     string `bson:"text"`
	SentAt   int64  `bson:"sentAt"`
}

// ArchiveTranscript implements lobby.Archiver.
func (a *TranscriptArchive) ArchiveTranscript(t lobby.Transcript) error {
	if a.Mongo != nil {
		doc := transcriptDocument{
			LobbyID:   t.Lobby.ID,
			Name:      t.Lobby.Name,
			Scene:     t.Lobby.Scene,
			CreatorID: t.Lobby.CreatorID,
			UserIDs:   t.MemberIDs,
			OpenedAt:  t.OpenedAt,
			ClosedAt:  t.ClosedAt,
			Entries:   make([]transcriptEntry, 0, len(t.Entries)),
		}
		for _, e := range t.Entries {
			doc.Entries = append(doc.Entries, transcriptEntry{SenderID: e.SenderID, Text: e.Text, SentAt: e.SentAt})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		collection := a.Mongo.Database("holospace").Collection("lobby_transcripts")
		if _, err := collection.InsertOne(ctx, doc); err != nil {
			return fmt.Errorf("insert transcript into MongoDB: %w", err)
		}
		log.Printf("Transcript for lobby %s saved to MongoDB", t.Lobby.ID)
	}

	if a.DB != nil {
		_, err := a.DB.Exec("INSERT INTO lobbies (id, name, scene, user_ids, opened_at, closed_at) VALUES ($1, $2, $3, $4, $5, $6)",
			t.Lobby.ID, t.Lobby.Name, t.Lobby.Scene, pq.Array(t.MemberIDs), t.OpenedAt, t.ClosedAt)
		if err != nil {
			return fmt.Errorf("insert lobby summary into PostgreSQL: %w", err)
		}
		log.Printf("Summary for lobby %s saved to PostgreSQL", t.Lobby.ID)
	}

	return nil
}

// UserLobbyHistory returns the archived summaries of every lobby the user
// was a member of, newest first.
func (a *TranscriptArchive) UserLobbyHistory(userID string) ([]models.LobbySummary, error) {
	if a.DB == nil {
		return nil, nil
	}

	query := "SELECT id, name, scene, user_ids, opened_at, closed_at FROM lobbies WHERE $1 = ANY(user_ids) ORDER BY closed_at DESC"
	rows, err := a.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.LobbySummary
	for rows.Next() {
		var summary models.LobbySummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.Scene, pq.Array(&summary.UserIDs), &summary.OpenedAt, &summary.ClosedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
