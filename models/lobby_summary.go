package models

import "time"

// LobbySummary is an archived row describing a lobby that no longer exists.
type LobbySummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Scene    string    `json:"scene"`
	UserIDs  []string  `json:"user_ids"`
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at"`
}
