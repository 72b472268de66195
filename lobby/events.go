package lobby

import "time"

// Event type tags sent to clients over the reliable channel.
const (
	EventLobbyOpened  = "lobby_opened"
	EventLobbyClosed  = "lobby_closed"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventAdminChanged = "admin_changed"
	EventChatSnapshot = "chat_snapshot"
	EventChatMessage  = "chat_message"
)

// Event is a lifecycle notification produced by the coordinator. One struct
// covers every event type; unused fields are omitted on the wire.
type Event struct {
	Type        string    `json:"type"`
	LobbyID     string    `json:"lobbyId,omitempty"`
	Lobby       *Metadata `json:"lobby,omitempty"`
	ClientID    string    `json:"clientId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	SenderID    string    `json:"senderId,omitempty"`
	Text        string    `json:"text,omitempty"`
	Players     []Player  `json:"players,omitempty"`
	History     []Entry   `json:"history,omitempty"`
	SentAt      int64     `json:"sentAt,omitempty"`
}

// Notifier is the outbound half of the reliable channel. Implementations
// must deliver events to a given client in the order they were handed over
// and must not block: the session layer calls Notify while holding its lock.
type Notifier interface {
	// Notify enqueues an event for one client.
	Notify(clientID string, event Event)
	// Broadcast enqueues an event for every connected client, members and
	// lobby browsers alike.
	Broadcast(event Event)
}

// Transcript is the final state of a destroyed lobby, handed to an Archiver.
type Transcript struct {
	Lobby     Metadata
	MemberIDs []string
	Entries   []Entry
	OpenedAt  time.Time
	ClosedAt  time.Time
}

// Archiver persists transcripts of destroyed lobbies. Calls are best-effort:
// the coordinator never blocks on archival and ignores failures beyond
// logging them.
type Archiver interface {
	ArchiveTranscript(t Transcript) error
}
