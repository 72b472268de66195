package lobby

import (
	"log"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultHistorySize bounds per-lobby chat scrollback unless configured.
	DefaultHistorySize = 100

	maxChatRunes = 2000
	maxNameRunes = 64
)

// Coordinator is the facade between the transport layer and the lobby state.
// Every request is validated against the channel-authenticated client id;
// identity fields inside request payloads are never trusted. The coordinator
// is constructed once per process and passed by handle to the transport, it
// keeps no package-level state.
type Coordinator struct {
	registry    *Registry
	notifier    Notifier
	archiver    Archiver
	historySize int
}

// NewCoordinator wires a coordinator to its outbound channel. The archiver
// is optional; pass nil to skip transcript archival.
func NewCoordinator(notifier Notifier, archiver Archiver, historySize int) *Coordinator {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Coordinator{
		registry:    NewRegistry(),
		notifier:    notifier,
		archiver:    archiver,
		historySize: historySize,
	}
}

// CreateLobby opens a lobby with the requester auto-joined as admin and
// announces it to every connected client.
func (c *Coordinator) CreateLobby(clientID, displayName, name, scene string, capacity int, password string) (Metadata, error) {
	if utf8.RuneCountInString(name) > maxNameRunes {
		return Metadata{}, ErrInvalidArgument
	}
	history, err := NewHistoryBuffer(c.historySize)
	if err != nil {
		return Metadata{}, err
	}

	session, err := c.registry.CreateLobby(clientID, displayName, name, scene, capacity, password, history, c.notifier)
	if err != nil {
		return Metadata{}, err
	}

	meta := session.Meta()
	c.notifier.Broadcast(Event{Type: EventLobbyOpened, LobbyID: meta.ID, Lobby: &meta})
	log.Printf("lobby %s (%q) opened by %s", meta.ID, meta.Name, clientID)
	return meta, nil
}

// JoinLobby adds the requester to an existing lobby. On success the joiner
// receives its ChatSnapshot before any subsequent chat event for that lobby.
func (c *Coordinator) JoinLobby(clientID, displayName, lobbyID, password string) error {
	_, transcript, err := c.registry.JoinLobby(clientID, displayName, lobbyID, password)
	if err != nil {
		return err
	}
	log.Printf("client %s joined lobby %s", clientID, lobbyID)
	// A leave that raced the join may have unwound it and emptied the lobby.
	if transcript != nil {
		c.lobbyDestroyed(lobbyID, transcript)
	}
	return nil
}

// LeaveLobby removes the requester from its current lobby. Idempotent.
func (c *Coordinator) LeaveLobby(clientID string) {
	lobbyID, transcript, left := c.registry.LeaveLobby(clientID)
	if left {
		log.Printf("client %s left lobby %s", clientID, lobbyID)
	}
	if transcript != nil {
		c.lobbyDestroyed(lobbyID, transcript)
	}
}

// CloseLobby tears down the requester's lobby; admin only.
func (c *Coordinator) CloseLobby(clientID string) error {
	lobbyID, transcript, err := c.registry.CloseLobby(clientID)
	if err != nil {
		return err
	}
	log.Printf("lobby %s closed by admin %s", lobbyID, clientID)
	c.lobbyDestroyed(lobbyID, transcript)
	return nil
}

// SendChat appends a message to the requester's lobby and echoes it to all
// members, the sender included.
func (c *Coordinator) SendChat(clientID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxChatRunes {
		return ErrInvalidArgument
	}
	return c.registry.SendChat(clientID, text)
}

// PromoteAdmin hands the admin flag to another member of the requester's
// lobby.
func (c *Coordinator) PromoteAdmin(clientID, targetID string) error {
	return c.registry.SetAdmin(clientID, targetID)
}

// Disconnect is invoked by the transport when a client's connection drops.
// It performs the implicit leave so no phantom membership lingers. The
// transport calls it once per connection; a repeat call is a no-op anyway.
func (c *Coordinator) Disconnect(clientID string) {
	c.LeaveLobby(clientID)
}

// ListLobbies snapshots the metadata of every open lobby.
func (c *Coordinator) ListLobbies() []Metadata {
	return c.registry.ListLobbies()
}

// LobbyOfClient reports the requester's current lobby, if any.
func (c *Coordinator) LobbyOfClient(clientID string) (string, bool) {
	return c.registry.LobbyOfClient(clientID)
}

// lobbyDestroyed runs the shared teardown tail: tell everyone the lobby is
// gone and hand the transcript to the archiver without blocking the caller.
func (c *Coordinator) lobbyDestroyed(lobbyID string, transcript *Transcript) {
	c.notifier.Broadcast(Event{Type: EventLobbyClosed, LobbyID: lobbyID})

	if c.archiver == nil || transcript == nil {
		return
	}
	t := *transcript
	go func() {
		if err := c.archiver.ArchiveTranscript(t); err != nil {
			log.Printf("failed to archive transcript for lobby %s: %v", lobbyID, err)
		}
	}()
}
