package lobby

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry is the authoritative table of live lobbies and the single source
// of truth for which lobby a client belongs to. The registry lock only
// guards the two maps; per-lobby work runs under each session's own lock, so
// traffic on different lobbies never contends.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byClient map[string]string // client id -> lobby id

	// joinGate, when set, runs between reserving the membership slot and
	// joining the session. Tests use it to wedge a racing leave into that
	// window.
	joinGate func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byClient: make(map[string]string),
	}
}

// CreateLobby validates the request, generates a fresh lobby id, and
// publishes a session with the creator already joined as admin. A client
// that is still in another lobby must leave it first.
func (r *Registry) CreateLobby(creatorID, creatorName, name, scene string, capacity int, password string, history *HistoryBuffer, notifier Notifier) (*Session, error) {
	if strings.TrimSpace(name) == "" || capacity < 1 {
		return nil, ErrInvalidArgument
	}

	meta := Metadata{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Scene:     scene,
		Capacity:  capacity,
		CreatorID: creatorID,
		Protected: password != "",
	}
	session := newSession(meta, password, history, notifier, creatorID, creatorName)

	r.mu.Lock()
	if _, busy := r.byClient[creatorID]; busy {
		r.mu.Unlock()
		return nil, ErrAlreadyMember
	}
	r.sessions[meta.ID] = session
	r.byClient[creatorID] = meta.ID
	// The creator's own join events are emitted before the registry lock is
	// released: no rival join or chat can reach the creator ahead of its
	// snapshot.
	session.announceCreated()
	r.mu.Unlock()

	return session, nil
}

// JoinLobby adds a client to an existing lobby. The membership slot is
// reserved under the registry lock and rolled back if the session rejects
// the join, so the one-lobby-per-client invariant holds even for racing
// requests, and the (capacity+1)-th racer deterministically receives Full.
// A leave for the same client can land between the reservation and the
// session join; the leave wins and the join is unwound, which may destroy
// an emptied lobby and return its transcript.
func (r *Registry) JoinLobby(clientID, displayName, lobbyID, password string) (*Session, *Transcript, error) {
	r.mu.Lock()
	if _, busy := r.byClient[clientID]; busy {
		r.mu.Unlock()
		return nil, nil, ErrAlreadyMember
	}
	session, ok := r.sessions[lobbyID]
	if !ok {
		r.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	r.byClient[clientID] = lobbyID
	r.mu.Unlock()

	if r.joinGate != nil {
		r.joinGate()
	}

	if err := session.addPlayer(clientID, displayName, password); err != nil {
		r.mu.Lock()
		if r.byClient[clientID] == lobbyID {
			delete(r.byClient, clientID)
		}
		r.mu.Unlock()
		return nil, nil, err
	}

	// If a racing leave consumed the reservation while the session join was
	// in flight, the session now holds a member the registry no longer
	// tracks. Undo the join so no membership outlives its registry binding.
	r.mu.Lock()
	reserved := r.byClient[clientID] == lobbyID
	r.mu.Unlock()
	if !reserved {
		if _, transcript := session.removePlayer(clientID); transcript != nil {
			r.dropSession(lobbyID, session)
			return session, transcript, nil
		}
	}
	return session, nil, nil
}

// LeaveLobby removes a client from whatever lobby it is in. Leaving while
// not in a lobby is a harmless no-op, which also makes the transport's
// disconnect path idempotent. When the last member leaves, the destroyed
// session's transcript is returned for archival.
func (r *Registry) LeaveLobby(clientID string) (lobbyID string, transcript *Transcript, left bool) {
	r.mu.Lock()
	lobbyID, ok := r.byClient[clientID]
	if !ok {
		r.mu.Unlock()
		return "", nil, false
	}
	delete(r.byClient, clientID)
	session := r.sessions[lobbyID]
	r.mu.Unlock()

	if session == nil {
		return lobbyID, nil, false
	}

	removed, transcript := session.removePlayer(clientID)
	if transcript != nil {
		r.dropSession(lobbyID, session)
	}
	return lobbyID, transcript, removed
}

// CloseLobby tears down the requester's lobby. Only the current admin may
// close a lobby.
func (r *Registry) CloseLobby(requesterID string) (lobbyID string, transcript *Transcript, err error) {
	session, lobbyID, err := r.sessionOfClient(requesterID)
	if err != nil {
		return "", nil, err
	}

	memberIDs, transcript, err := session.close(requesterID)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	for _, id := range memberIDs {
		if r.byClient[id] == lobbyID {
			delete(r.byClient, id)
		}
	}
	if r.sessions[lobbyID] == session {
		delete(r.sessions, lobbyID)
	}
	r.mu.Unlock()

	return lobbyID, transcript, nil
}

// SendChat appends a chat message to the sender's current lobby.
func (r *Registry) SendChat(senderID, text string) error {
	session, _, err := r.sessionOfClient(senderID)
	if err != nil {
		return err
	}
	return session.chat(senderID, text)
}

// SetAdmin transfers the admin flag inside the requester's lobby.
func (r *Registry) SetAdmin(requesterID, targetID string) error {
	session, _, err := r.sessionOfClient(requesterID)
	if err != nil {
		return err
	}
	return session.setAdmin(requesterID, targetID)
}

// LobbyOfClient reports the lobby a client currently belongs to.
func (r *Registry) LobbyOfClient(clientID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byClient[clientID]
	return id, ok
}

// ListLobbies snapshots the metadata of every live lobby.
func (r *Registry) ListLobbies() []Metadata {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Metadata, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Meta())
	}
	return out
}

func (r *Registry) sessionOfClient(clientID string) (*Session, string, error) {
	r.mu.Lock()
	lobbyID, ok := r.byClient[clientID]
	if !ok {
		r.mu.Unlock()
		return nil, "", ErrNotMember
	}
	session := r.sessions[lobbyID]
	r.mu.Unlock()

	if session == nil {
		return nil, "", ErrNotFound
	}
	return session, lobbyID, nil
}

func (r *Registry) dropSession(lobbyID string, session *Session) {
	r.mu.Lock()
	if r.sessions[lobbyID] == session {
		delete(r.sessions, lobbyID)
	}
	r.mu.Unlock()
}
