package lobby

import (
	"fmt"
	"sync"
	"time"
)

// Metadata holds the identity and static attributes of a lobby. The id is
// immutable and unique for the registry's lifetime.
type Metadata struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Scene     string `json:"scene"`
	Capacity  int    `json:"capacity"`
	CreatorID string `json:"creatorId"`
	Protected bool   `json:"protected"`
}

// Player is one client currently joined to a lobby. Exactly one player per
// lobby has IsAdmin set.
type Player struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
	IsAdmin     bool   `json:"isAdmin"`
}

type sessionState int

const (
	stateOpen sessionState = iota
	stateDestroyed
)

// Session owns one lobby's player set, admin flag, and chat history. All
// mutations are serialized on the session mutex, so membership changes and
// history appends observe a total order per lobby. Events are emitted while
// the lock is held; Notifier implementations must therefore never block.
type Session struct {
	mu       sync.Mutex
	meta     Metadata
	password string
	state    sessionState
	players  []*Player // join order; earliest joiner first
	everIDs  []string  // distinct clients that ever joined, for the archive
	history  *HistoryBuffer
	notifier Notifier
	openedAt time.Time
}

func newSession(meta Metadata, password string, history *HistoryBuffer, notifier Notifier, creatorID, creatorName string) *Session {
	creator := &Player{ClientID: creatorID, DisplayName: creatorName, IsAdmin: true}
	return &Session{
		meta:     meta,
		password: password,
		players:  []*Player{creator},
		everIDs:  []string{creatorID},
		history:  history,
		notifier: notifier,
		openedAt: time.Now().UTC(),
	}
}

// Meta returns a copy of the lobby metadata.
func (s *Session) Meta() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// announceCreated notifies the creator of its own membership. The registry
// calls it while still holding its own lock, so no rival join can slip in
// ahead of the creator's snapshot.
func (s *Session) announceCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitJoinedLocked(s.players[0])
	s.noticeLocked(fmt.Sprintf("%s joined the lobby", s.players[0].DisplayName))
}

// addPlayer joins a client to the lobby. The new member receives a
// PlayerJoined event followed by a ChatSnapshot before any later chat event,
// which is what lets a late joiner rebuild scrollback without dropping or
// duplicating entries.
func (s *Session) addPlayer(clientID, displayName, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return ErrNotFound
	}
	if s.password != "" && password != s.password {
		return ErrWrongPassword
	}
	for _, p := range s.players {
		if p.ClientID == clientID {
			return ErrAlreadyMember
		}
	}
	if len(s.players) >= s.meta.Capacity {
		return ErrFull
	}

	player := &Player{ClientID: clientID, DisplayName: displayName}
	s.players = append(s.players, player)
	s.rememberLocked(clientID)
	s.emitJoinedLocked(player)
	s.noticeLocked(fmt.Sprintf("%s joined the lobby", displayName))
	return nil
}

func (s *Session) rememberLocked(clientID string) {
	for _, id := range s.everIDs {
		if id == clientID {
			return
		}
	}
	s.everIDs = append(s.everIDs, clientID)
}

// emitJoinedLocked announces the new member to everyone, then hands the new
// member its snapshot. Both happen under the session lock, so the joiner can
// never observe an incremental chat event ahead of its snapshot.
func (s *Session) emitJoinedLocked(player *Player) {
	joined := Event{
		Type:        EventPlayerJoined,
		LobbyID:     s.meta.ID,
		ClientID:    player.ClientID,
		DisplayName: player.DisplayName,
	}
	for _, p := range s.players {
		s.notifier.Notify(p.ClientID, joined)
	}

	players := make([]Player, len(s.players))
	for i, p := range s.players {
		players[i] = *p
	}
	s.notifier.Notify(player.ClientID, Event{
		Type:    EventChatSnapshot,
		LobbyID: s.meta.ID,
		Players: players,
		History: s.history.Snapshot(),
	})
}

// removePlayer drops a client from the lobby. Removing an absent client is a
// no-op. If the departing member was admin, the earliest-joined remaining
// member is promoted. An emptied session is destroyed and its transcript
// returned for archival.
func (s *Session) removePlayer(clientID string) (removed bool, transcript *Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return false, nil
	}

	idx := -1
	for i, p := range s.players {
		if p.ClientID == clientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	departed := s.players[idx]
	s.players = append(s.players[:idx], s.players[idx+1:]...)

	left := Event{Type: EventPlayerLeft, LobbyID: s.meta.ID, ClientID: departed.ClientID}
	s.notifier.Notify(departed.ClientID, left)
	for _, p := range s.players {
		s.notifier.Notify(p.ClientID, left)
	}
	s.noticeLocked(fmt.Sprintf("%s left the lobby", departed.DisplayName))

	if len(s.players) == 0 {
		s.state = stateDestroyed
		return true, s.transcriptLocked()
	}

	if departed.IsAdmin {
		next := s.players[0]
		next.IsAdmin = true
		changed := Event{Type: EventAdminChanged, LobbyID: s.meta.ID, ClientID: next.ClientID}
		for _, p := range s.players {
			s.notifier.Notify(p.ClientID, changed)
		}
	}
	return true, nil
}

// close tears the lobby down on behalf of its admin, evicting every member.
// The registry broadcasts the LobbyClosed notification afterwards.
func (s *Session) close(requesterID string) (memberIDs []string, transcript *Transcript, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return nil, nil, ErrNotFound
	}
	if !s.isAdminLocked(requesterID) {
		return nil, nil, ErrNotAuthorized
	}

	memberIDs = make([]string, len(s.players))
	for i, p := range s.players {
		memberIDs[i] = p.ClientID
	}
	s.players = nil
	s.state = stateDestroyed
	return memberIDs, s.transcriptLocked(), nil
}

func (s *Session) isAdminLocked(clientID string) bool {
	for _, p := range s.players {
		if p.ClientID == clientID {
			return p.IsAdmin
		}
	}
	return false
}

// chat appends a message to the history and echoes it to every member,
// sender included. The echo confirms server acceptance and ordering.
func (s *Session) chat(senderID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return ErrNotFound
	}
	member := false
	for _, p := range s.players {
		if p.ClientID == senderID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotMember
	}

	s.appendLocked(NewEntry(senderID, text))
	return nil
}

// noticeLocked records a server-authored line in the scrollback, so late
// joiners replay membership changes from their snapshot like any other
// history entry.
func (s *Session) noticeLocked(text string) {
	s.appendLocked(NewEntry(ServerSenderID, text))
}

func (s *Session) appendLocked(entry Entry) {
	s.history.Push(entry)
	msg := Event{
		Type:     EventChatMessage,
		LobbyID:  s.meta.ID,
		SenderID: entry.SenderID,
		Text:     entry.Text,
		SentAt:   entry.SentAt,
	}
	for _, p := range s.players {
		s.notifier.Notify(p.ClientID, msg)
	}
}

// setAdmin transfers the admin flag to another current member.
func (s *Session) setAdmin(requesterID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateOpen {
		return ErrNotFound
	}
	if !s.isAdminLocked(requesterID) {
		return ErrNotAuthorized
	}

	var target *Player
	for _, p := range s.players {
		if p.ClientID == targetID {
			target = p
			break
		}
	}
	if target == nil {
		return ErrNotMember
	}
	if target.IsAdmin {
		return nil
	}

	for _, p := range s.players {
		p.IsAdmin = false
	}
	target.IsAdmin = true

	changed := Event{Type: EventAdminChanged, LobbyID: s.meta.ID, ClientID: target.ClientID}
	for _, p := range s.players {
		s.notifier.Notify(p.ClientID, changed)
	}
	return nil
}

func (s *Session) transcriptLocked() *Transcript {
	return &Transcript{
		Lobby:     s.meta,
		MemberIDs: append([]string(nil), s.everIDs...),
		Entries:   s.history.Snapshot(),
		OpenedAt:  s.openedAt,
		ClosedAt:  time.Now().UTC(),
	}
}
