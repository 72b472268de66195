package lobby

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

// recordingNotifier captures events in arrival order, per recipient, the way
// a per-connection send queue would.
type recordingNotifier struct {
	mu         sync.Mutex
	perClient  map[string][]Event
	broadcasts []Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{perClient: make(map[string][]Event)}
}

func (n *recordingNotifier) Notify(clientID string, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.perClient[clientID] = append(n.perClient[clientID], event)
}

func (n *recordingNotifier) Broadcast(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, event)
}

func (n *recordingNotifier) eventsFor(clientID string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.perClient[clientID]...)
}

func (n *recordingNotifier) broadcastCount(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.broadcasts {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

func lastEventOfType(events []Event, eventType string) (Event, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return Event{}, false
}

func TestCreateLobbyValidation(t *testing.T) {
	coordinator := NewCoordinator(newRecordingNotifier(), nil, 10)

	if _, err := coordinator.CreateLobby("1", "Ana", "", "atrium", 4, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty name: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 0, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero capacity: expected ErrInvalidArgument, got %v", err)
	}
	if _, bound := coordinator.LobbyOfClient("1"); bound {
		t.Fatal("rejected create must not leave membership behind")
	}
}

func TestLobbyLifecycleScenario(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 2, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if meta.Name != "Alpha" || meta.Capacity != 2 || meta.CreatorID != "1" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if notifier.broadcastCount(EventLobbyOpened) != 1 {
		t.Fatal("expected one LobbyOpened broadcast")
	}

	// The creator is auto-joined as admin and gets its own snapshot.
	snapshot, ok := lastEventOfType(notifier.eventsFor("1"), EventChatSnapshot)
	if !ok {
		t.Fatal("creator did not receive a chat snapshot")
	}
	if len(snapshot.Players) != 1 || !snapshot.Players[0].IsAdmin {
		t.Fatalf("creator should be the sole admin member, got %+v", snapshot.Players)
	}

	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	joined, ok := lastEventOfType(notifier.eventsFor("1"), EventPlayerJoined)
	if !ok || joined.ClientID != "2" {
		t.Fatalf("creator did not observe client 2 joining: %+v", joined)
	}
	snapshot, ok = lastEventOfType(notifier.eventsFor("2"), EventChatSnapshot)
	if !ok || len(snapshot.Players) != 2 {
		t.Fatalf("joiner snapshot should list both players, got %+v", snapshot.Players)
	}

	if err := coordinator.SendChat("1", "hello"); err != nil {
		t.Fatalf("SendChat returned error: %v", err)
	}
	for _, clientID := range []string{"1", "2"} {
		msg, ok := lastEventOfType(notifier.eventsFor(clientID), EventChatMessage)
		if !ok || msg.SenderID != "1" || msg.Text != "hello" {
			t.Fatalf("client %s did not receive the chat echo: %+v", clientID, msg)
		}
	}

	// Admin leaves: earliest remaining joiner is promoted.
	coordinator.LeaveLobby("1")
	changed, ok := lastEventOfType(notifier.eventsFor("2"), EventAdminChanged)
	if !ok || changed.ClientID != "2" {
		t.Fatalf("expected AdminChanged to client 2, got %+v", changed)
	}

	// Last member leaves: the lobby is destroyed and stays destroyed.
	coordinator.LeaveLobby("2")
	if notifier.broadcastCount(EventLobbyClosed) != 1 {
		t.Fatal("expected one LobbyClosed broadcast")
	}
	if lobbies := coordinator.ListLobbies(); len(lobbies) != 0 {
		t.Fatalf("expected no lobbies after destruction, got %d", len(lobbies))
	}
	if err := coordinator.JoinLobby("3", "Cy", meta.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("join on destroyed lobby: expected ErrNotFound, got %v", err)
	}
}

func TestJoinLobbyPassword(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Secret", "vault", 4, "xyz")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if !meta.Protected {
		t.Fatal("expected password-protected metadata")
	}

	if err := coordinator.JoinLobby("2", "Bo", meta.ID, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if _, bound := coordinator.LobbyOfClient("2"); bound {
		t.Fatal("rejected join must not leave membership behind")
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, "xyz"); err != nil {
		t.Fatalf("join with correct password returned error: %v", err)
	}
}

func TestJoinLobbyCapacityRace(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("host", "Ana", "Tight", "atrium", 3, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}

	// Two free slots, five racers: exactly two distinct clients get in.
	const racers = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fullCount, okCount int
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := coordinator.JoinLobby(fmt.Sprintf("racer-%d", i), "R", meta.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrFull):
				fullCount++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if okCount != 2 || fullCount != racers-2 {
		t.Fatalf("expected 2 joins and %d Full rejections, got %d/%d", racers-2, okCount, fullCount)
	}

	members := 0
	for i := 0; i < racers; i++ {
		if _, bound := coordinator.LobbyOfClient(fmt.Sprintf("racer-%d", i)); bound {
			members++
		}
	}
	if members != 2 {
		t.Fatalf("expected 2 bound racers, got %d", members)
	}
}

func TestOneLobbyPerClient(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	metaA, err := coordinator.CreateLobby("1", "Ana", "A", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby A returned error: %v", err)
	}
	metaB, err := coordinator.CreateLobby("2", "Bo", "B", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby B returned error: %v", err)
	}

	// Joining anywhere while already joined requires an explicit leave first,
	// rejoining your own lobby included.
	if err := coordinator.JoinLobby("1", "Ana", metaB.ID, ""); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember joining another lobby, got %v", err)
	}
	if err := coordinator.JoinLobby("1", "Ana", metaA.ID, ""); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember rejoining own lobby, got %v", err)
	}
	if _, err := coordinator.CreateLobby("1", "Ana", "C", "atrium", 4, ""); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember creating while joined, got %v", err)
	}

	if current, _ := coordinator.LobbyOfClient("1"); current != metaA.ID {
		t.Fatalf("client 1 should still be in lobby A, got %s", current)
	}
}

func TestJoinUnwoundByRacingLeave(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}

	// A leave lands between the registry reservation and the session join,
	// the interleaving a preempted join goroutine produces. The leave must
	// win: no membership may outlive its registry binding.
	coordinator.registry.joinGate = func() { coordinator.LeaveLobby("2") }
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	coordinator.registry.joinGate = nil

	if _, bound := coordinator.LobbyOfClient("2"); bound {
		t.Fatal("client 2 must not stay bound after the racing leave")
	}
	if err := coordinator.SendChat("1", "anyone here"); err != nil {
		t.Fatalf("SendChat returned error: %v", err)
	}
	if msg, ok := lastEventOfType(notifier.eventsFor("2"), EventChatMessage); ok && msg.Text == "anyone here" {
		t.Fatal("unwound join left a phantom member receiving chat")
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("rejoin after unwound join returned error: %v", err)
	}
}

func TestServerNoticesRecordMembership(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	coordinator.LeaveLobby("2")

	var notices []string
	for _, e := range notifier.eventsFor("1") {
		if e.Type == EventChatMessage && e.SenderID == ServerSenderID {
			notices = append(notices, e.Text)
		}
	}
	want := []string{"Ana joined the lobby", "Bo joined the lobby", "Bo left the lobby"}
	if !reflect.DeepEqual(notices, want) {
		t.Fatalf("unexpected server notices: got %v, want %v", notices, want)
	}

	// Notices land in the scrollback, so a late joiner replays them.
	if err := coordinator.JoinLobby("3", "Cy", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	snapshot, ok := lastEventOfType(notifier.eventsFor("3"), EventChatSnapshot)
	if !ok || len(snapshot.History) != 3 {
		t.Fatalf("late joiner snapshot should replay the notices: %+v", snapshot.History)
	}
	if snapshot.History[0].SenderID != ServerSenderID {
		t.Fatalf("expected server-authored history entries, got %+v", snapshot.History[0])
	}
}

func TestCloseLobbyAuthorization(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}

	if err := coordinator.CloseLobby("2"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("non-admin close: expected ErrNotAuthorized, got %v", err)
	}
	if err := coordinator.CloseLobby("9"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("non-member close: expected ErrNotMember, got %v", err)
	}

	if err := coordinator.CloseLobby("1"); err != nil {
		t.Fatalf("admin close returned error: %v", err)
	}
	if notifier.broadcastCount(EventLobbyClosed) != 1 {
		t.Fatal("expected one LobbyClosed broadcast")
	}
	for _, clientID := range []string{"1", "2"} {
		if _, bound := coordinator.LobbyOfClient(clientID); bound {
			t.Fatalf("client %s still bound after close", clientID)
		}
	}
}

func TestSendChatValidation(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}

	if err := coordinator.SendChat("9", "hi"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if err := coordinator.SendChat("1", "   "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for blank text, got %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	if err := coordinator.SendChat("2", "hi"); err != nil {
		t.Fatalf("member chat returned error: %v", err)
	}
}

func TestJoinerSnapshotPrecedesIncrementalChat(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := coordinator.SendChat("1", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("SendChat returned error: %v", err)
		}
	}

	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	if err := coordinator.SendChat("1", "after-join"); err != nil {
		t.Fatalf("SendChat returned error: %v", err)
	}

	events := notifier.eventsFor("2")
	snapshotIdx := -1
	for i, e := range events {
		if e.Type == EventChatMessage && snapshotIdx == -1 {
			t.Fatalf("joiner observed a chat message before its snapshot: %+v", events)
		}
		if e.Type == EventChatSnapshot {
			snapshotIdx = i
			break
		}
	}
	if snapshotIdx == -1 {
		t.Fatal("joiner never received a snapshot")
	}

	snapshot := events[snapshotIdx]
	var spoken []string
	for _, entry := range snapshot.History {
		if entry.SenderID == "1" {
			spoken = append(spoken, entry.Text)
		}
	}
	if len(spoken) != 3 {
		t.Fatalf("expected 3 chat entries in snapshot, got %v", spoken)
	}
	for i, text := range spoken {
		if text != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("snapshot history out of order: %v", spoken)
		}
	}

	msg, ok := lastEventOfType(events, EventChatMessage)
	if !ok || msg.Text != "after-join" {
		t.Fatalf("joiner missed the incremental message: %+v", msg)
	}
}

func TestPromoteAdmin(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}

	if err := coordinator.PromoteAdmin("2", "1"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("non-admin promote: expected ErrNotAuthorized, got %v", err)
	}
	if err := coordinator.PromoteAdmin("1", "9"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("promote of non-member: expected ErrNotMember, got %v", err)
	}

	if err := coordinator.PromoteAdmin("1", "2"); err != nil {
		t.Fatalf("PromoteAdmin returned error: %v", err)
	}
	changed, ok := lastEventOfType(notifier.eventsFor("1"), EventAdminChanged)
	if !ok || changed.ClientID != "2" {
		t.Fatalf("expected AdminChanged to client 2, got %+v", changed)
	}

	// The new admin may now close the lobby.
	if err := coordinator.CloseLobby("2"); err != nil {
		t.Fatalf("new admin close returned error: %v", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	notifier := newRecordingNotifier()
	coordinator := NewCoordinator(notifier, nil, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 4, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}

	coordinator.Disconnect("2")
	coordinator.Disconnect("2")

	left := 0
	for _, e := range notifier.eventsFor("1") {
		if e.Type == EventPlayerLeft && e.ClientID == "2" {
			left++
		}
	}
	if left != 1 {
		t.Fatalf("expected exactly one PlayerLeft for client 2, got %d", left)
	}

	coordinator.Disconnect("1")
	if notifier.broadcastCount(EventLobbyClosed) != 1 {
		t.Fatal("expected exactly one LobbyClosed broadcast")
	}
}

type captureArchiver struct {
	transcripts chan Transcript
}

func (a *captureArchiver) ArchiveTranscript(t Transcript) error {
	a.transcripts <- t
	return nil
}

func TestTranscriptArchivedOnDestruction(t *testing.T) {
	notifier := newRecordingNotifier()
	archiver := &captureArchiver{transcripts: make(chan Transcript, 1)}
	coordinator := NewCoordinator(notifier, archiver, 10)

	meta, err := coordinator.CreateLobby("1", "Ana", "Alpha", "atrium", 2, "")
	if err != nil {
		t.Fatalf("CreateLobby returned error: %v", err)
	}
	if err := coordinator.JoinLobby("2", "Bo", meta.ID, ""); err != nil {
		t.Fatalf("JoinLobby returned error: %v", err)
	}
	if err := coordinator.SendChat("1", "for the record"); err != nil {
		t.Fatalf("SendChat returned error: %v", err)
	}
	coordinator.LeaveLobby("1")
	coordinator.LeaveLobby("2")

	select {
	case transcript := <-archiver.transcripts:
		if transcript.Lobby.ID != meta.ID {
			t.Fatalf("transcript for wrong lobby: %s", transcript.Lobby.ID)
		}
		if len(transcript.MemberIDs) != 2 {
			t.Fatalf("expected both members in transcript, got %v", transcript.MemberIDs)
		}
		var spoken []Entry
		for _, e := range transcript.Entries {
			if e.SenderID != ServerSenderID {
				spoken = append(spoken, e)
			}
		}
		if len(spoken) != 1 || spoken[0].Text != "for the record" {
			t.Fatalf("unexpected transcript entries: %+v", transcript.Entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcript was never archived")
	}
}
