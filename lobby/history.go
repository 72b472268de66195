package lobby

import "time"

// ServerSenderID marks history entries authored by the server itself.
const ServerSenderID = "server"

// Entry is a single chat message. Entries are immutable once pushed.
type Entry struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

// NewEntry stamps a chat entry with the current time.
func NewEntry(senderID, text string) Entry {
	return Entry{
		SenderID: senderID,
		Text:     text,
		SentAt:   time.Now().UnixMilli(),
	}
}

// HistoryBuffer is a fixed-capacity ring of chat entries. When full, a push
// silently evicts the oldest entry. The buffer is not safe for concurrent
// use: each buffer is owned and mutated by exactly one session, and
// cross-process consistency is handled a level up.
type HistoryBuffer struct {
	entries []Entry
	start   int // position of the oldest entry
	count   int
}

// NewHistoryBuffer returns an empty buffer, or ErrInvalidArgument for a
// capacity below 1.
func NewHistoryBuffer(capacity int) (*HistoryBuffer, error) {
	if capacity < 1 {
		return nil, ErrInvalidArgument
	}
	return &HistoryBuffer{entries: make([]Entry, capacity)}, nil
}

// Push appends an entry, evicting the oldest one if the buffer is full.
func (b *HistoryBuffer) Push(e Entry) {
	if b.count < len(b.entries) {
		b.entries[(b.start+b.count)%len(b.entries)] = e
		b.count++
		return
	}
	b.entries[b.start] = e
	b.start = (b.start + 1) % len(b.entries)
}

// At returns the entry at the given age rank: index 0 is the most recently
// pushed entry, increasing indexes walk backward in time.
func (b *HistoryBuffer) At(index int) (Entry, error) {
	if index < 0 || index >= b.count {
		return Entry{}, ErrOutOfRange
	}
	pos := (b.start + b.count - 1 - index) % len(b.entries)
	return b.entries[pos], nil
}

// Len reports the number of stored entries.
func (b *HistoryBuffer) Len() int {
	return b.count
}

// Snapshot copies all stored entries ordered oldest to newest, the order
// clients replay scrollback in. Note this is the opposite convention from At.
func (b *HistoryBuffer) Snapshot() []Entry {
	out := make([]Entry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

// Clear empties the buffer. Used when a replica overwrites local state with
// a server snapshot before replaying it.
func (b *HistoryBuffer) Clear() {
	b.start = 0
	b.count = 0
}
