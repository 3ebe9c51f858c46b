package chat

import (
	"sync"
	"time"
)

// MemStore holds the per-conversation ordered message lists and unread
// counters the UI reads. It is the in-memory working set; the sqlite archive
// keeps the durable copy.
type MemStore struct {
	mu            sync.Mutex
	conversations map[int64][]*Message
	unread        map[int64]int
	open          int64 // conversation currently on screen; 0 = none
	nextID        int64 // decreasing placeholder id source
	nextSeq       uint64
}

// NewMemStore creates an empty message store.
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: make(map[int64][]*Message),
		unread:        make(map[int64]int),
	}
}

// Messages returns a copy of the ordered list for a conversation.
func (s *MemStore) Messages(conversationID int64) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.conversations[conversationID]
	out := make([]Message, len(list))
	for i, m := range list {
		out[i] = *m
	}
	return out
}

// Unread returns the unread counter for a conversation.
func (s *MemStore) Unread(conversationID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[conversationID]
}

// SetOpen marks the conversation currently on screen (0 for none) and
// clears its unread counter.
func (s *MemStore) SetOpen(conversationID int64) {
	s.mu.Lock()
	s.open = conversationID
	if conversationID != 0 {
		s.unread[conversationID] = 0
	}
	s.mu.Unlock()
}

// Open returns the conversation currently on screen, 0 if none.
func (s *MemStore) Open() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// newOptimistic creates and appends an optimistic entry with a fresh
// negative placeholder id and creation sequence.
func (s *MemStore) newOptimistic(conversationID, senderID int64, text string, parentID int64, now time.Time) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID--
	s.nextSeq++
	m := &Message{
		ID:              s.nextID,
		ConversationID:  conversationID,
		SenderID:        senderID,
		Text:            text,
		MessageType:     "text",
		ParentMessageID: parentID,
		CreatedAt:       now,
		seq:             s.nextSeq,
	}
	s.conversations[conversationID] = append(s.conversations[conversationID], m)
	return m
}

// append adds an authoritative message to the end of the conversation list.
func (s *MemStore) append(m *Message) {
	s.mu.Lock()
	s.conversations[m.ConversationID] = append(s.conversations[m.ConversationID], m)
	s.mu.Unlock()
}

// reconcile replaces the oldest optimistic entry matching (sender, text,
// parent) with the authoritative message, preserving list position. It
// returns true when a match was found, false when the message is new to
// this client and was appended instead.
func (s *MemStore) reconcile(auth *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.conversations[auth.ConversationID]
	matchIdx := -1
	for i, m := range list {
		if !m.matches(auth.SenderID, auth.Text, auth.ParentMessageID) {
			continue
		}
		// Duplicate rapid sends of identical text: pair echoes with
		// sends in submission order, oldest first.
		if matchIdx == -1 || m.seq < list[matchIdx].seq {
			matchIdx = i
		}
	}
	if matchIdx == -1 {
		s.conversations[auth.ConversationID] = append(list, auth)
		return false
	}
	list[matchIdx] = auth
	return true
}

// markRetryable flags a still-optimistic entry whose ack wait expired.
// Returns false when the entry was already reconciled away.
func (s *MemStore) markRetryable(conversationID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.conversations[conversationID] {
		if m.ID == messageID && m.Optimistic() {
			m.Retryable = true
			return true
		}
	}
	return false
}

// get returns the message with the given id in a conversation, or nil.
func (s *MemStore) get(conversationID, messageID int64) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.conversations[conversationID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// bumpUnread increments the unread counter and returns the new value.
func (s *MemStore) bumpUnread(conversationID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread[conversationID]++
	return s.unread[conversationID]
}
