package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or updates a conversation summary.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, participant_id, participant_name, participant_image_url, unread_count, muted_until, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participant_id = excluded.participant_id,
			participant_name = excluded.participant_name,
			participant_image_url = excluded.participant_image_url,
			unread_count = excluded.unread_count,
			muted_until = excluded.muted_until,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		c.ID, c.ParticipantID, c.ParticipantName, c.ParticipantImageURL,
		c.UnreadCount, c.MutedUntil, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// ListConversations returns conversations sorted by last message timestamp
// descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, participant_id, participant_name, participant_image_url, unread_count, muted_until, last_message_at, last_message_preview
		FROM conversations
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.ParticipantID, &c.ParticipantName, &c.ParticipantImageURL,
			&c.UnreadCount, &c.MutedUntil, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns a single conversation by id, or nil when unknown.
func (db *DB) GetConversation(id int64) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT id, participant_id, participant_name, participant_image_url, unread_count, muted_until, last_message_at, last_message_preview
		FROM conversations
		WHERE id = ?`, id).
		Scan(&c.ID, &c.ParticipantID, &c.ParticipantName, &c.ParticipantImageURL,
			&c.UnreadCount, &c.MutedUntil, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetPreview updates the last-message preview and timestamp, creating the
// conversation row if the message arrived before the summary was cached.
func (db *DB) SetPreview(conversationID int64, preview string, at int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		conversationID, at, truncate(preview, 100), now)
	return err
}

// AddUnread adjusts the unread counter, clamping at zero.
func (db *DB) AddUnread(conversationID int64, delta int) error {
	_, err := db.Exec(`
		UPDATE conversations
		SET unread_count = MAX(0, unread_count + ?), updated_at = ?
		WHERE id = ?`, delta, time.Now().UnixMilli(), conversationID)
	return err
}

// MarkConversationRead zeroes the unread counter and flags archived
// messages from the other side as read.
func (db *DB) MarkConversationRead(conversationID int64, localUserID int64) error {
	now := time.Now().UnixMilli()
	if _, err := db.Exec(`
		UPDATE conversations SET unread_count = 0, updated_at = ? WHERE id = ?`,
		now, conversationID); err != nil {
		return err
	}
	_, err := db.Exec(`
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id != ? AND is_read = 0`,
		conversationID, localUserID)
	return err
}

// SetMutedUntil sets the notification mute deadline (0 to unmute).
func (db *DB) SetMutedUntil(conversationID int64, until int64) error {
	_, err := db.Exec(`
		UPDATE conversations SET muted_until = ?, updated_at = ? WHERE id = ?`,
		until, time.Now().UnixMilli(), conversationID)
	return err
}

// IsMuted reports whether notifications for a conversation are currently
// suppressed. Unknown conversations are not muted.
func (db *DB) IsMuted(conversationID int64, now time.Time) (bool, error) {
	var until int64
	err := db.QueryRow(`SELECT muted_until FROM conversations WHERE id = ?`, conversationID).Scan(&until)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return until > now.UnixMilli(), nil
}

// truncate cuts s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
