package store

import "time"

// SaveMessage inserts or updates a message (idempotent on server id).
func (db *DB) SaveMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, body, message_type, parent_message_id, is_delivered, is_read, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			is_delivered = excluded.is_delivered,
			is_read = excluded.is_read`,
		m.ID, m.ConversationID, m.SenderID, m.Body, m.MessageType,
		m.ParentMessageID, m.IsDelivered, m.IsRead, m.SentAt, now)
	return err
}

// ListMessages returns messages for a conversation using keyset pagination
// by sent timestamp.
func (db *DB) ListMessages(conversationID int64, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, body, message_type, parent_message_id, is_delivered, is_read, sent_at
		FROM messages
		WHERE conversation_id = ? AND sent_at < ?
		ORDER BY sent_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.MessageType,
			&m.ParentMessageID, &m.IsDelivered, &m.IsRead, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
