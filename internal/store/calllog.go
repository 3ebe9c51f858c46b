package store

// InsertCallLog appends a terminal call summary.
func (db *DB) InsertCallLog(e *CallLog) error {
	res, err := db.Exec(`
		INSERT INTO call_log (conversation_id, counterparty_id, counterparty_name, is_video, is_outgoing, was_connected, start_time, end_time, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ConversationID, e.CounterpartyID, e.CounterpartyName,
		e.IsVideo, e.IsOutgoing, e.WasConnected, e.StartTime, e.EndTime, e.Outcome)
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// ListCallLog returns call history, newest first. A zero conversationID
// lists across all conversations.
func (db *DB) ListCallLog(conversationID int64, limit int) ([]CallLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, counterparty_id, counterparty_name, is_video, is_outgoing, was_connected, start_time, end_time, outcome
		FROM call_log`
	args := []any{}
	if conversationID > 0 {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY start_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CallLog
	for rows.Next() {
		var e CallLog
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.CounterpartyID, &e.CounterpartyName,
			&e.IsVideo, &e.IsOutgoing, &e.WasConnected, &e.StartTime, &e.EndTime, &e.Outcome); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
