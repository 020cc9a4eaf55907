package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/helix/internal/domain"
)

// SessionRecord is a persisted session row.
type SessionRecord struct {
	ID          string          `json:"id"`
	UserInfo    domain.UserInfo `json:"userInfo"`
	UserID      string          `json:"userId"`
	UserName    string          `json:"userName,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	FinalizedAt *time.Time      `json:"finalizedAt,omitempty"`
	Messages    int             `json:"messages"`
}

// Reader is the read side used by the CLI and gateway.
type Reader interface {
	ListSessions(ctx context.Context) ([]SessionRecord, error)
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	GetSequence(ctx context.Context, sessionID string) ([]domain.OutreachMessage, error)
}

// Records implements domain.Persistence and Reader on a DB.
type Records struct {
	db *DB
}

// NewRecords creates a record store using the given database.
func NewRecords(db *DB) *Records {
	return &Records{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSession(ctx context.Context, ex execer, id string, info domain.UserInfo, finalized bool) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding user info: %w", err)
	}

	now := time.Now().UTC().Format(time.DateTime)
	var finalizedAt sql.NullString
	if finalized {
		finalizedAt = sql.NullString{String: now, Valid: true}
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO session (id, session_context, user_id, user_name, created_at, updated_at, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   session_context = excluded.session_context,
		   user_id = excluded.user_id,
		   user_name = excluded.user_name,
		   updated_at = excluded.updated_at,
		   finalized_at = COALESCE(excluded.finalized_at, session.finalized_at)`,
		id, string(data), info.ID, nullString(info.Name), now, now, finalizedAt,
	)
	return err
}

// UpsertSessionRecord writes the session row.
func (r *Records) UpsertSessionRecord(ctx context.Context, sessionID string, info domain.UserInfo) error {
	if err := upsertSession(ctx, r.db.sql, sessionID, info, false); err != nil {
		return fmt.Errorf("%w: upsert session %s: %v", domain.ErrPersistence, sessionID, err)
	}
	r.db.log.Debug().Str("sessionId", sessionID).Msg("session record saved")
	return nil
}

// UpsertSequenceRecords replaces the session row and its message set in a
// single transaction. Any failure rolls the whole write back.
func (r *Records) UpsertSequenceRecords(ctx context.Context, sessionID string, info domain.UserInfo, messages []domain.OutreachMessage) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertSession(ctx, tx, sessionID, info, true); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM outreach_message WHERE session_id = ?`, sessionID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO outreach_message (id, session_id, type, subject, content, timing, order_no)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   session_id = excluded.session_id,
			   type = excluded.type,
			   subject = excluded.subject,
			   content = excluded.content,
			   timing = excluded.timing,
			   order_no = excluded.order_no`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range messages {
			if _, err := stmt.ExecContext(ctx, m.ID, sessionID, string(m.Type), m.Subject, m.Content, m.Timing, m.Order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: save sequence %s: %v", domain.ErrPersistence, sessionID, err)
	}
	r.db.log.Info().Str("sessionId", sessionID).Int("count", len(messages)).Msg("sequence records saved")
	return nil
}

const sessionColumns = `s.id, s.session_context, s.user_id, s.user_name, s.created_at, s.updated_at, s.finalized_at,
	(SELECT COUNT(*) FROM outreach_message m WHERE m.session_id = s.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	var sessionCtx string
	var userName, updatedAt, finalizedAt sql.NullString
	var createdAt string

	if err := row.Scan(&rec.ID, &sessionCtx, &rec.UserID, &userName, &createdAt, &updatedAt, &finalizedAt, &rec.Messages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sessionCtx), &rec.UserInfo); err != nil {
		return nil, fmt.Errorf("decoding session %s context: %w", rec.ID, err)
	}
	rec.UserName = userName.String
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt.String)
	if finalizedAt.Valid {
		t := parseTime(finalizedAt.String)
		rec.FinalizedAt = &t
	}
	return &rec, nil
}

// ListSessions returns every stored session, most recently updated first.
func (r *Records) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM session s ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetSession returns one stored session or domain.ErrSessionNotFound.
func (r *Records) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	rec, err := scanSession(r.db.sql.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM session s WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return rec, err
}

// GetSequence returns the stored messages of a session in order.
func (r *Records) GetSequence(ctx context.Context, sessionID string) ([]domain.OutreachMessage, error) {
	rows, err := r.db.sql.QueryContext(ctx,
		`SELECT id, type, subject, content, timing, order_no
		 FROM outreach_message WHERE session_id = ? ORDER BY order_no`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading sequence %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := []domain.OutreachMessage{}
	for rows.Next() {
		var m domain.OutreachMessage
		var typ string
		if err := rows.Scan(&m.ID, &typ, &m.Subject, &m.Content, &m.Timing, &m.Order); err != nil {
			return nil, err
		}
		m.Type = domain.MessageType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and, by cascade, its messages.
func (r *Records) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := r.db.sql.ExecContext(ctx, `DELETE FROM session WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.DateTime, s)
	return t
}
