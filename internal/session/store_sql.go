package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	syncx "github.com/HelpUSA/usmle/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	events *syncx.EventRepo
	siteID string
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// WithEvents enables lifecycle event logging (SessionCreated, ItemsGenerated,
// SessionClosed). Appends are best-effort, after commit.
func (s *SQLStore) WithEvents(repo *syncx.EventRepo, siteID string) *SQLStore {
	s.events = repo
	s.siteID = siteID
	return s
}

// forUpdate returns the row-lock suffix. SQLite has no FOR UPDATE; its single
// writer already serializes the transactions this lock exists to order.
func (s *SQLStore) forUpdate() string {
	if s.driver == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

func (s *SQLStore) CreateSession(ctx context.Context, userID string, in CreateInput) (Session, error) {
	if userID == "" {
		return Session{}, forbidden("missing caller identity")
	}
	if in.Exam != "step1" && in.Exam != "step2ck" {
		return Session{}, invalid("exam must be step1 or step2ck")
	}
	if in.Mode != ModePractice && in.Mode != ModeTimed {
		return Session{}, invalid("mode must be practice or timed")
	}
	if in.Language == "" {
		in.Language = "en"
	}
	if in.Mode == ModeTimed && in.TimeLimitSec <= 0 {
		return Session{}, invalid("timed mode requires time_limit_sec > 0")
	}
	if in.Mode == ModePractice {
		in.TimeLimitSec = 0
	}

	sess := Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Exam:         in.Exam,
		Mode:         in.Mode,
		Language:     in.Language,
		TimeLimitSec: in.TimeLimitSec,
		Status:       StatusActive,
		StartedAt:    time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, exam, mode, language, time_limit_sec, status, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		sess.ID, sess.UserID, sess.Exam, sess.Mode, sess.Language, sess.TimeLimitSec, sess.Status, sess.StartedAt)
	if err != nil {
		return Session{}, err
	}
	s.emit("SessionCreated", sess.ID, map[string]any{"exam": sess.Exam, "mode": sess.Mode})
	return sess, nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID, userID string) (Session, error) {
	return s.loadSession(ctx, s.db, sessionID, userID, "")
}

func (s *SQLStore) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, exam, mode, language, time_limit_sec, status, started_at, closed_at
		FROM sessions WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) ToggleBookmark(ctx context.Context, userID, questionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`, questionID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, notFound("question not found")
	}

	now := time.Now().Unix()
	var bookmarked bool
	err = tx.QueryRowContext(ctx, `
		INSERT INTO learning_state (user_id, question_id, last_seen_at, bookmarked)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET bookmarked = NOT learning_state.bookmarked
		RETURNING bookmarked`, userID, questionID, now).Scan(&bookmarked)
	if err != nil {
		return false, err
	}
	return bookmarked, tx.Commit()
}

// ---- shared transaction helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var sess Session
	var closedAt sql.NullInt64
	err := r.Scan(&sess.ID, &sess.UserID, &sess.Exam, &sess.Mode, &sess.Language,
		&sess.TimeLimitSec, &sess.Status, &sess.StartedAt, &closedAt)
	if err != nil {
		return Session{}, err
	}
	if closedAt.Valid {
		v := closedAt.Int64
		sess.ClosedAt = &v
	}
	return sess, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// loadSession fetches a session with an optional lock suffix and enforces
// ownership. Lock acquisition order across the package is always session
// before item.
func (s *SQLStore) loadSession(ctx context.Context, q querier, sessionID, userID, lock string) (Session, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, exam, mode, language, time_limit_sec, status, started_at, closed_at
		FROM sessions WHERE id = $1`+lock, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, notFound("session not found")
	}
	if err != nil {
		return Session{}, err
	}
	if sess.UserID != userID {
		return Session{}, forbidden("session belongs to another user")
	}
	return sess, nil
}

// lockSession takes the exclusive session row lock inside tx. All writes to a
// session's items/attempts/status start here, which is what serializes
// concurrent generate/record/submit calls.
func (s *SQLStore) lockSession(ctx context.Context, tx *sql.Tx, sessionID, userID string) (Session, error) {
	return s.loadSession(ctx, tx, sessionID, userID, s.forUpdate())
}

func (s *SQLStore) listItems(ctx context.Context, q querier, sessionID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, session_id, position, question_version_id
		FROM session_items WHERE session_id = $1
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SessionID, &it.Position, &it.QuestionVersionID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLStore) emit(typ, key string, payload map[string]any) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(payload)
	// Fire-and-forget: the event log is an observability aid, not part of the
	// transaction contract.
	_ = s.events.Append(context.Background(), syncx.Event{
		SiteID:   s.siteID,
		Type:     typ,
		Key:      key,
		DataJSON: string(data),
	})
}
