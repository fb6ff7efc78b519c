package session

import (
	"context"
	"time"
)

// Submit transitions the session from active to closed exactly once and
// returns the aggregate. A replay on an already-closed session recomputes the
// aggregate live — safe because closure froze the attempt set.
func (s *SQLStore) Submit(ctx context.Context, sessionID, userID string) (Summary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, err
	}
	defer tx.Rollback()

	sess, err := s.lockSession(ctx, tx, sessionID, userID)
	if err != nil {
		return Summary{}, err
	}

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_items WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return Summary{}, err
	}
	if total == 0 {
		return Summary{}, invalid("cannot close a session with no items")
	}

	sum := Summary{SessionID: sessionID, TotalItems: total}
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN result = 'correct' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN result = 'wrong'   THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN result = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM attempts WHERE session_id = $1`, sessionID).
		Scan(&sum.Answered, &sum.Correct, &sum.Wrong, &sum.Skipped); err != nil {
		return Summary{}, err
	}
	sum.Unanswered = total - sum.Answered

	switch sess.Status {
	case StatusClosed:
		// Idempotent replay: no mutation, same closure timestamp.
		sum.Status = StatusClosed
		sum.ClosedAt = sess.ClosedAt
		return sum, tx.Commit()
	case StatusActive:
		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = $1, closed_at = $2 WHERE id = $3`,
			StatusClosed, now, sessionID); err != nil {
			return Summary{}, err
		}
		sum.Status = StatusClosed
		sum.ClosedAt = &now
		if err := tx.Commit(); err != nil {
			return Summary{}, err
		}
		s.emit("SessionClosed", sessionID, map[string]any{
			"answered": sum.Answered, "correct": sum.Correct,
			"wrong": sum.Wrong, "skipped": sum.Skipped, "unanswered": sum.Unanswered,
		})
		return sum, nil
	default:
		return Summary{}, integrity("session has unexpected status "+sess.Status, nil)
	}
}
