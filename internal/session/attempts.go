package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/HelpUSA/usmle/internal/catalog"
)

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// RecordAttempt upserts the single graded response for a session item.
// Correctness is always computed server-side against the catalog; the client
// never supplies it. Lock order: session row, then item row.
func (s *SQLStore) RecordAttempt(ctx context.Context, sessionID, itemID, userID string, in AttemptInput) (Attempt, bool, error) {
	if in.Confidence != nil && (*in.Confidence < 1 || *in.Confidence > 5) {
		return Attempt{}, false, invalid("confidence must be between 1 and 5")
	}
	if in.TimeSpentSec != nil && *in.TimeSpentSec < 0 {
		return Attempt{}, false, invalid("time_spent_sec must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, false, err
	}
	defer tx.Rollback()

	sess, err := s.lockSession(ctx, tx, sessionID, userID)
	if err != nil {
		return Attempt{}, false, err
	}
	if sess.Status != StatusActive {
		return Attempt{}, false, conflict("session is closed; attempts are frozen")
	}

	var versionID string
	err = tx.QueryRowContext(ctx, `
		SELECT question_version_id FROM session_items
		WHERE id = $1 AND session_id = $2`+s.forUpdate(), itemID, sessionID).Scan(&versionID)
	if isNoRows(err) {
		return Attempt{}, false, notFound("session item not found")
	}
	if err != nil {
		return Attempt{}, false, err
	}

	// Grade.
	result := ResultSkipped
	var isCorrect *bool
	if in.ChoiceID != nil {
		ch, err := catalog.GetChoice(ctx, tx, *in.ChoiceID)
		if isNoRows(err) {
			return Attempt{}, false, unprocessable("choice does not exist")
		}
		if err != nil {
			return Attempt{}, false, err
		}
		if ch.QuestionVersionID != versionID {
			return Attempt{}, false, unprocessable("choice does not belong to this question")
		}
		v := ch.Correct
		isCorrect = &v
		if v {
			result = ResultCorrect
		} else {
			result = ResultWrong
		}
	}

	now := time.Now().Unix()
	existing, err := s.lockAttemptByItem(ctx, tx, itemID)
	if err != nil && !isNoRows(err) {
		return Attempt{}, false, err
	}

	var att Attempt
	created := false
	if isNoRows(err) {
		created = true
		att = Attempt{
			ID:            uuid.NewString(),
			UserID:        userID,
			SessionID:     sessionID,
			SessionItemID: itemID,
			ChoiceID:      in.ChoiceID,
			Result:        result,
			IsCorrect:     isCorrect,
			TimeSpentSec:  in.TimeSpentSec,
			Confidence:    in.Confidence,
			AnsweredAt:    now,
		}
		if in.Flagged != nil {
			att.Flagged = *in.Flagged
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attempts
			  (id, user_id, session_id, session_item_id, choice_id, result,
			   is_correct, time_spent_sec, confidence, flagged, answered_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			att.ID, att.UserID, att.SessionID, att.SessionItemID, nullStr(att.ChoiceID),
			att.Result, nullBool(att.IsCorrect), nullInt(att.TimeSpentSec),
			nullInt(att.Confidence), att.Flagged, att.AnsweredAt); err != nil {
			return Attempt{}, false, err
		}
	} else {
		// Re-answer: overwrite choice/result/correctness, refresh the
		// timestamp, and only touch metadata fields that were supplied.
		att = existing
		att.ChoiceID = in.ChoiceID
		att.Result = result
		att.IsCorrect = isCorrect
		att.AnsweredAt = now
		if in.TimeSpentSec != nil {
			att.TimeSpentSec = in.TimeSpentSec
		}
		if in.Confidence != nil {
			att.Confidence = in.Confidence
		}
		if in.Flagged != nil {
			att.Flagged = *in.Flagged
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE attempts SET choice_id=$1, result=$2, is_correct=$3,
			       time_spent_sec=$4, confidence=$5, flagged=$6, answered_at=$7
			WHERE id=$8`,
			nullStr(att.ChoiceID), att.Result, nullBool(att.IsCorrect),
			nullInt(att.TimeSpentSec), nullInt(att.Confidence), att.Flagged,
			att.AnsweredAt, att.ID); err != nil {
			return Attempt{}, false, err
		}
	}

	if err := s.recordExposure(ctx, tx, userID, versionID, att); err != nil {
		return Attempt{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return Attempt{}, false, err
	}
	return att, created, nil
}

// recordExposure upserts the learner's per-question state. Every call
// increments times_seen, including re-answers of the same item; callers that
// want increment-once-per-item semantics only need to change this function.
func (s *SQLStore) recordExposure(ctx context.Context, tx *sql.Tx, userID, versionID string, att Attempt) error {
	var questionID string
	err := tx.QueryRowContext(ctx,
		`SELECT question_id FROM question_versions WHERE id = $1`, versionID).Scan(&questionID)
	if isNoRows(err) {
		return integrity("question version missing from catalog", err)
	}
	if err != nil {
		return err
	}

	correctDelta := 0
	if att.IsCorrect != nil && *att.IsCorrect {
		correctDelta = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO learning_state
		  (user_id, question_id, last_seen_at, last_attempt_id, times_seen, times_correct, last_result)
		VALUES ($1,$2,$3,$4,1,$5,$6)
		ON CONFLICT (user_id, question_id) DO UPDATE SET
		  last_seen_at    = excluded.last_seen_at,
		  last_attempt_id = excluded.last_attempt_id,
		  times_seen      = learning_state.times_seen + 1,
		  times_correct   = learning_state.times_correct + $5,
		  last_result     = excluded.last_result`,
		userID, questionID, att.AnsweredAt, att.ID, correctDelta, att.Result)
	return err
}

func (s *SQLStore) lockAttemptByItem(ctx context.Context, tx *sql.Tx, itemID string) (Attempt, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, session_item_id, choice_id, result,
		       is_correct, time_spent_sec, confidence, flagged, answered_at
		FROM attempts WHERE session_item_id = $1`+s.forUpdate(), itemID)
	return scanAttempt(row)
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var att Attempt
	var choiceID sql.NullString
	var isCorrect sql.NullBool
	var timeSpent, confidence sql.NullInt64
	err := r.Scan(&att.ID, &att.UserID, &att.SessionID, &att.SessionItemID, &choiceID,
		&att.Result, &isCorrect, &timeSpent, &confidence, &att.Flagged, &att.AnsweredAt)
	if err != nil {
		return Attempt{}, err
	}
	if choiceID.Valid {
		v := choiceID.String
		att.ChoiceID = &v
	}
	if isCorrect.Valid {
		v := isCorrect.Bool
		att.IsCorrect = &v
	}
	if timeSpent.Valid {
		v := int(timeSpent.Int64)
		att.TimeSpentSec = &v
	}
	if confidence.Valid {
		v := int(confidence.Int64)
		att.Confidence = &v
	}
	return att, nil
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
