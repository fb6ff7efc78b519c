package session

import (
	"context"

	"github.com/HelpUSA/usmle/internal/catalog"
)

// Review assembles the post-closure projection: every item joined with the
// learner's attempt and the full choice set (correctness and explanations
// included). Gated on closed status so answers never leak mid-session.
func (s *SQLStore) Review(ctx context.Context, sessionID, userID string) (Review, error) {
	sess, err := s.loadSession(ctx, s.db, sessionID, userID, "")
	if err != nil {
		return Review{}, err
	}
	if sess.Status != StatusClosed {
		return Review{}, conflict("review is available after the session is closed")
	}

	items, err := s.listItems(ctx, s.db, sessionID)
	if err != nil {
		return Review{}, err
	}

	attempts, err := s.attemptsByItem(ctx, sessionID)
	if err != nil {
		return Review{}, err
	}

	versionIDs := make([]string, 0, len(items))
	for _, it := range items {
		versionIDs = append(versionIDs, it.QuestionVersionID)
	}
	versions, err := catalog.VersionsByID(ctx, s.db, versionIDs)
	if err != nil {
		return Review{}, err
	}
	// Full choice sets are fetched separately and merged in memory; joining
	// them onto the item rows would duplicate every item per choice.
	choiceSets, err := catalog.ChoicesByVersion(ctx, s.db, versionIDs)
	if err != nil {
		return Review{}, err
	}

	sum := Summary{
		SessionID:  sessionID,
		Status:     sess.Status,
		TotalItems: len(items),
		ClosedAt:   sess.ClosedAt,
	}

	out := make([]ReviewItem, 0, len(items))
	for _, it := range items {
		v, ok := versions[it.QuestionVersionID]
		if !ok {
			return Review{}, integrity("question version missing from catalog", nil)
		}
		ri := ReviewItem{
			Position:          it.Position,
			SessionItemID:     it.ID,
			QuestionVersionID: it.QuestionVersionID,
			Stem:              v.Stem,
			Prompt:            v.Prompt,
			ExplanationShort:  v.ExplanationShort,
			ExplanationLong:   v.ExplanationLong,
			Bibliography:      v.Bibliography,
			Choices:           []ReviewChoice{},
		}
		for _, c := range choiceSets[it.QuestionVersionID] {
			rc := ReviewChoice{ID: c.ID, Label: c.Label, Text: c.Text, Correct: c.Correct, Explanation: c.Explanation}
			ri.Choices = append(ri.Choices, rc)
			if c.Correct {
				ri.CorrectChoice = &ChoiceRef{ID: c.ID, Label: c.Label, Text: c.Text}
			}
			if att, ok := attempts[it.ID]; ok && att.ChoiceID != nil && *att.ChoiceID == c.ID {
				ri.Selected = &ChoiceRef{ID: c.ID, Label: c.Label, Text: c.Text}
			}
		}
		if att, ok := attempts[it.ID]; ok {
			ri.Result = att.Result
			ri.TimeSpentSec = att.TimeSpentSec
			ri.Confidence = att.Confidence
			ri.Flagged = att.Flagged
			sum.Answered++
			switch att.Result {
			case ResultCorrect:
				sum.Correct++
			case ResultWrong:
				sum.Wrong++
			case ResultSkipped:
				sum.Skipped++
			}
		}
		out = append(out, ri)
	}
	sum.Unanswered = sum.TotalItems - sum.Answered

	return Review{Session: sess, Summary: sum, Items: out}, nil
}

func (s *SQLStore) attemptsByItem(ctx context.Context, sessionID string) (map[string]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, session_item_id, choice_id, result,
		       is_correct, time_spent_sec, confidence, flagged, answered_at
		FROM attempts WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]Attempt{}
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out[att.SessionItemID] = att
	}
	return out, rows.Err()
}
