package session

import (
	"context"

	"github.com/HelpUSA/usmle/internal/catalog"
)

type CreateInput struct {
	Exam         string `json:"exam"`
	Mode         string `json:"mode"`
	Language     string `json:"language"`
	TimeLimitSec int    `json:"time_limit_sec"`
}

type GenerateInput struct {
	Count       int  `json:"count"`
	IncludeSeed bool `json:"include_seed"`
}

// AttemptInput carries one response. Nil ChoiceID means the learner skipped
// the question. Nil metadata fields leave any previously recorded values
// untouched on re-answer.
type AttemptInput struct {
	ChoiceID     *string `json:"choice_id"`
	TimeSpentSec *int    `json:"time_spent_sec"`
	Confidence   *int    `json:"confidence"`
	Flagged      *bool   `json:"flagged"`
}

type Store interface {
	CreateSession(ctx context.Context, userID string, in CreateInput) (Session, error)
	GetSession(ctx context.Context, sessionID, userID string) (Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]Session, error)

	// GenerateItems materializes the session's question list. The bool is
	// false on idempotent replay (items already existed; Count/IncludeSeed
	// ignored).
	GenerateItems(ctx context.Context, sessionID, userID string, in GenerateInput) ([]Item, bool, error)
	ListItems(ctx context.Context, sessionID, userID string) ([]Item, error)

	// GetItemQuestion serves the answer-stripped question bound to an item.
	GetItemQuestion(ctx context.Context, sessionID, itemID, userID string) (catalog.PublicQuestion, error)

	// RecordAttempt upserts the single graded response for an item. The bool
	// is true when a new attempt row was created, false on re-answer.
	RecordAttempt(ctx context.Context, sessionID, itemID, userID string, in AttemptInput) (Attempt, bool, error)

	// Submit closes the session exactly once and returns the aggregate;
	// replays return the same aggregate without mutating.
	Submit(ctx context.Context, sessionID, userID string) (Summary, error)

	// Review is the post-closure projection; Conflict while active.
	Review(ctx context.Context, sessionID, userID string) (Review, error)

	// ToggleBookmark flips the learner's bookmark on a question and returns
	// the new value.
	ToggleBookmark(ctx context.Context, userID, questionID string) (bool, error)
}
