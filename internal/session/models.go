package session

import "encoding/json"

const (
	StatusActive = "active"
	StatusClosed = "closed"

	ModePractice = "practice"
	ModeTimed    = "timed"

	ResultCorrect = "correct"
	ResultWrong   = "wrong"
	ResultSkipped = "skipped"
)

type Session struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Exam         string `json:"exam"` // step1|step2ck
	Mode         string `json:"mode"` // practice|timed
	Language     string `json:"language"`
	TimeLimitSec int    `json:"time_limit_sec"`
	Status       string `json:"status"` // active|closed
	StartedAt    int64  `json:"started_at"`
	ClosedAt     *int64 `json:"closed_at,omitempty"`
}

// Item binds one question version to a fixed 1-based position in a session.
// Immutable once generated.
type Item struct {
	ID                string `json:"id"`
	SessionID         string `json:"session_id"`
	Position          int    `json:"position"`
	QuestionVersionID string `json:"question_version_id"`
}

type Attempt struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	SessionID     string  `json:"session_id"`
	SessionItemID string  `json:"session_item_id"`
	ChoiceID      *string `json:"choice_id,omitempty"`
	Result        string  `json:"result"` // correct|wrong|skipped
	IsCorrect     *bool   `json:"is_correct,omitempty"`
	TimeSpentSec  *int    `json:"time_spent_sec,omitempty"`
	Confidence    *int    `json:"confidence,omitempty"` // 1..5
	Flagged       bool    `json:"flagged"`
	AnsweredAt    int64   `json:"answered_at"`
}

// Summary is the frozen aggregate returned by Submit. On replay it is
// recomputed live from the (frozen) attempt set.
type Summary struct {
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	TotalItems int    `json:"total_items"`
	Answered   int    `json:"answered"`
	Correct    int    `json:"correct"`
	Wrong      int    `json:"wrong"`
	Skipped    int    `json:"skipped"`
	Unanswered int    `json:"unanswered"`
	ClosedAt   *int64 `json:"closed_at,omitempty"`
}

// ChoiceRef identifies one choice as shown in a review (no correctness flag;
// the full choice list carries those).
type ChoiceRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type ReviewChoice struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation,omitempty"`
}

type ReviewItem struct {
	Position          int              `json:"position"`
	SessionItemID     string           `json:"session_item_id"`
	QuestionVersionID string           `json:"question_version_id"`
	Stem              string           `json:"stem"`
	Prompt            string           `json:"prompt,omitempty"`
	ExplanationShort  string           `json:"explanation_short,omitempty"`
	ExplanationLong   string           `json:"explanation_long,omitempty"`
	Bibliography      *json.RawMessage `json:"bibliography,omitempty"`
	Choices           []ReviewChoice   `json:"choices"`
	Selected          *ChoiceRef       `json:"selected,omitempty"`
	CorrectChoice     *ChoiceRef       `json:"correct_choice,omitempty"`
	Result            string           `json:"result,omitempty"` // empty when unanswered
	TimeSpentSec      *int             `json:"time_spent_sec,omitempty"`
	Confidence        *int             `json:"confidence,omitempty"`
	Flagged           bool             `json:"flagged"`
}

type Review struct {
	Session Session      `json:"session"`
	Summary Summary      `json:"summary"`
	Items   []ReviewItem `json:"items"`
}
