package catalog

import "encoding/json"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"

	SourceProduction = "production"
	SourceSeed       = "seed"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Version is one revision of a question for a given exam/language.
type Version struct {
	ID               string           `json:"id"`
	QuestionID       string           `json:"question_id"`
	Exam             string           `json:"exam"`
	Language         string           `json:"language"`
	Difficulty       string           `json:"difficulty"`
	Active           bool             `json:"active"`
	Stem             string           `json:"stem"`
	Prompt           string           `json:"prompt"`
	ExplanationShort string           `json:"explanation_short"`
	ExplanationLong  string           `json:"explanation_long"`
	Bibliography     *json.RawMessage `json:"bibliography,omitempty"` // nullable JSON, kept raw
}

type Choice struct {
	ID                string `json:"id"`
	QuestionVersionID string `json:"question_version_id"`
	Label             string `json:"label"`
	Text              string `json:"text"`
	Correct           bool   `json:"correct"`
	Explanation       string `json:"explanation"`
}

// PublicChoice is a choice as served to a learner mid-session:
// no correctness flag, no explanation.
type PublicChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// PublicQuestion is the answer-stripped view of a version.
type PublicQuestion struct {
	QuestionVersionID string           `json:"question_version_id"`
	Exam              string           `json:"exam"`
	Language          string           `json:"language"`
	Difficulty        string           `json:"difficulty"`
	Stem              string           `json:"stem"`
	Prompt            string           `json:"prompt,omitempty"`
	Bibliography      *json.RawMessage `json:"bibliography,omitempty"`
	Choices           []PublicChoice   `json:"choices"`
}

// Picked is the minimal projection the selection engine needs.
type Picked struct {
	VersionID  string
	QuestionID string
}
