package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SeedChoice mirrors the import contract of the content pipeline.
type SeedChoice struct {
	Label       string `json:"label"`
	Text        string `json:"text"`
	Correct     bool   `json:"correct"`
	Explanation string `json:"explanation"`
}

type SeedItem struct {
	CanonicalCode    string           `json:"canonical_code"`
	Exam             string           `json:"exam"`
	Language         string           `json:"language"`
	Difficulty       string           `json:"difficulty"`
	Stem             string           `json:"stem"`
	Prompt           string           `json:"prompt"` // never null; empty string when absent
	ExplanationShort string           `json:"explanation_short"`
	ExplanationLong  string           `json:"explanation_long"`
	Bibliography     *json.RawMessage `json:"bibliography,omitempty"`
	Choices          []SeedChoice     `json:"choices"`
}

// ImportMinimal ingests pipeline "ready" items as published seed content.
// One transaction for the whole batch: a bad item rejects the batch.
func ImportMinimal(ctx context.Context, db *sql.DB, createdBy string, items []SeedItem) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("empty batch")
	}
	for i := range items {
		if err := validateSeedItem(&items[i]); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	// questions.created_by references users_profile, and the importing
	// identity may never have signed up (guest tokens, test headers). Make
	// sure the row exists before attributing content to it.
	var author any
	if createdBy != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users_profile (user_id, display_name, role, created_at)
			VALUES ($1, $1, 'student', $2)
			ON CONFLICT (user_id) DO NOTHING`, createdBy, now); err != nil {
			return 0, err
		}
		author = createdBy
	}

	for _, it := range items {
		var questionID string
		err := tx.QueryRowContext(ctx, `
			INSERT INTO questions (id, canonical_code, status, content_source, created_by, created_at)
			VALUES ($1, $2, 'published', 'seed', $3, $4)
			ON CONFLICT (canonical_code) DO UPDATE SET status = 'published'
			RETURNING id`,
			uuid.NewString(), it.CanonicalCode, author, now).Scan(&questionID)
		if err != nil {
			return 0, err
		}

		versionID := uuid.NewString()
		var biblio any
		if it.Bibliography != nil {
			biblio = string(*it.Bibliography)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO question_versions
			  (id, question_id, exam, language, difficulty, active,
			   stem, prompt, explanation_short, explanation_long, bibliography, created_at)
			VALUES ($1,$2,$3,$4,$5,TRUE,$6,$7,$8,$9,$10,$11)`,
			versionID, questionID, it.Exam, it.Language, it.Difficulty,
			it.Stem, it.Prompt, it.ExplanationShort, it.ExplanationLong, biblio, now); err != nil {
			return 0, err
		}

		for _, c := range it.Choices {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO choices (id, question_version_id, label, text, correct, explanation)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				uuid.NewString(), versionID, c.Label, c.Text, c.Correct, c.Explanation); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func validateSeedItem(it *SeedItem) error {
	if strings.TrimSpace(it.CanonicalCode) == "" {
		return fmt.Errorf("canonical_code required")
	}
	if it.Exam != "step1" && it.Exam != "step2ck" {
		return fmt.Errorf("unknown exam %q", it.Exam)
	}
	if it.Language == "" {
		it.Language = "en"
	}
	switch it.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", it.Difficulty)
	}
	if strings.TrimSpace(it.Stem) == "" {
		return fmt.Errorf("stem required")
	}
	if len(it.Choices) < 2 {
		return fmt.Errorf("at least two choices required")
	}
	correct := 0
	for _, c := range it.Choices {
		if strings.TrimSpace(c.Label) == "" || strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("choice label and text required")
		}
		if c.Correct {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("exactly one correct choice required, got %d", correct)
	}
	return nil
}
