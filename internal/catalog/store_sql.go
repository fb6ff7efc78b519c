package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Querier is satisfied by *sql.DB and *sql.Tx so catalog reads can run inside
// the session engine's transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// HasProduction reports whether any published, active, non-seed version exists
// for the exam/language pair.
func HasProduction(ctx context.Context, q Querier, exam, language string) (bool, error) {
	var found bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM question_versions qv
			JOIN questions qq ON qq.id = qv.question_id
			WHERE qv.exam = $1 AND qv.language = $2 AND qv.active
			  AND qq.status = 'published'
			  AND qq.content_source <> 'seed'
		)`, exam, language).Scan(&found)
	return found, err
}

// PoolFilter scopes the eligible-version query for one selection pass.
type PoolFilter struct {
	Exam        string
	Language    string
	Difficulty  string // empty: any difficulty (backfill pass)
	IncludeSeed bool
	UserID      string   // preference ordering is per learner
	Exclude     []string // version ids already attached/picked
	Limit       int
}

// SelectPool returns up to Limit eligible versions, least-seen first for this
// learner (no learning_state row sorts before any seen row), ties broken at
// random.
func SelectPool(ctx context.Context, q Querier, f PoolFilter) ([]Picked, error) {
	if f.Limit <= 0 {
		return nil, nil
	}
	args := []any{f.Exam, f.Language, f.UserID}
	sb := strings.Builder{}
	sb.WriteString(`
		SELECT qv.id, qv.question_id
		FROM question_versions qv
		JOIN questions qq ON qq.id = qv.question_id
		LEFT JOIN learning_state ls ON ls.question_id = qq.id AND ls.user_id = $3
		WHERE qv.exam = $1 AND qv.language = $2 AND qv.active
		  AND qq.status = 'published'`)
	if !f.IncludeSeed {
		sb.WriteString(`
		  AND qq.content_source <> 'seed'`)
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		fmt.Fprintf(&sb, `
		  AND qv.difficulty = $%d`, len(args))
	}
	if len(f.Exclude) > 0 {
		ph := make([]string, 0, len(f.Exclude))
		for _, id := range f.Exclude {
			args = append(args, id)
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		fmt.Fprintf(&sb, `
		  AND qv.id NOT IN (%s)`, strings.Join(ph, ","))
	}
	args = append(args, f.Limit)
	fmt.Fprintf(&sb, `
		ORDER BY COALESCE(ls.times_seen, 0) ASC, RANDOM()
		LIMIT $%d`, len(args))

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Picked
	for rows.Next() {
		var p Picked
		if err := rows.Scan(&p.VersionID, &p.QuestionID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetVersion loads one version with content fields. sql.ErrNoRows passes
// through for the caller to classify.
func GetVersion(ctx context.Context, q Querier, id string) (Version, error) {
	var v Version
	var biblio sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, question_id, exam, language, difficulty, active,
		       stem, prompt, explanation_short, explanation_long, bibliography
		FROM question_versions WHERE id = $1`, id).
		Scan(&v.ID, &v.QuestionID, &v.Exam, &v.Language, &v.Difficulty, &v.Active,
			&v.Stem, &v.Prompt, &v.ExplanationShort, &v.ExplanationLong, &biblio)
	if err != nil {
		return Version{}, err
	}
	v.Bibliography = rawOrNil(biblio)
	return v, nil
}

// VersionsByID loads several versions at once, keyed by id.
func VersionsByID(ctx context.Context, q Querier, ids []string) (map[string]Version, error) {
	out := make(map[string]Version, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids))
	ph := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		ph = append(ph, fmt.Sprintf("$%d", len(args)))
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, question_id, exam, language, difficulty, active,
		       stem, prompt, explanation_short, explanation_long, bibliography
		FROM question_versions WHERE id IN (%s)`, strings.Join(ph, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var v Version
		var biblio sql.NullString
		if err := rows.Scan(&v.ID, &v.QuestionID, &v.Exam, &v.Language, &v.Difficulty, &v.Active,
			&v.Stem, &v.Prompt, &v.ExplanationShort, &v.ExplanationLong, &biblio); err != nil {
			return nil, err
		}
		v.Bibliography = rawOrNil(biblio)
		out[v.ID] = v
	}
	return out, rows.Err()
}

// GetChoice loads one choice. sql.ErrNoRows passes through.
func GetChoice(ctx context.Context, q Querier, id string) (Choice, error) {
	var c Choice
	err := q.QueryRowContext(ctx, `
		SELECT id, question_version_id, label, text, correct, explanation
		FROM choices WHERE id = $1`, id).
		Scan(&c.ID, &c.QuestionVersionID, &c.Label, &c.Text, &c.Correct, &c.Explanation)
	return c, err
}

// ChoicesByVersion fetches the full choice sets for the given versions in one
// query, grouped by version id. Fetching separately (rather than fanning out a
// join) keeps the item rows duplicate-free; the caller merges in memory.
func ChoicesByVersion(ctx context.Context, q Querier, versionIDs []string) (map[string][]Choice, error) {
	out := make(map[string][]Choice, len(versionIDs))
	if len(versionIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(versionIDs))
	ph := make([]string, 0, len(versionIDs))
	for _, id := range versionIDs {
		args = append(args, id)
		ph = append(ph, fmt.Sprintf("$%d", len(args)))
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, question_version_id, label, text, correct, explanation
		FROM choices WHERE question_version_id IN (%s)
		ORDER BY question_version_id, label`, strings.Join(ph, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Choice
		if err := rows.Scan(&c.ID, &c.QuestionVersionID, &c.Label, &c.Text, &c.Correct, &c.Explanation); err != nil {
			return nil, err
		}
		out[c.QuestionVersionID] = append(out[c.QuestionVersionID], c)
	}
	return out, rows.Err()
}

// PublicQuestionByVersion builds the answer-stripped view served mid-session.
func PublicQuestionByVersion(ctx context.Context, q Querier, versionID string) (PublicQuestion, error) {
	v, err := GetVersion(ctx, q, versionID)
	if err != nil {
		return PublicQuestion{}, err
	}
	byVersion, err := ChoicesByVersion(ctx, q, []string{versionID})
	if err != nil {
		return PublicQuestion{}, err
	}
	pub := PublicQuestion{
		QuestionVersionID: v.ID,
		Exam:              v.Exam,
		Language:          v.Language,
		Difficulty:        v.Difficulty,
		Stem:              v.Stem,
		Prompt:            v.Prompt,
		Bibliography:      v.Bibliography,
		Choices:           []PublicChoice{},
	}
	for _, c := range byVersion[versionID] {
		pub.Choices = append(pub.Choices, PublicChoice{ID: c.ID, Label: c.Label, Text: c.Text})
	}
	return pub, nil
}

func rawOrNil(ns sql.NullString) *json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	raw := json.RawMessage(ns.String)
	return &raw
}
