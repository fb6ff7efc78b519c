package session

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/HelpUSA/usmle/internal/catalog"
)

const (
	defaultItemCount = 10
	maxItemCount     = 50
)

// difficultySplit computes the per-bucket targets for n items:
// 30% easy, 20% hard (rounded), medium absorbs the remainder.
// Each bucket floors at zero.
func difficultySplit(n int) (easy, medium, hard int) {
	easy = int(math.Round(0.3 * float64(n)))
	hard = int(math.Round(0.2 * float64(n)))
	medium = n - easy - hard
	if easy < 0 {
		easy = 0
	}
	if medium < 0 {
		medium = 0
	}
	if hard < 0 {
		hard = 0
	}
	return
}

func (s *SQLStore) ListItems(ctx context.Context, sessionID, userID string) ([]Item, error) {
	if _, err := s.loadSession(ctx, s.db, sessionID, userID, ""); err != nil {
		return nil, err
	}
	return s.listItems(ctx, s.db, sessionID)
}

func (s *SQLStore) GetItemQuestion(ctx context.Context, sessionID, itemID, userID string) (catalog.PublicQuestion, error) {
	if _, err := s.loadSession(ctx, s.db, sessionID, userID, ""); err != nil {
		return catalog.PublicQuestion{}, err
	}
	var versionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT question_version_id FROM session_items
		WHERE id = $1 AND session_id = $2`, itemID, sessionID).Scan(&versionID)
	if err != nil {
		if isNoRows(err) {
			return catalog.PublicQuestion{}, notFound("session item not found")
		}
		return catalog.PublicQuestion{}, err
	}
	pub, err := catalog.PublicQuestionByVersion(ctx, s.db, versionID)
	if err != nil {
		if isNoRows(err) {
			return catalog.PublicQuestion{}, integrity("question version missing from catalog", err)
		}
		return catalog.PublicQuestion{}, err
	}
	return pub, nil
}

// GenerateItems materializes the session's ordered question list, exactly
// once. The session row lock makes a racing duplicate call wait and then hit
// the replay branch instead of inserting a second item set.
func (s *SQLStore) GenerateItems(ctx context.Context, sessionID, userID string, in GenerateInput) ([]Item, bool, error) {
	count := in.Count
	if count <= 0 {
		count = defaultItemCount
	}
	if count > maxItemCount {
		count = maxItemCount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	sess, err := s.lockSession(ctx, tx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	if sess.Status != StatusActive {
		return nil, false, conflict("session is not active")
	}

	// Idempotent replay: an existing item set is returned unchanged and the
	// requested count/seed policy are ignored.
	existing, err := s.listItems(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing, false, tx.Commit()
	}

	hasProd, err := catalog.HasProduction(ctx, tx, sess.Exam, sess.Language)
	if err != nil {
		return nil, false, err
	}
	includeSeed := catalog.IncludeSeed(in.IncludeSeed, hasProd)

	easy, medium, hard := difficultySplit(count)
	buckets := []struct {
		difficulty string
		want       int
	}{
		{catalog.DifficultyEasy, easy},
		{catalog.DifficultyMedium, medium},
		{catalog.DifficultyHard, hard},
	}

	picked := make([]catalog.Picked, 0, count)
	exclude := []string{}
	for _, b := range buckets {
		if b.want == 0 {
			continue
		}
		pool, err := catalog.SelectPool(ctx, tx, catalog.PoolFilter{
			Exam:        sess.Exam,
			Language:    sess.Language,
			Difficulty:  b.difficulty,
			IncludeSeed: includeSeed,
			UserID:      userID,
			Exclude:     exclude,
			Limit:       b.want,
		})
		if err != nil {
			return nil, false, err
		}
		for _, p := range pool {
			picked = append(picked, p)
			exclude = append(exclude, p.VersionID)
		}
	}

	// Backfill across difficulties when the buckets came up short.
	if missing := count - len(picked); missing > 0 {
		pool, err := catalog.SelectPool(ctx, tx, catalog.PoolFilter{
			Exam:        sess.Exam,
			Language:    sess.Language,
			IncludeSeed: includeSeed,
			UserID:      userID,
			Exclude:     exclude,
			Limit:       missing,
		})
		if err != nil {
			return nil, false, err
		}
		picked = append(picked, pool...)
	}

	if len(picked) == 0 {
		return nil, false, invalid("no published questions available for " + sess.Exam + "/" + sess.Language)
	}

	items := make([]Item, 0, len(picked))
	for i, p := range picked {
		it := Item{
			ID:                uuid.NewString(),
			SessionID:         sessionID,
			Position:          i + 1,
			QuestionVersionID: p.VersionID,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_items (id, session_id, position, question_version_id)
			VALUES ($1,$2,$3,$4)`,
			it.ID, it.SessionID, it.Position, it.QuestionVersionID); err != nil {
			return nil, false, err
		}
		items = append(items, it)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	s.emit("ItemsGenerated", sessionID, map[string]any{"count": len(items), "include_seed": includeSeed})
	return items, true, nil
}
