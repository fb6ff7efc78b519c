package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	api "github.com/HelpUSA/usmle/internal/api/http"
	authmw "github.com/HelpUSA/usmle/internal/auth/middleware"
	"github.com/HelpUSA/usmle/internal/catalog"
	"github.com/HelpUSA/usmle/internal/db"
	"github.com/HelpUSA/usmle/internal/rbac"
	"github.com/HelpUSA/usmle/internal/session"
)

func newTestServer(t *testing.T, name string) (*httptest.Server, *sql.DB) {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	store := session.NewSQLStore(dbh, "sqlite")
	authSvc := authmw.NewAuthService("test-secret")

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.Identity(authSvc, true))

		pr.With(rbac.Require("session:create")).
			Post("/api/sessions", api.CreateSessionHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions", api.ListSessionsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}", api.GetSessionHandler(store))
		pr.With(rbac.Require("session:generate")).
			Post("/api/sessions/{sessionID}/items", api.GenerateItemsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}/items", api.ListItemsHandler(store))
		pr.With(rbac.Require("session:view")).
			Get("/api/sessions/{sessionID}/items/{itemID}/question", api.GetItemQuestionHandler(store))
		pr.With(rbac.Require("session:attempt")).
			Post("/api/sessions/{sessionID}/items/{itemID}/attempt", api.RecordAttemptHandler(store))
		pr.With(rbac.Require("session:submit")).
			Post("/api/sessions/{sessionID}/submit", api.SubmitSessionHandler(store))
		pr.With(rbac.Require("session:review")).
			Get("/api/sessions/{sessionID}/review", api.ReviewHandler(store))
		pr.With(rbac.Require("question:bookmark")).
			Post("/api/questions/{questionID}/bookmark", api.ToggleBookmarkHandler(store))
		pr.Post("/api/dev/seed-minimal", api.SeedMinimalHandler(dbh))
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, dbh
}

func call(t *testing.T, ts *httptest.Server, method, path, user string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, out
}

func seedItems(n int) []map[string]any {
	items := make([]map[string]any, 0, n)
	difficulties := []string{"easy", "medium", "hard"}
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"canonical_code":    "api-" + string(rune('a'+i)),
			"exam":              "step1",
			"language":          "en",
			"difficulty":        difficulties[i%3],
			"stem":              "a stem",
			"prompt":            "which one?",
			"explanation_short": "short",
			"explanation_long":  "long",
			"choices": []map[string]any{
				{"label": "A", "text": "right", "correct": true, "explanation": "because"},
				{"label": "B", "text": "wrong", "correct": false},
			},
		})
	}
	return items
}

func TestSessionFlow(t *testing.T) {
	ts, _ := newTestServer(t, "api_flow")

	status, body := call(t, ts, "POST", "/api/dev/seed-minimal", "u1", seedItems(9))
	if status != http.StatusCreated {
		t.Fatalf("seed: %d %s", status, body)
	}

	// Create a practice session.
	status, body = call(t, ts, "POST", "/api/sessions", "u1",
		map[string]any{"exam": "step1", "mode": "practice"})
	if status != http.StatusCreated {
		t.Fatalf("create session: %d %s", status, body)
	}
	var sess session.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatal(err)
	}

	// Generate items: 201 first, 200 on replay, same set both times.
	status, body = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/items", "u1",
		map[string]any{"count": 5})
	if status != http.StatusCreated {
		t.Fatalf("generate: %d %s", status, body)
	}
	var items []session.Item
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items, want 5", len(items))
	}

	status, body = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/items", "u1",
		map[string]any{"count": 2})
	if status != http.StatusOK {
		t.Fatalf("generate replay: %d %s", status, body)
	}
	var replay []session.Item
	if err := json.Unmarshal(body, &replay); err != nil {
		t.Fatal(err)
	}
	if len(replay) != 5 || replay[0].ID != items[0].ID {
		t.Fatalf("replay returned a different item set")
	}

	// The served question is stripped of answers and explanations.
	status, body = call(t, ts, "GET", "/api/sessions/"+sess.ID+"/items/"+items[0].ID+"/question", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("question: %d %s", status, body)
	}
	if strings.Contains(string(body), `"correct"`) || strings.Contains(string(body), "explanation") {
		t.Fatalf("mid-session question leaks answers: %s", body)
	}
	var pub catalog.PublicQuestion
	if err := json.Unmarshal(body, &pub); err != nil {
		t.Fatal(err)
	}
	if len(pub.Choices) != 2 {
		t.Fatalf("got %d choices", len(pub.Choices))
	}

	// Answer: 201 first, 200 on re-answer.
	status, body = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/items/"+items[0].ID+"/attempt", "u1",
		map[string]any{"choice_id": pub.Choices[0].ID})
	if status != http.StatusCreated {
		t.Fatalf("attempt: %d %s", status, body)
	}
	var att session.Attempt
	if err := json.Unmarshal(body, &att); err != nil {
		t.Fatal(err)
	}
	if att.Result != session.ResultCorrect && att.Result != session.ResultWrong {
		t.Fatalf("attempt not graded: %s", body)
	}

	status, _ = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/items/"+items[0].ID+"/attempt", "u1",
		map[string]any{"choice_id": pub.Choices[1].ID})
	if status != http.StatusOK {
		t.Fatalf("re-answer: %d", status)
	}

	// Review is gated until closure.
	status, _ = call(t, ts, "GET", "/api/sessions/"+sess.ID+"/review", "u1", nil)
	if status != http.StatusConflict {
		t.Fatalf("review before close: %d, want 409", status)
	}

	// Submit, then replay submit.
	status, body = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/submit", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("submit: %d %s", status, body)
	}
	var sum session.Summary
	if err := json.Unmarshal(body, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.TotalItems != 5 || sum.Answered != 1 || sum.Unanswered != 4 {
		t.Fatalf("summary = %+v", sum)
	}

	status, body = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/submit", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("submit replay: %d", status)
	}
	var sum2 session.Summary
	if err := json.Unmarshal(body, &sum2); err != nil {
		t.Fatal(err)
	}
	if sum2.ClosedAt == nil || sum.ClosedAt == nil || *sum2.ClosedAt != *sum.ClosedAt {
		t.Fatalf("submit replay moved closed_at: %v vs %v", sum2.ClosedAt, sum.ClosedAt)
	}

	// Attempts are frozen after closure.
	status, _ = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/items/"+items[0].ID+"/attempt", "u1",
		map[string]any{"choice_id": pub.Choices[0].ID})
	if status != http.StatusConflict {
		t.Fatalf("attempt after close: %d, want 409", status)
	}

	// Review now works and includes answers.
	status, body = call(t, ts, "GET", "/api/sessions/"+sess.ID+"/review", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("review: %d %s", status, body)
	}
	var rv session.Review
	if err := json.Unmarshal(body, &rv); err != nil {
		t.Fatal(err)
	}
	if len(rv.Items) != 5 {
		t.Fatalf("review has %d items", len(rv.Items))
	}
	if rv.Items[0].CorrectChoice == nil {
		t.Fatal("review omits the correct choice")
	}
	if !strings.Contains(string(body), "explanation") {
		t.Fatal("review omits explanations")
	}
}

func TestAuthAndOwnership(t *testing.T) {
	ts, _ := newTestServer(t, "api_auth")

	status, body := call(t, ts, "POST", "/api/dev/seed-minimal", "u1", seedItems(3))
	if status != http.StatusCreated {
		t.Fatalf("seed: %d %s", status, body)
	}

	// No identity at all.
	status, _ = call(t, ts, "GET", "/api/sessions", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("anonymous request: %d, want 401", status)
	}

	status, body = call(t, ts, "POST", "/api/sessions", "alice",
		map[string]any{"exam": "step1", "mode": "practice"})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	var sess session.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		t.Fatal(err)
	}

	// Another learner cannot see or drive the session.
	status, _ = call(t, ts, "GET", "/api/sessions/"+sess.ID, "mallory", nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign get: %d, want 403", status)
	}
	status, _ = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/submit", "mallory", nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign submit: %d, want 403", status)
	}

	status, _ = call(t, ts, "GET", "/api/sessions/no-such-id", "alice", nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing session: %d, want 404", status)
	}

	// Bad enum on create is a 400.
	status, _ = call(t, ts, "POST", "/api/sessions", "alice",
		map[string]any{"exam": "step7", "mode": "practice"})
	if status != http.StatusBadRequest {
		t.Fatalf("bad exam: %d, want 400", status)
	}

	// Empty sessions cannot be closed.
	status, _ = call(t, ts, "POST", "/api/sessions/"+sess.ID+"/submit", "alice", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("empty submit: %d, want 400", status)
	}
}

func TestBookmarkRoute(t *testing.T) {
	ts, dbh := newTestServer(t, "api_bookmark")

	status, body := call(t, ts, "POST", "/api/dev/seed-minimal", "u1", seedItems(1))
	if status != http.StatusCreated {
		t.Fatalf("seed: %d %s", status, body)
	}
	var questionID string
	if err := dbh.QueryRow(`SELECT id FROM questions LIMIT 1`).Scan(&questionID); err != nil {
		t.Fatal(err)
	}

	status, body = call(t, ts, "POST", "/api/questions/"+questionID+"/bookmark", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("bookmark: %d %s", status, body)
	}
	var out struct {
		Bookmarked bool `json:"bookmarked"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Bookmarked {
		t.Error("first toggle should set the bookmark")
	}

	status, body = call(t, ts, "POST", "/api/questions/"+questionID+"/bookmark", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("bookmark: %d %s", status, body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Bookmarked {
		t.Error("second toggle should clear the bookmark")
	}

	status, _ = call(t, ts, "POST", "/api/questions/no-such-question/bookmark", "u1", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown question: %d, want 404", status)
	}
}
