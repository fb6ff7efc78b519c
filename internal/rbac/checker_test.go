package rbac

import "testing"

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has("student", "session:create") {
		t.Error("student denied session:create")
	}
	if c.Has("student", "users:list") {
		t.Error("student granted users:list")
	}
	if !c.Has("admin", "session:create") || !c.Has("admin", "users:list") {
		t.Error("admin wildcard not honored")
	}
	if c.Has("nobody", "session:view") {
		t.Error("unknown role granted a permission")
	}
}

func TestCheckerAnyAll(t *testing.T) {
	c := NewChecker(map[string][]string{
		"grader":  {"session:review", "session:view"},
		"janitor": {"session:*"},
	})

	if !c.Any("grader", "session:submit", "session:view") {
		t.Error("Any missed a held permission")
	}
	if c.Any("grader", "session:submit", "question:bookmark") {
		t.Error("Any granted unheld permissions")
	}
	if !c.All("grader", "session:review", "session:view") {
		t.Error("All denied a fully held set")
	}
	if c.All("grader", "session:review", "session:submit") {
		t.Error("All granted a partially held set")
	}

	// Prefix wildcards cover the whole verb family.
	if !c.Has("janitor", "session:submit") {
		t.Error("prefix wildcard not honored")
	}
	if c.Has("janitor", "question:bookmark") {
		t.Error("prefix wildcard leaked across families")
	}
}
