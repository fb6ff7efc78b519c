package rbac

// Simple default policy. Ownership checks live in the session engine; these
// permissions only gate which verbs a role may reach at all.
var RolePermissions = map[string][]string{
	"student": {
		"session:create",
		"session:view",
		"session:generate",
		"session:attempt",
		"session:submit",
		"session:review",
		"question:bookmark",
	},
	"admin": {
		"*", // everything, including dev seed import
	},
}
