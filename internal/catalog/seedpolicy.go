package catalog

// IncludeSeed decides whether non-production seed content participates in
// item selection. Seed material stays out unless the caller opted in, or the
// catalog has no published production content at all for the requested
// exam/language (otherwise a fresh environment could never generate a session).
func IncludeSeed(optIn, hasProduction bool) bool {
	if optIn {
		return true
	}
	return !hasProduction
}
