package testutil

// DefaultRunID is used by scenarios that do not set run_id.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run ID every time, so repeated runs
// of one scenario write comparable journals.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id.
// An empty id falls back to DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID. Implements trace.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
