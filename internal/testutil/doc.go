// Package testutil provides shared test helpers for gamecheck.
//
// # Fixtures
//
// The fixtures.go file provides sample data:
//
//   - SampleItems() - a small collection covering every status
//   - SampleGameStatsJSON - a game-stats response body as the backend sends it
//   - SampleCatalogueCSV - a catalogue with eligible and ineligible rows
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupConfigDir(t, yaml) - creates a temp dir with .gamecheck/config.yaml
//   - WriteTestFile(t, base, path, content) - writes a file in a test dir
//   - MustMarshalJSON(t, v), MustUnmarshalJSON(t, data, v)
//
// # Assertions
//
// The assertions.go file provides collection assertions:
//
//   - AssertStats(t, items, want) - derived counts
//   - AssertStatus(t, items, id, status) - status of one item
//   - AssertIDs(t, items, ids...) - exact order of IDs
//   - AssertUniqueIDs(t, items) - no ID appears twice
//
// # Timeouts
//
// ContextWithTestDeadline and friends build contexts that end before the
// test binary's own deadline.
//
// testutil depends only on the model package so any package's internal tests
// can import it.
package testutil
