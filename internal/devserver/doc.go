// Package devserver is an in-memory stand-in for the game test backend,
// for running gamecheck locally and for end-to-end tests.
//
// Submitted games are queued by priority and "launched" one at a time: each
// launch pushes game-loading progress and then a passing (or, with
// FailEvery, failing) result. Every state change is pushed on the event
// stream as a full test-update, using the same legacy gameStatus encoding
// as the real backend.
//
// # Endpoints
//
//   - GET /api/game-stats - full state and counts
//   - POST /api/game-catalogue - submit a game (rate limited per client)
//   - POST /api/reset-server - drop all games
//   - GET /api/server-status - always "online"
//   - GET /api/download-csv - finished tests as CSV
//   - GET /api/download-pdf - 501, no PDF rendering here
//   - GET /api/events - server-sent events
//
// # Rate limiting
//
// Submissions are limited per client address with a sliding window. Clients
// that keep submitting while limited are blocked, and each further block
// doubles in length.
package devserver
