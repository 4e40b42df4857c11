package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the launch-test state of a game.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusInProgress
	StatusSuccess
	StatusFailed
)

var statusNames = map[Status]string{
	StatusUnknown:    "unknown",
	StatusQueued:     "queued",
	StatusInProgress: "in_progress",
	StatusSuccess:    "success",
	StatusFailed:     "failed",
}

// String returns the canonical name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsTerminal reports whether the status ends a test run.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// rank orders statuses along the forward path. Unknown and Queued share the
// entry rank; Success and Failed share the terminal rank.
func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusSuccess, StatusFailed:
		return 2
	default:
		return 0
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the status on the
// forward path unknown/queued -> in_progress -> success/failed.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.rank() >= s.rank()
}

// Bucket returns the aggregate bucket for the status: success, failed, or
// pending for everything else.
func (s Status) Bucket() string {
	switch s {
	case StatusSuccess:
		return BucketSuccess
	case StatusFailed:
		return BucketFailed
	default:
		return BucketPending
	}
}

// Aggregate buckets.
const (
	BucketSuccess = "success"
	BucketFailed  = "failed"
	BucketPending = "pending"
)

// ParseStatus parses a canonical status name.
func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if strings.EqualFold(s, name) {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status: %q", s)
}

// ParseLegacyStatus maps the backend's gameStatus encoding onto a Status.
//
//	true            -> success
//	false           -> failed
//	"testing"       -> in_progress
//	"in-progress"   -> queued
//	canonical names -> themselves
//	null / absent / anything else -> unknown
//
// The backend reuses "in-progress" for games waiting in its queue; games
// actually being launched are reported as "testing".
func ParseLegacyStatus(raw json.RawMessage) Status {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return StatusUnknown
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return StatusSuccess
		}
		return StatusFailed
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return StatusUnknown
	}
	switch strings.ToLower(s) {
	case "testing":
		return StatusInProgress
	case "in-progress":
		return StatusQueued
	}
	st, err := ParseStatus(s)
	if err != nil {
		return StatusUnknown
	}
	return st
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both canonical names and the legacy backend encoding.
func (s *Status) UnmarshalJSON(data []byte) error {
	*s = ParseLegacyStatus(data)
	return nil
}
