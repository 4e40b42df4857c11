package model

import "time"

// Loading is the launch progress of a game the backend is currently testing.
type Loading struct {
	TestID    string    `json:"test_id"`
	GameID    string    `json:"game_id"`
	GameName  string    `json:"game_name,omitempty"`
	GameImage string    `json:"game_image,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Status    string    `json:"status,omitempty"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether the launch has reached 100%.
func (l Loading) Complete() bool {
	return l.Progress >= 100
}

// ClampProgress bounds p to [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
