// Package model defines the game records tracked by gamecheck and the derived
// aggregate counts.
package model

import (
	"net/url"
	"strings"
	"time"
	"unicode"
)

// Screenshot capture phases reported by the backend.
const (
	PhaseInitial = "initial"
	PhaseSuccess = "success"
	PhaseError   = "error"
	PhaseIframe  = "iframe"
)

// Phases lists the screenshot phases in display order.
var Phases = []string{PhaseInitial, PhaseSuccess, PhaseError, PhaseIframe}

// Defaults used when a record omits provider or category.
const (
	DefaultProvider = "Unknown"
	DefaultCategory = "General"
	UnknownTitle    = "Unknown Game"
)

// ErrorInfo is the failure reported by the backend for a test run.
type ErrorInfo struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// Timing holds when a test run ended and how long it took.
type Timing struct {
	EndTime  time.Time     `json:"end_time,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Item is a single game record.
//
// Name, DisplayName, CatalogueName, CatalogueGameID, Provider, Category,
// Image, Popularity, TableID, Featured and Published come from the import.
// Status, Error, Timing, SubmissionID and Screenshots are owned by the
// backend.
type Item struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	CatalogueName   string `json:"catalogue_name,omitempty"`
	CatalogueGameID string `json:"catalogue_game_id,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Category        string `json:"category,omitempty"`
	Image           string `json:"image,omitempty"`
	Popularity      int    `json:"popularity,omitempty"`
	TableID         string `json:"table_id,omitempty"`
	Featured        bool   `json:"featured,omitempty"`
	Published       bool   `json:"published,omitempty"`

	Status       Status            `json:"status"`
	Error        *ErrorInfo        `json:"error,omitempty"`
	Timing       Timing            `json:"timing"`
	SubmissionID string            `json:"submission_id,omitempty"`
	Screenshots  map[string]string `json:"screenshots,omitempty"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	if it.Error != nil {
		e := *it.Error
		out.Error = &e
	}
	if it.Screenshots != nil {
		out.Screenshots = make(map[string]string, len(it.Screenshots))
		for k, v := range it.Screenshots {
			out.Screenshots[k] = v
		}
	}
	return out
}

// Eligible reports whether the item can be submitted to the backend.
func (it Item) Eligible() bool {
	return strings.TrimSpace(it.CatalogueGameID) != ""
}

// Title returns the best available display title.
func (it Item) Title() string {
	if it.DisplayName != "" {
		return it.DisplayName
	}
	if it.Name != "" {
		return it.Name
	}
	if name := NameFromURL(it.ID); name != UnknownTitle {
		return name
	}
	return UnknownTitle
}

// ProviderOrDefault returns the provider, or "Unknown" when empty.
func (it Item) ProviderOrDefault() string {
	if it.Provider == "" {
		return DefaultProvider
	}
	return it.Provider
}

// CategoryOrDefault returns the category, or "General" when empty.
func (it Item) CategoryOrDefault() string {
	if it.Category == "" {
		return DefaultCategory
	}
	return it.Category
}

// NameFromURL derives a title from the last path segment of a URL, turning
// dashes and underscores into spaces and capitalising each word.
// Returns "Unknown Game" if raw is not an absolute URL with a path.
func NameFromURL(raw string) string {
	if raw == "" {
		return UnknownTitle
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return UnknownTitle
	}

	var last string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			last = p
		}
	}
	if last == "" {
		return UnknownTitle
	}

	last = strings.NewReplacer("-", " ", "_", " ").Replace(last)
	words := strings.Split(last, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
