package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/thruflo/gamecheck/internal/model"
)

// MessageType identifies the type of envelope on the push channel.
type MessageType string

const (
	// MessageTypeTestUpdate carries full stats and the per-game status list.
	MessageTypeTestUpdate MessageType = "test-update"
	// MessageTypeGameLoading carries launch progress for one game.
	MessageTypeGameLoading MessageType = "game-loading"
	// MessageTypeReconnected is emitted locally after the channel reopens,
	// so consumers can re-fetch the state they missed. It never comes from
	// the backend.
	MessageTypeReconnected MessageType = "reconnected"
)

// Envelope is one message on the push channel.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnmarshalEnvelope deserializes an Envelope from JSON bytes.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("envelope has no type")
	}
	return &e, nil
}

// NewEnvelope creates an Envelope with the given type and data.
func NewEnvelope(msgType MessageType, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope data: %w", err)
	}
	return &Envelope{Type: msgType, Data: raw}, nil
}

// MustNewEnvelope creates an Envelope, panicking on error.
// Use only when the data is known to be serializable.
func MustNewEnvelope(msgType MessageType, data any) *Envelope {
	e, err := NewEnvelope(msgType, data)
	if err != nil {
		panic(err)
	}
	return e
}

// Marshal serializes the envelope to JSON bytes.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// TestUpdateData returns the payload of a test-update envelope.
func (e *Envelope) TestUpdateData() (*TestUpdate, error) {
	if e.Type != MessageTypeTestUpdate {
		return nil, fmt.Errorf("envelope is not a test-update: %s", e.Type)
	}
	var data TestUpdate
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test-update data: %w", err)
	}
	return &data, nil
}

// GameLoadingData returns the payload of a game-loading envelope.
func (e *Envelope) GameLoadingData() (*GameLoading, error) {
	if e.Type != MessageTypeGameLoading {
		return nil, fmt.Errorf("envelope is not a game-loading: %s", e.Type)
	}
	var data GameLoading
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game-loading data: %w", err)
	}
	return &data, nil
}

// TestUpdate is the payload of test-update and of GET game-stats.
type TestUpdate struct {
	Stats      *model.Stats `json:"stats,omitempty"`
	GameStatus []GameStatus `json:"gameStatus"`
}

// Items converts the reported games to model items.
func (u TestUpdate) Items() []model.Item {
	items := make([]model.Item, 0, len(u.GameStatus))
	for _, g := range u.GameStatus {
		items = append(items, g.Item())
	}
	return items
}

// GameStatus is a game record as reported by the backend.
type GameStatus struct {
	ID                string          `json:"id"`
	Name              string          `json:"name,omitempty"`
	DisplayName       string          `json:"displayName,omitempty"`
	CatalogueGameID   string          `json:"catalogueGameId,omitempty"`
	ProviderName      string          `json:"providerName,omitempty"`
	Provider          string          `json:"provider,omitempty"`
	Category          string          `json:"category,omitempty"`
	Image             string          `json:"image,omitempty"`
	Published         bool            `json:"published,omitempty"`
	GameStatus        json.RawMessage `json:"gameStatus,omitempty"`
	Error             Text            `json:"error,omitempty"`
	ErrorCategory     string          `json:"errorCategory,omitempty"`
	EndTime           Timestamp       `json:"endTime,omitempty"`
	DurationMillis    float64         `json:"duration,omitempty"`
	TestID            string          `json:"testId,omitempty"`
	InitialScreenshot string          `json:"initialScreenshot,omitempty"`
	SuccessScreenshot string          `json:"successScreenshot,omitempty"`
	ErrorScreenshot   string          `json:"errorScreenshot,omitempty"`
	IframeScreenshot  string          `json:"iframeScreenshot,omitempty"`
}

// Item converts the backend record to a model item.
func (g GameStatus) Item() model.Item {
	it := model.Item{
		ID:              g.ID,
		Name:            g.Name,
		DisplayName:     g.DisplayName,
		CatalogueGameID: g.CatalogueGameID,
		Provider:        g.ProviderName,
		Category:        g.Category,
		Image:           g.Image,
		Published:       g.Published,
		Status:          model.ParseLegacyStatus(g.GameStatus),
		Timing: model.Timing{
			EndTime:  time.Time(g.EndTime),
			Duration: time.Duration(g.DurationMillis * float64(time.Millisecond)),
		},
		SubmissionID: g.TestID,
	}
	if it.Provider == "" {
		it.Provider = g.Provider
	}
	if g.Error != "" || g.ErrorCategory != "" {
		it.Error = &model.ErrorInfo{Message: string(g.Error), Category: g.ErrorCategory}
	}

	shots := map[string]string{
		model.PhaseInitial: g.InitialScreenshot,
		model.PhaseSuccess: g.SuccessScreenshot,
		model.PhaseError:   g.ErrorScreenshot,
		model.PhaseIframe:  g.IframeScreenshot,
	}
	for phase, ref := range shots {
		if ref == "" {
			continue
		}
		if it.Screenshots == nil {
			it.Screenshots = make(map[string]string)
		}
		it.Screenshots[phase] = ref
	}
	return it
}

// GameLoading is the payload of a game-loading envelope.
type GameLoading struct {
	TestID    string  `json:"testId"`
	GameID    string  `json:"gameId"`
	Progress  float64 `json:"progress"`
	Status    string  `json:"status,omitempty"`
	GameName  string  `json:"gameName,omitempty"`
	GameImage string  `json:"gameImage,omitempty"`
	Provider  string  `json:"provider,omitempty"`
}

// Loading converts the payload to a model value.
func (g GameLoading) Loading() model.Loading {
	return model.Loading{
		TestID:    g.TestID,
		GameID:    g.GameID,
		GameName:  g.GameName,
		GameImage: g.GameImage,
		Provider:  g.Provider,
		Status:    g.Status,
		Progress:  model.ClampProgress(int(g.Progress)),
	}
}

// GamePayload describes a game in a submission.
type GamePayload struct {
	ProviderName string `json:"providerName,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	Image        string `json:"image,omitempty"`
}

// SubmitRequest is the body of POST game-catalogue.
type SubmitRequest struct {
	CatalogueGameID string       `json:"catalogueGameId"`
	Priority        int          `json:"priority"`
	Game            *GamePayload `json:"game,omitempty"`
}

// NewSubmitRequest builds the submission for an imported item.
func NewSubmitRequest(it model.Item, priority int) SubmitRequest {
	return SubmitRequest{
		CatalogueGameID: it.CatalogueGameID,
		Priority:        priority,
		Game: &GamePayload{
			ProviderName: it.Provider,
			DisplayName:  it.DisplayName,
			Name:         it.Name,
			Category:     it.Category,
			Image:        it.Image,
		},
	}
}

// SubmitResponse is the reply to POST game-catalogue.
type SubmitResponse struct {
	TestID   string          `json:"testId,omitempty"`
	GameInfo json.RawMessage `json:"gameInfo,omitempty"`
}

// Acknowledged reports whether the backend returned a test ID.
func (r *SubmitResponse) Acknowledged() bool {
	return r != nil && r.TestID != ""
}

// resetResponse is the reply to POST reset-server.
type resetResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// serverStatusResponse is the reply to GET server-status.
type serverStatusResponse struct {
	Status string `json:"status"`
}

// Text decodes a JSON string, null, or an object with a "message" field.
// Any other value is kept as its raw JSON text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	case len(data) > 0 && data[0] == '{':
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &obj); err == nil && obj.Message != "" {
			*t = Text(obj.Message)
			return nil
		}
	}
	*t = Text(data)
	return nil
}

// Timestamp decodes an RFC 3339 string or a number of milliseconds since the
// Unix epoch. null and "" decode to the zero time.
type Timestamp time.Time

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*ts = Timestamp{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*ts = Timestamp(t.UTC())
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	*ts = Timestamp(time.UnixMilli(int64(ms)).UTC())
	return nil
}

// MarshalJSON encodes the timestamp as RFC 3339, or null when zero.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	t := time.Time(ts)
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
