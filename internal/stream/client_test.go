package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/testutil"
)

const testBase = "http://backend.test/api"

func newMockClient(t *testing.T, opts ...ClientOption) (*Client, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	opts = append([]ClientOption{WithHTTPClient(&http.Client{Transport: transport})}, opts...)
	return NewClient(testBase, opts...), transport
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("creates client with defaults", func(t *testing.T) {
		t.Parallel()

		client := NewClient("http://localhost:3000/api/")
		assert.Equal(t, "http://localhost:3000/api", client.BaseURL())
		assert.Equal(t, 5*time.Second, client.reconnectInterval)
		assert.Equal(t, 30*time.Second, client.requestTimeout)
		assert.Equal(t, 0, client.maxReconnectAttempts)
		assert.Equal(t, StateDisconnected, client.State())
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		custom := &http.Client{}
		client := NewClient(testBase,
			WithHTTPClient(custom),
			WithRequestTimeout(time.Second),
			WithReconnectInterval(2*time.Second),
			WithMaxReconnectAttempts(4),
		)
		assert.Same(t, custom, client.httpClient)
		assert.Equal(t, time.Second, client.requestTimeout)
		assert.Equal(t, 2*time.Second, client.reconnectInterval)
		assert.Equal(t, 4, client.maxReconnectAttempts)
	})
}

func TestGetGameStats(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
		httpmock.NewStringResponder(http.StatusOK, `{
			"stats": {"successCount": 1, "failCount": 1, "pendingCount": 0},
			"gameStatus": [
				{"id": "a", "displayName": "Alpha", "gameStatus": true, "testId": "t-1",
				 "successScreenshot": "/shots/a.png", "endTime": "2026-05-01T10:00:00Z", "duration": 2500},
				{"id": "b", "gameStatus": false, "error": "timeout", "errorCategory": "network", "endTime": 1767225600000}
			]
		}`))

	update, err := client.GetGameStats(context.Background())
	require.NoError(t, err)

	require.NotNil(t, update.Stats)
	assert.Equal(t, model.Stats{Success: 1, Failed: 1}, *update.Stats)

	items := update.Items()
	require.Len(t, items, 2)

	assert.Equal(t, "Alpha", items[0].DisplayName)
	assert.Equal(t, model.StatusSuccess, items[0].Status)
	assert.Equal(t, "t-1", items[0].SubmissionID)
	assert.Equal(t, "/shots/a.png", items[0].Screenshots[model.PhaseSuccess])
	assert.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), items[0].Timing.EndTime)
	assert.Equal(t, 2500*time.Millisecond, items[0].Timing.Duration)
	assert.Nil(t, items[0].Error)

	assert.Equal(t, model.StatusFailed, items[1].Status)
	require.NotNil(t, items[1].Error)
	assert.Equal(t, "timeout", items[1].Error.Message)
	assert.Equal(t, "network", items[1].Error.Category)
	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), items[1].Timing.EndTime)

	assert.Equal(t, 1, transport.GetCallCountInfo()["GET "+testBase+"/game-stats"])
}

func TestTestUpdateItemsOnValue(t *testing.T) {
	t.Parallel()

	snapshot := func() TestUpdate {
		return TestUpdate{GameStatus: []GameStatus{{ID: "a"}, {ID: "b"}}}
	}

	items := snapshot().Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
	assert.Empty(t, TestUpdate{}.Items())
}

func TestGetGameStatsLegacyStatuses(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
		httpmock.NewStringResponder(http.StatusOK, testutil.SampleGameStatsJSON))

	update, err := client.GetGameStats(context.Background())
	require.NoError(t, err)

	items := update.Items()
	testutil.AssertIDs(t, items, "starburst", "mega-moolah", "book-of-dead", "gonzo")
	testutil.AssertStatus(t, items, "starburst", model.StatusSuccess)
	testutil.AssertStatus(t, items, "mega-moolah", model.StatusFailed)
	testutil.AssertStatus(t, items, "book-of-dead", model.StatusInProgress)
	testutil.AssertStatus(t, items, "gonzo", model.StatusQueued)

	// The reported counts are kept as sent; derived counts come from items.
	assert.Equal(t, model.Stats{Success: 3}, *update.Stats)
	testutil.AssertStats(t, items, model.Stats{Success: 1, Failed: 1, Pending: 2})
}

func TestGetGameStatsErrors(t *testing.T) {
	t.Parallel()

	t.Run("non-2xx is a status error", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
			httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

		_, err := client.GetGameStats(context.Background())
		require.Error(t, err)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
		assert.Equal(t, "boom", statusErr.Body)
		assert.Equal(t, KindStatus, ErrorKind(err))
	})

	t.Run("bad json is a decode error", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
			httpmock.NewStringResponder(http.StatusOK, "<html>"))

		_, err := client.GetGameStats(context.Background())
		require.Error(t, err)
		assert.Equal(t, KindDecode, ErrorKind(err))
	})

	t.Run("transport failure is wrapped", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
			httpmock.NewErrorResponder(errors.New("connection refused")))

		_, err := client.GetGameStats(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "game-stats: request failed")
	})
}

func TestSubmitGame(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)

	var got SubmitRequest
	var requestID string
	transport.RegisterResponder(http.MethodPost, testBase+"/game-catalogue",
		func(req *http.Request) (*http.Response, error) {
			requestID = req.Header.Get("X-Request-ID")
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
			return httpmock.NewStringResponse(http.StatusOK, `{"testId":"t-42","gameInfo":{"name":"x"}}`), nil
		})

	it := model.Item{
		ID:              "Book of Dead",
		Name:            "Book of Dead",
		DisplayName:     "Book of Dead",
		CatalogueGameID: "cat-7",
		Provider:        "Play n Go",
		Category:        "Slots",
		Image:           "bod.png",
	}
	resp, err := client.SubmitGame(context.Background(), NewSubmitRequest(it, 1))
	require.NoError(t, err)

	assert.True(t, resp.Acknowledged())
	assert.Equal(t, "t-42", resp.TestID)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, "cat-7", got.CatalogueGameID)
	assert.Equal(t, 1, got.Priority)
	require.NotNil(t, got.Game)
	assert.Equal(t, "Play n Go", got.Game.ProviderName)
	assert.Equal(t, "bod.png", got.Game.Image)
}

func TestSubmitGameWithoutAck(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/game-catalogue",
		httpmock.NewStringResponder(http.StatusAccepted, `{}`))

	resp, err := client.SubmitGame(context.Background(), SubmitRequest{CatalogueGameID: "c"})
	require.NoError(t, err)
	assert.False(t, resp.Acknowledged())

	transport.RegisterResponder(http.MethodPost, testBase+"/game-catalogue",
		httpmock.NewStringResponder(http.StatusOK, ``))
	resp, err = client.SubmitGame(context.Background(), SubmitRequest{CatalogueGameID: "c"})
	require.NoError(t, err, "empty body is not an error")
	assert.False(t, resp.Acknowledged())
}

func TestRetry(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)

	var raw map[string]any
	transport.RegisterResponder(http.MethodPost, testBase+"/game-catalogue",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&raw))
			return httpmock.NewStringResponse(http.StatusOK, `{"testId":"t-2"}`), nil
		})

	_, err := client.Retry(context.Background(), "cat-9")
	require.NoError(t, err)
	assert.Equal(t, "cat-9", raw["catalogueGameId"])
	assert.Equal(t, float64(RetryPriority), raw["priority"])
	assert.NotContains(t, raw, "game")
}

func TestResetServer(t *testing.T) {
	t.Parallel()

	t.Run("returns backend message", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodPost, testBase+"/reset-server",
			httpmock.NewStringResponder(http.StatusOK, `{"message":"Queue cleared"}`))

		msg, err := client.ResetServer(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Queue cleared", msg)
	})

	t.Run("defaults message", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodPost, testBase+"/reset-server",
			httpmock.NewStringResponder(http.StatusOK, `{}`))

		msg, err := client.ResetServer(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Server reset successfully", msg)
	})

	t.Run("surfaces backend error", func(t *testing.T) {
		t.Parallel()

		client, transport := newMockClient(t)
		transport.RegisterResponder(http.MethodPost, testBase+"/reset-server",
			httpmock.NewStringResponder(http.StatusConflict, `{"error":"tests running"}`))

		_, err := client.ResetServer(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tests running")
	})
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/server-status",
		httpmock.NewStringResponder(http.StatusOK, `{"status":"maintenance"}`))

	status, err := client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "maintenance", status)

	transport.RegisterResponder(http.MethodGet, testBase+"/server-status",
		httpmock.NewStringResponder(http.StatusOK, `{}`))
	status, err = client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", status)

	transport.RegisterResponder(http.MethodGet, testBase+"/server-status",
		httpmock.NewErrorResponder(errors.New("down")))
	status, err = client.ServerStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, "offline", status)
}

func TestDownload(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/download-csv",
		httpmock.NewStringResponder(http.StatusOK, "id,status\na,success\n"))
	transport.RegisterResponder(http.MethodGet, testBase+"/download-pdf",
		httpmock.NewStringResponder(http.StatusNotFound, "no history"))

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), DownloadCSV, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "id,status\na,success\n", buf.String())

	_, err = client.Download(context.Background(), DownloadPDF, io.Discard)
	require.Error(t, err)
	assert.Equal(t, KindStatus, ErrorKind(err))

	_, err = client.Download(context.Background(), "xls", io.Discard)
	require.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	client, transport := newMockClient(t, WithRequestTimeout(50*time.Millisecond))
	transport.RegisterResponder(http.MethodGet, testBase+"/game-stats",
		func(req *http.Request) (*http.Response, error) {
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	_, err := client.GetGameStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, ErrorKind(err))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, KindTimeout, ErrorKind(context.DeadlineExceeded))
	assert.Equal(t, KindConnection, ErrorKind(errStreamClosed))
	assert.Equal(t, KindOther, ErrorKind(errors.New("x")))
	assert.Equal(t, KindDecode, ErrorKind(&DecodeError{Endpoint: "e", Err: errors.New("bad")}))
}
