package testutil

import (
	"time"

	"github.com/thruflo/gamecheck/internal/model"
)

// SampleGameStatsJSON is a game-stats body using the backend's legacy status
// values. Its stats block deliberately disagrees with the items.
const SampleGameStatsJSON = `{
  "stats": {"successCount": 3, "failCount": 0, "pendingCount": 0},
  "gameStatus": [
    {"id": "starburst", "displayName": "Starburst", "providerName": "NetEnt", "category": "Slots", "gameStatus": true, "duration": 2500, "testId": "t-1"},
    {"id": "mega-moolah", "catalogueGameId": "cg-mm", "providerName": "Microgaming", "gameStatus": false, "error": "iframe never loaded", "errorCategory": "timeout"},
    {"id": "book-of-dead", "providerName": "Play'n GO", "gameStatus": "testing"},
    {"id": "gonzo", "gameStatus": "in-progress"}
  ]
}`

// SampleCatalogueCSV has two submittable rows around one without a
// catalogueGameId.
const SampleCatalogueCSV = "Name,displayName,catalogueGameId,providerName,category,popularity,featured,Published On\n" +
	"starburst,Starburst,cg-sb,NetEnt,Slots,95,true,2024-05-01\n" +
	"no-id,No Catalogue ID,,NetEnt,Slots,10,false,\n" +
	"gonzo,Gonzo's Quest,cg-gq,NetEnt,,80,,\n"

// SampleItems returns one item per status, in a fixed order.
func SampleItems() []model.Item {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Item{
		{
			ID: "starburst", DisplayName: "Starburst", CatalogueGameID: "cg-sb",
			Provider: "NetEnt", Category: "Slots", Status: model.StatusSuccess,
			Timing:       model.Timing{EndTime: end, Duration: 2500 * time.Millisecond},
			SubmissionID: "t-1",
		},
		{
			ID: "mega-moolah", CatalogueGameID: "cg-mm", Provider: "Microgaming",
			Status: model.StatusFailed,
			Error:  &model.ErrorInfo{Message: "iframe never loaded", Category: "timeout"},
			Timing: model.Timing{EndTime: end.Add(-time.Minute)},
		},
		{ID: "book-of-dead", Provider: "Play'n GO", Status: model.StatusInProgress},
		{ID: "gonzo", CatalogueGameID: "cg-gq", Status: model.StatusQueued},
		{ID: "new-game", Status: model.StatusUnknown},
	}
}
