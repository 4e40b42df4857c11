package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/gamecheck/internal/dashboard"
	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/store"
)

// Column widths. The title column takes what is left.
const (
	providerWidth = 16
	categoryWidth = 14
	badgeWidth    = 9
	durationWidth = 8
	minTitleWidth = 16
)

// Styles holds the lipgloss styles used by the dashboard.
type Styles struct {
	Success    lipgloss.Style
	Failed     lipgloss.Style
	InProgress lipgloss.Style
	Queued     lipgloss.Style
	Unknown    lipgloss.Style
	Header     lipgloss.Style
	Dim        lipgloss.Style
}

// NewStyles builds styles for the given renderer, which decides whether
// colors are emitted.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Success:    r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Failed:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		InProgress: r.NewStyle().Foreground(lipgloss.Color("11")),
		Queued:     r.NewStyle().Foreground(lipgloss.Color("12")),
		Unknown:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Header:     r.NewStyle().Bold(true).Underline(true),
		Dim:        r.NewStyle().Faint(true),
	}
}

// Badge renders a fixed-width status label.
func (s Styles) Badge(st model.Status) string {
	var style lipgloss.Style
	label := strings.ToUpper(st.String())
	switch st {
	case model.StatusSuccess:
		style = s.Success
	case model.StatusFailed:
		style = s.Failed
	case model.StatusInProgress:
		style = s.InProgress
		label = "TESTING"
	case model.StatusQueued:
		style = s.Queued
	default:
		style = s.Unknown
	}
	return style.Render(PadOrTruncate(label, badgeWidth))
}

// Dashboard draws controller views to a Screen. It implements
// dashboard.Renderer.
type Dashboard struct {
	mu     sync.Mutex
	screen *Screen
	styles Styles
	filter store.FilterOptions
}

// NewDashboard creates a Dashboard that shows only items matching filter.
func NewDashboard(screen *Screen, filter store.FilterOptions) *Dashboard {
	return &Dashboard{
		screen: screen,
		styles: NewStyles(lipgloss.NewRenderer(screen.Writer())),
		filter: filter,
	}
}

// Render redraws the screen with v.
func (d *Dashboard) Render(v dashboard.View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.screen.Draw(d.Frame(v, d.screen.Width()))
}

// Frame lays out v in lines at most width characters wide (ignoring
// escape sequences).
func (d *Dashboard) Frame(v dashboard.View, width int) []string {
	shown := store.Filter(v.Items, d.filter)

	var lines []string
	lines = append(lines, d.headline(v, len(shown)))
	lines = append(lines, d.statsLine(v.Stats))

	if v.Loading != nil {
		lines = append(lines, "")
		lines = append(lines, loadingBox(*v.Loading, width)...)
	}

	lines = append(lines, "")
	lines = append(lines, d.table(shown, width)...)
	return lines
}

func (d *Dashboard) headline(v dashboard.View, shown int) string {
	line := fmt.Sprintf("gamecheck | stream: %s | games: %d", v.Conn, len(v.Items))
	if shown != len(v.Items) {
		line += fmt.Sprintf(" (showing %d)", shown)
	}
	return line
}

func (d *Dashboard) statsLine(s model.Stats) string {
	return fmt.Sprintf("%s %d   %s %d   %s %d",
		d.styles.Success.Render("success"), s.Success,
		d.styles.Failed.Render("failed"), s.Failed,
		d.styles.Queued.Render("pending"), s.Pending,
	)
}

func loadingBox(l model.Loading, width int) []string {
	if width > 60 {
		width = 60
	}
	name := l.GameName
	if name == "" {
		name = l.GameID
	}
	title := "Loading " + name
	if l.Provider != "" {
		title += " (" + l.Provider + ")"
	}
	content := []string{title, ProgressBar(l.Progress, width-4)}
	if l.Status != "" {
		content = append(content, l.Status)
	}
	return BoxWithContent(width, content)
}

func titleWidth(width int) int {
	w := width - providerWidth - categoryWidth - badgeWidth - durationWidth - 4
	if w < minTitleWidth {
		return minTitleWidth
	}
	return w
}

func (d *Dashboard) table(items []model.Item, width int) []string {
	if len(items) == 0 {
		return []string{d.styles.Dim.Render("no games")}
	}

	tw := titleWidth(width)
	header := strings.Join([]string{
		PadOrTruncate("GAME", tw),
		PadOrTruncate("PROVIDER", providerWidth),
		PadOrTruncate("CATEGORY", categoryWidth),
		PadOrTruncate("STATUS", badgeWidth),
		RightAlign("TIME", durationWidth),
	}, " ")

	lines := []string{d.styles.Header.Render(header)}
	for _, it := range items {
		row := strings.Join([]string{
			PadOrTruncate(it.Title(), tw),
			PadOrTruncate(it.ProviderOrDefault(), providerWidth),
			PadOrTruncate(it.CategoryOrDefault(), categoryWidth),
			d.styles.Badge(it.Status),
			RightAlign(FormatDuration(it.Timing.Duration.Seconds()), durationWidth),
		}, " ")
		lines = append(lines, row)

		if it.Status == model.StatusFailed && it.Error != nil && it.Error.Message != "" {
			msg := it.Error.Message
			if it.Error.Category != "" {
				msg = it.Error.Category + ": " + msg
			}
			lines = append(lines, d.styles.Dim.Render("  └ "+Truncate(msg, width-4)))
		}
	}
	return lines
}

// Print writes a single frame without clearing the screen.
func (d *Dashboard) Print(v dashboard.View) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, line := range d.Frame(v, d.screen.Width()) {
		if _, err := fmt.Fprintln(d.screen.Writer(), line); err != nil {
			return err
		}
	}
	return nil
}
