package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/kinest/internal/storage"
)

const (
	stateList = iota
	stateDetail
)

// Browser is a bubbletea model for paging through stored runs.
type Browser struct {
	store    *storage.Store
	runs     []storage.RunMetadata
	renderer *Renderer
	state    int
	cursor   int
	plot     bool
	width    int
	height   int
}

func NewBrowser(store *storage.Store, theme Theme) (Browser, error) {
	runs, err := store.List()
	if err != nil {
		return Browser{}, err
	}
	return Browser{
		store:    store,
		runs:     runs,
		renderer: NewRenderer(theme),
		width:    80,
		height:   24,
	}, nil
}

// RunBrowser opens the browser in the alternate screen and blocks until
// the user quits.
func RunBrowser(store *storage.Store, theme Theme) error {
	b, err := NewBrowser(store, theme)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	}
	return b, nil
}

func (b Browser) handleKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return b, tea.Quit
	}
	switch b.state {
	case stateList:
		switch msg.String() {
		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
			}
		case "down", "j":
			if b.cursor < len(b.runs)-1 {
				b.cursor++
			}
		case "enter", " ":
			if len(b.runs) > 0 {
				b.state, b.plot = stateDetail, false
			}
		}
	case stateDetail:
		switch msg.String() {
		case "esc", "backspace", "h":
			b.state = stateList
		case "p":
			b.plot = !b.plot
		}
	}
	return b, nil
}

func (b Browser) View() string {
	if b.state == stateDetail {
		return b.detailView()
	}
	return b.listView()
}

func (b Browser) listView() string {
	st := b.renderer.st
	var s strings.Builder
	s.WriteString(st.title.Render("kinest runs") + "\n\n")
	if len(b.runs) == 0 {
		s.WriteString(st.muted.Render("no runs found") + "\n")
	}
	for i, run := range b.runs {
		line := fmt.Sprintf("%-8s %-24s %s", run.Kind, run.Config, run.Timestamp.Format("2006-01-02 15:04:05"))
		if i == b.cursor {
			s.WriteString(st.selected.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}
	s.WriteString("\n" + st.muted.Render("↑/↓ move  enter open  q quit"))
	return s.String()
}

func (b Browser) detailView() string {
	st := b.renderer.st
	meta := b.runs[b.cursor]
	var s strings.Builder
	s.WriteString(b.renderer.Report(&meta) + "\n")
	if b.plot {
		s.WriteString(b.plots(&meta) + "\n")
	}
	s.WriteString(st.muted.Render("p toggle plots  esc back  q quit"))
	return s.String()
}

func (b Browser) plots(meta *storage.RunMetadata) string {
	width := max(b.width-12, 20)
	var out []string
	if len(meta.Curve) > 1 {
		if g, err := PlotCurve(meta.Curve, width, 8); err == nil {
			out = append(out, g)
		}
	}
	states, times, comps, err := b.store.LoadProfiles(meta.ID)
	if err == nil {
		if g, err := PlotProfiles(states, times, comps, width, 10); err == nil {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return b.renderer.st.muted.Render("nothing to plot")
	}
	return strings.Join(out, "\n\n")
}
