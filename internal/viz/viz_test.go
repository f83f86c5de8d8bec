package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/kinest/internal/storage"
)

func sampleMeta() *storage.RunMetadata {
	return &storage.RunMetadata{
		ID:     "analyze_series-abc_1",
		Kind:   "analyze",
		Config: "series/abc",
		Seed:   7,
		Ranking: []storage.RankEntry{
			{Param: "k2", Rank: 1, Score: 9, Residual: 9},
			{Param: "k1", Rank: 2, Score: 4, Residual: 0.5},
		},
		Unranked:  []string{"k3"},
		Singular:  true,
		Criterion: "wu",
		Estimate:  []string{"k2"},
		Fix:       []string{"k1", "k3"},
		Curve: []storage.CurvePoint{
			{K: 1, Added: "k2", Objective: 10, MSE: 0.2},
			{K: 2, Added: "k1", Objective: 9.9, MSE: 0.19},
		},
		Parameters: map[string]float64{"k1": 1.5, "k2": 0.25},
		Method:     "lbfgs",
		Metrics:    map[string]float64{"max_abs": 0.01},
	}
}

func TestReport(t *testing.T) {
	out := NewRenderer(ThemeMinimal).Report(sampleMeta())
	for _, want := range []string{
		"estimability ranking", "k2", "unranked:", "k3", "linearly dependent",
		"selection (wu)", "estimate:", "fit (lbfgs)", "0.25", "max_abs",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReport_SkipsEmptySections(t *testing.T) {
	out := NewRenderer(ThemeDefault).Report(&storage.RunMetadata{Kind: "estimate", Config: "x"})
	if strings.Contains(out, "ranking") || strings.Contains(out, "selection") {
		t.Errorf("unexpected sections:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 1}); got != "▁█" {
		t.Errorf("Sparkline = %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "▁▁▁" {
		t.Errorf("flat Sparkline = %q", got)
	}
	if Sparkline(nil) != "" {
		t.Error("expected empty sparkline")
	}
}

func TestPlots(t *testing.T) {
	if _, err := PlotCurve(nil, 40, 5); err == nil {
		t.Error("expected error for empty curve")
	}
	g, err := PlotCurve(sampleMeta().Curve, 40, 5)
	if err != nil || !strings.Contains(g, "mse vs K") {
		t.Errorf("PlotCurve = %q, %v", g, err)
	}

	states := [][]float64{{1, 0}, {0.5, 0.5}, {0.2, 0.8}}
	g, err = PlotProfiles(states, []float64{0, 1, 2}, []string{"A", "B"}, 40, 5)
	if err != nil || !strings.Contains(g, "A B") {
		t.Errorf("PlotProfiles = %q, %v", g, err)
	}
	if _, err := PlotProfiles(nil, nil, nil, 40, 5); err == nil {
		t.Error("expected error for empty profiles")
	}
}

func TestGetTheme(t *testing.T) {
	if GetTheme("minimal").Name != "minimal" {
		t.Error("minimal theme not found")
	}
	if GetTheme("nope").Name != "default" {
		t.Error("unknown theme should fall back to default")
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowser(t *testing.T) {
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	for _, cfg := range []string{"a", "b"} {
		if _, err := st.Save(&storage.Run{Kind: "rank", Config: cfg}); err != nil {
			t.Fatal(err)
		}
	}

	b, err := NewBrowser(st, ThemeMinimal)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.View(), "kinest runs") {
		t.Fatalf("unexpected list view:\n%s", b.View())
	}

	step := func(msg tea.Msg) {
		m, _ := b.Update(msg)
		b = m.(Browser)
	}
	step(key("down"))
	step(key("down"))
	if b.cursor != 1 {
		t.Errorf("cursor = %d, want 1", b.cursor)
	}
	step(key("enter"))
	if b.state != stateDetail {
		t.Fatal("enter did not open the run")
	}
	step(key("p"))
	if !b.plot || !strings.Contains(b.View(), "nothing to plot") {
		t.Errorf("plot toggle failed:\n%s", b.View())
	}
	step(key("esc"))
	if b.state != stateList {
		t.Error("esc did not return to the list")
	}

	if _, cmd := b.Update(key("q")); cmd == nil {
		t.Error("q should quit")
	}
}
