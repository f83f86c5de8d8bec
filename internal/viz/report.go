package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/kinest/internal/storage"
)

const barWidth = 20

// Renderer formats stored runs for the terminal.
type Renderer struct {
	st styles
}

func NewRenderer(theme Theme) *Renderer {
	return &Renderer{st: newStyles(theme)}
}

// Report renders every section the run carries.
func (r *Renderer) Report(meta *storage.RunMetadata) string {
	sections := []string{r.Header(meta)}
	if len(meta.Ranking) > 0 || len(meta.Unranked) > 0 {
		sections = append(sections, r.Ranking(meta))
	}
	if len(meta.Curve) > 0 {
		sections = append(sections, r.Selection(meta))
	}
	if len(meta.Parameters) > 0 {
		sections = append(sections, r.Fit(meta))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (r *Renderer) Header(meta *storage.RunMetadata) string {
	line := fmt.Sprintf("%s %s", r.st.title.Render(meta.Kind), r.st.value.Render(meta.Config))
	info := []string{}
	if meta.ID != "" {
		info = append(info, r.kv("run", meta.ID))
	}
	if !meta.Timestamp.IsZero() {
		info = append(info, r.kv("time", meta.Timestamp.Format("2006-01-02 15:04:05")))
	}
	info = append(info, r.kv("seed", fmt.Sprint(meta.Seed)))
	return line + "\n" + r.st.muted.Render(strings.Join(info, "  "))
}

func (r *Renderer) kv(label, value string) string {
	return r.st.label.Render(label+":") + " " + value
}

// Ranking lists parameters from most to least estimable with a bar
// proportional to each scaled residual.
func (r *Renderer) Ranking(meta *storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(r.st.header.Render("estimability ranking") + "\n")

	top := 0.0
	for _, e := range meta.Ranking {
		top = math.Max(top, e.Residual)
	}
	for _, e := range meta.Ranking {
		frac := 0.0
		if top > 0 {
			frac = e.Residual / top
		}
		fmt.Fprintf(&b, "%3d  %-10s %s  %s\n", e.Rank, e.Param, r.st.bar(frac, barWidth),
			r.st.muted.Render(fmt.Sprintf("score %.4g  residual %.4g", e.Score, e.Residual)))
	}
	if len(meta.Unranked) > 0 {
		fmt.Fprintf(&b, "%s %s\n", r.st.warn.Render("unranked:"), strings.Join(meta.Unranked, ", "))
	}
	if meta.Singular {
		b.WriteString(r.st.bad.Render("ranking stopped: ranked columns became linearly dependent") + "\n")
	}
	return r.st.panel.Render(strings.TrimRight(b.String(), "\n"))
}

// Selection shows the MSE curve and which parameters to estimate.
func (r *Renderer) Selection(meta *storage.RunMetadata) string {
	var b strings.Builder
	b.WriteString(r.st.header.Render("selection ("+meta.Criterion+")") + "\n")
	fmt.Fprintf(&b, "%-4s %-10s %12s %12s %12s\n", "K", "ADDED", "OBJECTIVE", "MSE", "SCORE")

	chosen := len(meta.Estimate)
	mses := make([]float64, len(meta.Curve))
	for i, pt := range meta.Curve {
		mses[i] = pt.MSE
		row := fmt.Sprintf("%-4d %-10s %12.5g %12.5g %12.4g", pt.K, pt.Added, pt.Objective, pt.MSE, pt.Score)
		if pt.K == chosen {
			row = r.st.selected.Render(row + "  <")
		}
		b.WriteString(row + "\n")
	}
	fmt.Fprintf(&b, "%s %s\n", r.st.label.Render("mse"), Sparkline(mses))
	b.WriteString(r.kv("estimate", r.st.good.Render(strings.Join(meta.Estimate, ", "))) + "\n")
	b.WriteString(r.kv("fix", r.st.warn.Render(strings.Join(meta.Fix, ", "))))
	return r.st.panel.Render(b.String())
}

// Fit lists the fitted parameter values and fit metrics.
func (r *Renderer) Fit(meta *storage.RunMetadata) string {
	var b strings.Builder
	title := "fit"
	if meta.Method != "" {
		title += " (" + meta.Method + ")"
	}
	b.WriteString(r.st.header.Render(title) + "\n")
	for _, name := range sortedNames(meta.Parameters) {
		fmt.Fprintf(&b, "  %-10s %s\n", name, r.st.value.Render(fmt.Sprintf("%.6g", meta.Parameters[name])))
	}
	fmt.Fprintf(&b, "%s  %s  %s", r.kv("objective", fmt.Sprintf("%.6g", meta.Objective)),
		r.kv("mse", fmt.Sprintf("%.6g", meta.MSE)), r.kv("n", fmt.Sprint(meta.NumData)))
	for _, name := range sortedNames(meta.Metrics) {
		fmt.Fprintf(&b, "\n%s", r.kv(name, fmt.Sprintf("%.6g", meta.Metrics[name])))
	}
	return r.st.panel.Render(b.String())
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
