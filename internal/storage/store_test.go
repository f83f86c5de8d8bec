package storage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/ranking"
	"github.com/san-kum/kinest/internal/selection"
	"gonum.org/v1/gonum/mat"
)

func sampleRun() *Run {
	return &Run{
		Kind:   "analyze",
		Config: "series/abc",
		Seed:   42,
		Ranking: &ranking.Result{
			Ranked:    []string{"k2", "k1"},
			Scores:    map[string]float64{"k1": 3, "k2": 7},
			Residuals: map[string]float64{"k1": 0.5, "k2": 7},
		},
		Selection: &selection.Selection{
			Estimate:  []string{"k2"},
			Fix:       []string{"k1"},
			Criterion: "wu",
			K:         1,
			Curve: selection.Curve{
				{K: 1, Free: []string{"k2"}, Objective: 4, MSE: 0.1},
				{K: 2, Free: []string{"k2", "k1"}, Objective: 3.9, MSE: 0.09},
			},
			Scores: []float64{-0.01, 0},
		},
		Results: &estim.Results{
			Times:      []float64{0, 1},
			Components: []string{"A", "B"},
			Z:          mat.NewDense(2, 2, []float64{1, 0, 0.5, 0.5}),
			P:          map[string]float64{"k1": 1, "k2": 2},
			Objective:  3.9,
			MSE:        0.09,
			NumData:    4,
			Metrics:    map[string]float64{"wsse": 3.9},
			Stats:      estim.SolverStats{Method: "lbfgs"},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(sampleRun())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Config != "series/abc" {
		t.Errorf("expected config 'series/abc', got '%s'", meta.Config)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if len(meta.Ranking) != 2 || meta.Ranking[0].Param != "k2" || meta.Ranking[0].Rank != 1 {
		t.Errorf("unexpected ranking %+v", meta.Ranking)
	}
	if len(meta.Curve) != 2 || meta.Curve[1].Added != "k1" {
		t.Errorf("unexpected curve %+v", meta.Curve)
	}
	if meta.Method != "lbfgs" || meta.Parameters["k2"] != 2 {
		t.Errorf("unexpected fit metadata %+v", meta)
	}

	states, times, comps, err := st.LoadProfiles(runID)
	if err != nil {
		t.Fatalf("load profiles failed: %v", err)
	}
	if len(times) != 2 || len(states) != 2 || len(comps) != 2 {
		t.Fatalf("expected 2 rows and 2 components, got %d/%d/%d", len(times), len(states), len(comps))
	}
	if states[1][1] != 0.5 {
		t.Errorf("expected B(1)=0.5, got %f", states[1][1])
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", runs, err)
	}

	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.Save(&Run{Kind: "rank", Config: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestExport(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	runID, err := st.Save(sampleRun())
	if err != nil {
		t.Fatal(err)
	}

	data, err := st.Export(runID)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, data); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["kind"] != "analyze" {
		t.Errorf("kind = %v", decoded["kind"])
	}
	if _, ok := decoded["profiles"]; !ok {
		t.Error("profiles missing from export")
	}
}
