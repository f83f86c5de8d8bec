package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/kinest/internal/estim"
	"github.com/san-kum/kinest/internal/ranking"
	"github.com/san-kum/kinest/internal/selection"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RankEntry struct {
	Param    string  `json:"param"`
	Rank     int     `json:"rank"`
	Score    float64 `json:"score"`
	Residual float64 `json:"residual"`
}

type CurvePoint struct {
	K         int     `json:"k"`
	Added     string  `json:"added"`
	Objective float64 `json:"objective"`
	MSE       float64 `json:"mse"`
	Score     float64 `json:"score"`
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Config     string             `json:"config"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Method     string             `json:"method,omitempty"`
	Criterion  string             `json:"criterion,omitempty"`
	Ranking    []RankEntry        `json:"ranking,omitempty"`
	Unranked   []string           `json:"unranked,omitempty"`
	Singular   bool               `json:"singular,omitempty"`
	Estimate   []string           `json:"estimate,omitempty"`
	Fix        []string           `json:"fix,omitempty"`
	Curve      []CurvePoint       `json:"curve,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Objective  float64            `json:"objective"`
	MSE        float64            `json:"mse"`
	NumData    int                `json:"num_data"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Run is everything a command produced. Any field may be nil.
type Run struct {
	Kind      string
	Config    string
	Seed      int64
	Ranking   *ranking.Result
	Selection *selection.Selection
	Results   *estim.Results
}

// Metadata flattens the run into its stored form.
func (r *Run) Metadata(id string) RunMetadata {
	meta := RunMetadata{
		ID:        id,
		Kind:      r.Kind,
		Config:    r.Config,
		Timestamp: time.Now(),
		Seed:      r.Seed,
	}
	if rk := r.Ranking; rk != nil {
		for i, name := range rk.Ranked {
			meta.Ranking = append(meta.Ranking, RankEntry{
				Param:    name,
				Rank:     i + 1,
				Score:    rk.Scores[name],
				Residual: rk.Residuals[name],
			})
		}
		meta.Unranked = rk.Unranked
		meta.Singular = rk.Singular
	}
	if sel := r.Selection; sel != nil {
		meta.Criterion = sel.Criterion
		meta.Estimate = sel.Estimate
		meta.Fix = sel.Fix
		for i, pt := range sel.Curve {
			cp := CurvePoint{K: pt.K, Objective: pt.Objective, MSE: pt.MSE}
			if len(pt.Free) > 0 {
				cp.Added = pt.Free[len(pt.Free)-1]
			}
			if i < len(sel.Scores) {
				cp.Score = sel.Scores[i]
			}
			meta.Curve = append(meta.Curve, cp)
		}
	}
	if res := r.Results; res != nil {
		meta.Method = res.Stats.Method
		meta.Parameters = res.P
		meta.Objective = res.Objective
		meta.MSE = res.MSE
		meta.NumData = res.NumData
		meta.Metrics = res.Metrics
	}
	return meta
}

// Save writes metadata.json plus profiles.csv when the run carries
// trajectories, and returns the run id.
func (s *Store) Save(run *Run) (string, error) {
	runID := fmt.Sprintf("%s_%s_%d", run.Kind, sanitize(run.Config), time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := run.Metadata(runID)
	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if run.Results == nil || run.Results.Z == nil {
		return runID, nil
	}
	if err := writeProfiles(filepath.Join(runDir, "profiles.csv"), run.Results); err != nil {
		return "", err
	}
	return runID, nil
}

func sanitize(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == '/' || c == ' ' || c == os.PathSeparator {
			out[i] = '-'
		}
	}
	if len(out) == 0 {
		return "run"
	}
	return string(out)
}

func writeProfiles(path string, res *estim.Results) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"time"}, res.Components...)
	if err := w.Write(header); err != nil {
		return err
	}
	rows, cols := res.Z.Dims()
	for i := 0; i < rows; i++ {
		row := []string{strconv.FormatFloat(res.Times[i], 'f', 6, 64)}
		for j := 0; j < cols; j++ {
			row = append(row, strconv.FormatFloat(res.Z.At(i, j), 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadProfiles returns the stored trajectories as rows of component
// values, the times and the component names.
func (s *Store) LoadProfiles(runID string) ([][]float64, []float64, []string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "profiles.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil, nil
	}

	components := records[0][1:]
	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			state = append(state, val)
		}
		states = append(states, state)
	}
	return states, times, components, nil
}
