package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	RunMetadata
	Components []string    `json:"components,omitempty"`
	Times      []float64   `json:"times,omitempty"`
	Profiles   [][]float64 `json:"profiles,omitempty"`
}

// Export bundles a stored run's metadata and trajectories.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	data := &ExportData{RunMetadata: *meta}

	states, times, comps, err := s.LoadProfiles(runID)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	data.Profiles = states
	data.Times = times
	data.Components = comps
	return data, nil
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
