package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/smpsim/internal/storage"
)

type ExportData struct {
	Run      string                  `json:"run,omitempty"`
	Title    string                  `json:"title"`
	Scenario *storage.ScenarioRecord `json:"scenario,omitempty"`
	Units    map[string]string       `json:"units"`
	Times    []float64               `json:"times"`
	Series   map[string][]float64    `json:"series"`
}

func NewExportData(runID string, rec *storage.ScenarioRecord, s *storage.Series) ExportData {
	data := ExportData{
		Run:      runID,
		Title:    s.Title,
		Scenario: rec,
		Units:    make(map[string]string, len(s.Names)),
		Times:    s.Times,
		Series:   make(map[string][]float64, len(s.Names)),
	}
	for _, name := range s.Names {
		data.Units[name] = s.Unit(name)
		data.Series[name], _ = s.Column(name)
	}
	return data
}

func EncodeJSON(w io.Writer, data ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return EncodeJSON(file, data)
}

func ExportJSONStdout(data ExportData) error {
	return EncodeJSON(os.Stdout, data)
}
