// Package stats exports run artifacts and renders run summaries.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"genalg/internal/model"
)

const (
	runFile        = "run.json"
	historyFile    = "history.csv"
	checkpointFile = "checkpoint.json"
)

var historyHeader = []string{
	"step",
	"current_max",
	"current_min",
	"current_mean",
	"total_max",
	"total_min",
	"mutations",
	"total_mutations",
	"crossovers",
	"total_crossovers",
	"improvements_through_crossover",
	"improvements_through_mutation",
	"improvements_through_both",
	"fittest_id",
}

type RunArtifacts struct {
	Run     model.RunRecord
	History []model.GenerationRecord
	// Checkpoint is written when it carries a population.
	Checkpoint model.Checkpoint
}

// WriteRunArtifacts writes the run record, its generation history as CSV, and
// the checkpoint into baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeHistoryFile(filepath.Join(runDir, historyFile), artifacts.History); err != nil {
		return "", err
	}
	if len(artifacts.Checkpoint.Population) > 0 {
		if err := writeJSON(filepath.Join(runDir, checkpointFile), artifacts.Checkpoint); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func writeHistoryFile(path string, history []model.GenerationRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteHistoryCSV(file, history); err != nil {
		return err
	}
	return file.Sync()
}

// WriteHistoryCSV writes one row per generation. Unset minimums are written
// as empty cells.
func WriteHistoryCSV(w io.Writer, history []model.GenerationRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(historyHeader); err != nil {
		return err
	}
	for _, record := range history {
		s := record.Statistics
		if err := writer.Write([]string{
			strconv.Itoa(s.Step),
			formatFloat(s.CurrentMax),
			formatFloat(s.CurrentMin),
			formatFloat(s.CurrentMean),
			formatFloat(s.TotalMax),
			formatFloat(s.TotalMin),
			strconv.Itoa(s.Mutations),
			strconv.Itoa(s.TotalMutations),
			strconv.Itoa(s.Crossovers),
			strconv.Itoa(s.TotalCrossovers),
			strconv.Itoa(s.ImprovementsThroughCrossover),
			strconv.Itoa(s.ImprovementsThroughMutation),
			strconv.Itoa(s.ImprovementsThroughBoth),
			record.FittestID,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadHistoryCSV parses the output of WriteHistoryCSV. RunID is left empty.
func ReadHistoryCSV(r io.Reader) ([]model.GenerationRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.GenerationRecord{}, nil
		}
		return nil, err
	}
	if len(header) != len(historyHeader) {
		return nil, fmt.Errorf("history header must have %d columns, got %d", len(historyHeader), len(header))
	}

	history := make([]model.GenerationRecord, 0, 128)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		record, err := parseHistoryRow(row)
		if err != nil {
			return nil, err
		}
		history = append(history, record)
	}
	return history, nil
}

func parseHistoryRow(row []string) (model.GenerationRecord, error) {
	p := rowParser{row: row}
	s := model.Statistics{
		Step:                         p.int(0),
		CurrentMax:                   p.float(1),
		CurrentMin:                   p.float(2),
		CurrentMean:                  p.float(3),
		TotalMax:                     p.float(4),
		TotalMin:                     p.float(5),
		Mutations:                    p.int(6),
		TotalMutations:               p.int(7),
		Crossovers:                   p.int(8),
		TotalCrossovers:              p.int(9),
		ImprovementsThroughCrossover: p.int(10),
		ImprovementsThroughMutation:  p.int(11),
		ImprovementsThroughBoth:      p.int(12),
	}
	if p.err != nil {
		return model.GenerationRecord{}, p.err
	}
	return model.GenerationRecord{Statistics: s, FittestID: row[13]}, nil
}

// rowParser keeps the first conversion error.
type rowParser struct {
	row []string
	err error
}

func (p *rowParser) int(i int) int {
	v, err := strconv.Atoi(p.row[i])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", historyHeader[i], err)
	}
	return v
}

func (p *rowParser) float(i int) float64 {
	if p.row[i] == "" {
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(p.row[i], 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", historyHeader[i], err)
	}
	return v
}

func formatFloat(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
