// Package tabular reads candidate datasets and writes scoring results as CSV.
package tabular

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spigell/adherence-scorer/internal/batch"
	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
)

const (
	slugColumn = "slug"
	nameColumn = "name"
)

// ResultHeader is the header row of exported results.
var ResultHeader = []string{"name", "slug", "score", "reason"}

// ReadCandidates parses a dataset with a header row. The slug column is
// required, name is optional and other columns are ignored. Rows without a
// slug are dropped.
func ReadCandidates(r io.Reader) ([]batch.Candidate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, domainerrors.InvalidInput("dataset is empty", nil)
	}
	if err != nil {
		return nil, domainerrors.InvalidInput("read dataset header", err)
	}

	columns := indexColumns(header)
	slugIdx, ok := columns[slugColumn]
	if !ok {
		return nil, domainerrors.InvalidInput(fmt.Sprintf("dataset has no %q column", slugColumn), nil)
	}
	nameIdx, hasName := columns[nameColumn]

	var candidates []batch.Candidate
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domainerrors.InvalidInput("read dataset row", err)
		}

		slug := field(record, slugIdx)
		if slug == "" {
			continue
		}

		name := ""
		if hasName {
			name = field(record, nameIdx)
		}

		candidates = append(candidates, batch.NewCandidate(slug, name))
	}

	return candidates, nil
}

// LoadCandidates reads the dataset stored at path.
func LoadCandidates(path string) ([]batch.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return ReadCandidates(f)
}

// WriteResults writes results with ResultHeader. Scores are printed in their
// shortest exact form so they survive a round trip. The reason column is always
// quote-wrapped, other fields only when they need it.
func WriteResults(w io.Writer, results []batch.Result) error {
	bw := bufio.NewWriter(w)

	if err := writeRow(bw, ResultHeader, false); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{r.Name, r.Slug, strconv.FormatFloat(r.Score, 'f', -1, 64), r.Reason}
		if err := writeRow(bw, record, true); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// writeRow writes one CSV record. quoteLast forces quotes around the final field.
func writeRow(w *bufio.Writer, record []string, quoteLast bool) error {
	for i, field := range record {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}

		force := quoteLast && i == len(record)-1
		if !force && !fieldNeedsQuotes(field) {
			if _, err := w.WriteString(field); err != nil {
				return err
			}
			continue
		}

		if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}

	return w.WriteByte('\n')
}

// fieldNeedsQuotes follows the rules of csv.Writer.
func fieldNeedsQuotes(field string) bool {
	if field == "" {
		return false
	}
	if field == `\.` || strings.ContainsAny(field, ",\"\r\n") {
		return true
	}
	return field[0] == ' ' || field[0] == '\t'
}

// SaveResults writes results to path, replacing any existing file.
func SaveResults(path string, results []batch.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}

	if err := WriteResults(f, results); err != nil {
		f.Close()
		return fmt.Errorf("write results: %w", err)
	}

	return f.Close()
}

// ReadResults parses a file produced by WriteResults. Only the exported
// columns are recovered.
func ReadResults(r io.Reader) ([]batch.Result, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, domainerrors.InvalidInput("read results", err)
	}
	if len(records) == 0 {
		return nil, domainerrors.InvalidInput("results file is empty", nil)
	}

	columns := indexColumns(records[0])
	for _, name := range ResultHeader {
		if _, ok := columns[name]; !ok {
			return nil, domainerrors.InvalidInput(fmt.Sprintf("results file has no %q column", name), nil)
		}
	}

	results := make([]batch.Result, 0, len(records)-1)
	for i, record := range records[1:] {
		score, err := strconv.ParseFloat(strings.TrimSpace(rawField(record, columns["score"])), 64)
		if err != nil {
			return nil, domainerrors.InvalidInput(fmt.Sprintf("row %d has an invalid score", i+2), err)
		}

		results = append(results, batch.Result{
			Name:   rawField(record, columns["name"]),
			Slug:   rawField(record, columns["slug"]),
			Score:  score,
			Reason: rawField(record, columns["reason"]),
		})
	}

	return results, nil
}

// DumpProfiles writes the full results, enriched profiles included, as indented JSON.
func DumpProfiles(path string, report *batch.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}

	return nil
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	return columns
}

func field(record []string, idx int) string {
	return strings.TrimSpace(rawField(record, idx))
}

func rawField(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}
