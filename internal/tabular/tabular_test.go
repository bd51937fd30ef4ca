package tabular

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/adherence-scorer/internal/batch"
	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
	"github.com/spigell/adherence-scorer/internal/profile"
)

func TestReadCandidatesDropsRowsWithoutSlug(t *testing.T) {
	input := "\ufeffName, SLUG ,team\n" +
		"Ana Souza,ana-souza,core\n" +
		"No Slug,,core\n" +
		"  ,bruno\n" +
		"Carla,  carla-lima  \n"

	candidates, err := ReadCandidates(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []batch.Candidate{
		{Slug: "ana-souza", Name: "Ana Souza"},
		{Slug: "bruno", Name: "bruno"},
		{Slug: "carla-lima", Name: "Carla"},
	}, candidates)
}

func TestReadCandidatesWithoutNameColumn(t *testing.T) {
	candidates, err := ReadCandidates(strings.NewReader("slug\njdoe\n\n"))
	require.NoError(t, err)

	assert.Equal(t, []batch.Candidate{{Slug: "jdoe", Name: "jdoe"}}, candidates)
}

func TestReadCandidatesRequiresSlugColumn(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no slug column", input: "name,url\nAna,https://example.com\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCandidates(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, domainerrors.IsType(err, domainerrors.ErrTypeInvalidInput))
		})
	}
}

func TestResultsRoundTrip(t *testing.T) {
	results := []batch.Result{
		{Name: "Ana \"Dev\" Souza", Slug: "ana-souza", Score: 87.5, Reason: `Education compatible: engenharia found. | 2/3 desired skills met (e.g. "go", rust).`},
		{Name: "Bruno, Jr.", Slug: "bruno", Score: 0, Reason: batch.FailureReason},
		{Name: "Carla", Slug: "carla", Score: 33.3, Reason: "line one\nline two"},
		{Name: "Dani", Slug: "dani", Score: 100, Reason: ""},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	assert.True(t, strings.HasPrefix(buf.String(), "name,slug,score,reason\n"))
	assert.Contains(t, buf.String(), `"Ana ""Dev"" Souza"`)

	parsed, err := ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, len(results))

	for i := range results {
		assert.Equal(t, results[i].Name, parsed[i].Name)
		assert.Equal(t, results[i].Slug, parsed[i].Slug)
		assert.Equal(t, results[i].Score, parsed[i].Score)
		assert.Equal(t, results[i].Reason, parsed[i].Reason)
	}
}

func TestWriteResultsQuotesReason(t *testing.T) {
	results := []batch.Result{
		{Name: "Ana", Slug: "ana", Score: 30, Reason: "All mandatory skills met."},
		{Name: "Dani", Slug: "dani", Score: 0, Reason: ""},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	assert.Equal(t, "name,slug,score,reason\n"+
		"Ana,ana,30,\"All mandatory skills met.\"\n"+
		"Dani,dani,0,\"\"\n", buf.String())

	parsed, err := ReadResults(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "All mandatory skills met.", parsed[0].Reason)
	assert.Empty(t, parsed[1].Reason)
}

func TestReadResultsRejectsBadScore(t *testing.T) {
	_, err := ReadResults(strings.NewReader("name,slug,score,reason\nAna,ana,high,ok\n"))
	require.Error(t, err)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrTypeInvalidInput))
}

func TestFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "candidates.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("name,slug\nAna,ana\n"), 0o600))

	candidates, err := LoadCandidates(dataset)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	out := filepath.Join(dir, "results.csv")
	require.NoError(t, SaveResults(out, []batch.Result{{Name: "Ana", Slug: "ana", Score: 42.1}}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	parsed, err := ReadResults(f)
	require.NoError(t, err)
	assert.Equal(t, 42.1, parsed[0].Score)

	_, err = LoadCandidates(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestDumpProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	report := &batch.Report{
		RunID: "run-1",
		Results: []batch.Result{{
			Name:  "Ana",
			Slug:  "ana",
			Score: 70,
			Profile: &profile.Enriched{Profile: profile.Profile{
				Headline: "Java",
				Extra:    map[string]any{"location": "Recife"},
			}},
		}},
	}

	require.NoError(t, DumpProfiles(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Contains(t, string(data), `"location": "Recife"`)
}
