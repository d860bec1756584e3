package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgricker/genomeflow/internal/output"
	"github.com/bgricker/genomeflow/internal/report"
)

func writeResult(t *testing.T, dir, sample string, n50 int64) {
	t.Helper()
	var m report.Metrics
	m.Set("contigs", 3)
	m.Set("total_length", int64(3000))
	m.Set("n50", n50)
	res := report.WorkflowResult{
		RunID:  "run-" + sample,
		Sample: sample,
		Mode:   "assembly",
		Stages: []report.StageResult{{Stage: "assembly", Status: report.StatusPassed, Metrics: m}},
	}
	res.Finalize()
	sampleDir := filepath.Join(dir, sample)
	require.NoError(t, os.MkdirAll(sampleDir, 0o755))
	require.NoError(t, output.WriteResults(filepath.Join(sampleDir, output.ResultsFile), res))
}

func newTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	cfg.Now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return NewServer(cfg), cfg.Dir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, dir := newTestServer(t, Config{})
	rec := get(t, s, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, dir, body["dir"])
}

func TestResults(t *testing.T) {
	s, dir := newTestServer(t, Config{})
	writeResult(t, dir, "ecoli", 1000)
	writeResult(t, dir, "abaumannii", 2000)

	rec := get(t, s, "/api/results")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []report.WorkflowResult `json:"results"`
		Summary report.Summary          `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "abaumannii", body.Results[0].Sample)
	assert.Equal(t, 2, body.Summary.Passed)
}

func TestResultsEmptyDirIsEmptyList(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := get(t, s, "/api/results")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[],"summary":{"samples":0,"total_stages":0,"passed":0,"failed":0,"skipped":0,"duration_ms":0,"exit_code":0}}`, rec.Body.String())
}

func TestResultsUnknownSample(t *testing.T) {
	s, dir := newTestServer(t, Config{})
	writeResult(t, dir, "ecoli", 1000)

	rec := get(t, s, "/api/results?sample=nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableFromResults(t *testing.T) {
	s, dir := newTestServer(t, Config{})
	writeResult(t, dir, "ecoli", 1000)

	rec := get(t, s, "/api/table")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Columns []string            `json:"columns"`
		Rows    []map[string]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sample", body.Columns[0])
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "1000", body.Rows[0]["n50"])
}

func TestTableFromFile(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "samples.tsv")
	require.NoError(t, os.WriteFile(tablePath, []byte("sample\tspecies\nS1\tE. coli\n"), 0o644))
	s, _ := newTestServer(t, Config{Table: tablePath})

	rec := get(t, s, "/api/table")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"columns":["sample","species"],"rows":[{"sample":"S1","species":"E. coli"}]}`, rec.Body.String())
}

func TestReport(t *testing.T) {
	s, dir := newTestServer(t, Config{Title: "Outbreak"})
	writeResult(t, dir, "ecoli", 1000)
	writeResult(t, dir, "abaumannii", 2000)

	rec := get(t, s, "/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "# Outbreak\n")
	assert.Contains(t, rec.Body.String(), "| abaumannii |")

	rec = get(t, s, "/report?sample=ecoli")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Outbreak: ecoli\n")
}

func TestMetrics(t *testing.T) {
	s, dir := newTestServer(t, Config{})
	writeResult(t, dir, "ecoli", 1000)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `genomeflow_assembly_n50_bases{sample="ecoli"} 1000`)
}
