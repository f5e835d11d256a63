package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourismcli/internal/config"
	"tourismcli/internal/shared/testutil"
)

func init() {
	color.NoColor = true
}

// writeConfig maps the Purpose and Transport fixture sheets and returns the
// config path and output directory
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	doc := `source:
  version: 2024-annual
  sheets:
    - sheet: Purpose
      dimension: purpose
    - sheet: Transport
      dimension: transport
output:
  dir: ` + out + `
  formats: [csv]
logging:
  level: error
telemetry:
  service_name: tourismcli-test
  metrics: false
`
	path := filepath.Join(dir, "tourism.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path, out
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoot_ShowsHelp(t *testing.T) {
	out, _, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "inspect")
}

func TestRun_PersistsCleanWorkbook(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	workbook := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())

	out, _, err := execute(t, "run", workbook, "--config", cfgPath, "--format", "csv,snappy,parquet")
	require.NoError(t, err)
	assert.Contains(t, out, "passed_clean")
	assert.Contains(t, out, "20 records")
	assert.Contains(t, out, "wrote")

	for _, name := range []string{config.ObservationsCSV, config.ObservationsSnappy, config.ObservationsParquet, config.ValidationReportJSON, config.DataDictionaryJSON} {
		_, statErr := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	workbook := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())

	out, _, err := execute(t, "run", workbook, "--config", cfgPath, "--dry-run", "--fill-gaps")
	require.NoError(t, err)
	assert.Contains(t, out, "1 values gap filled")
	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_NonCleanNeedsOverride(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	transport := testutil.TransportSheet()
	workbook := testutil.WriteWorkbook(t, "release.xlsx", testutil.SheetFixture{
		Name: "Purpose",
		Rows: [][]any{
			{"Quarter", "Visits (thousands)", nil},
			{nil, "Holiday", "Business"},
			{"2023 Q4", 2500, -5},
		},
	}, transport)

	out, _, err := execute(t, "run", workbook, "--config", cfgPath, "--show-issues")
	require.NoError(t, err)
	assert.Contains(t, out, "passed_with_warnings")
	assert.Contains(t, out, "metric_value_non_negative")
	assert.Contains(t, out, "not persisted")
	_, statErr := os.Stat(filepath.Join(outDir, config.ObservationsCSV))
	assert.True(t, os.IsNotExist(statErr))

	out, _, err = execute(t, "run", workbook, "--config", cfgPath, "--accept-non-clean")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	_, statErr = os.Stat(filepath.Join(outDir, config.ObservationsCSV))
	assert.NoError(t, statErr)
}

func TestRun_BatchWithFailure(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	good := testutil.WriteWorkbook(t, "good.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())
	bad := testutil.WriteWorkbook(t, "bad.xlsx", testutil.PurposeSheet())

	out, _, err := execute(t, "run", good, bad, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 runs failed")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Transport")

	_, statErr := os.Stat(filepath.Join(outDir, "good", config.ObservationsCSV))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(outDir, "bad"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInspect(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	workbook := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet())

	out, _, err := execute(t, "inspect", workbook, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SHEET")
	assert.Regexp(t, `Purpose\s+\d+\s+\d+\s+\d+\s+true\s+purpose`, out)
	assert.Contains(t, out, "1 configured sheet(s) not in this workbook")

	_, stderr, err := execute(t, "inspect", filepath.Join(t.TempDir(), "absent.xlsx"), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, stderr, "cannot read workbook")
}

func TestSchema(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, _, err := execute(t, "schema", "--config", cfgPath)
	require.NoError(t, err)
	var dict map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dict))
	assert.Contains(t, dict, "fields")

	out, _, err = execute(t, "schema", "--config", cfgPath, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "fields:")

	_, _, err = execute(t, "schema", "--config", cfgPath, "--format", "toml")
	assert.EqualError(t, err, "invalid format")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gap_fill:\n  max_run: 99\n"), 0o644))

	_, stderr, err := execute(t, "schema", "--config", path)
	assert.EqualError(t, err, "invalid configuration")
	assert.Contains(t, stderr, "MaxRun")
}

func TestRun_Directory(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	releases := t.TempDir()
	for _, name := range []string{"2024-q1.xlsx", "2024-q2.xlsx"} {
		src := testutil.WriteWorkbook(t, name, testutil.PurposeSheet(), testutil.TransportSheet())
		require.NoError(t, os.Rename(src, filepath.Join(releases, name)))
	}

	out, _, err := execute(t, "run", releases, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "processing 2 workbook(s)")
	for _, stem := range []string{"2024-q1", "2024-q2"} {
		_, statErr := os.Stat(filepath.Join(outDir, stem, config.ObservationsCSV))
		assert.NoError(t, statErr, stem)
	}
}

func TestRun_SameWorkbookNameInTwoDirectories(t *testing.T) {
	cfgPath, outDir := writeConfig(t)
	first := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())
	second := testutil.WriteWorkbook(t, "release.xlsx", testutil.PurposeSheet(), testutil.TransportSheet())
	require.NotEqual(t, filepath.Dir(first), filepath.Dir(second))

	_, _, err := execute(t, "run", first, second, "--config", cfgPath)
	require.NoError(t, err)

	for _, sub := range []string{"release", "release-2"} {
		_, statErr := os.Stat(filepath.Join(outDir, sub, config.ObservationsCSV))
		assert.NoError(t, statErr, sub)
	}
}

func TestOutputDirs(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"single workbook", []string{"a/release.xlsx"}, []string{"out"}},
		{"distinct stems", []string{"a/q1.xlsx", "a/q2.xlsm"}, []string{"out/q1", "out/q2"}},
		{"repeated stem", []string{"a/release.xlsx", "b/release.xlsx", "c/Release.xlsm"}, []string{"out/release", "out/release-2", "out/Release-3"}},
		{"suffix already taken", []string{"a/r.xlsx", "a/r-2.xlsx", "b/r.xlsx"}, []string{"out/r", "out/r-2", "out/r-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := make([]string, len(tt.want))
			for i, w := range tt.want {
				want[i] = filepath.FromSlash(w)
			}
			assert.Equal(t, want, outputDirs("out", tt.paths))
		})
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "tourismcli v")
	assert.Contains(t, out, "commit:")
}
