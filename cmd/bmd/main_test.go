package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"zebrabmd/adapters/api"
	"zebrabmd/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLists(t *testing.T) {
	f, err := parseFloats("0, 0.5,2 ,")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 2}, f)

	n, err := parseInts("1,2,3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, n)

	_, err = parseFloats("0,x")
	assert.Error(t, err)
	_, err = parseInts("1.5")
	assert.Error(t, err)
}

func TestModelsCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"models"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "logistic"))
}

func TestFitCmd(t *testing.T) {
	t.Setenv("BMD_MODELS", "logistic")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"fit", "--chemical", "C1", "--endpoint", "MO24",
		"--doses", "0,0.1,0.5,1.5,5", "--affected", "0,1,1,10,15", "--total", "26,31,16,18,17"})
	require.NoError(t, root.Execute())

	var got api.UnitResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "C1", got.ChemicalID)
	require.Len(t, got.Predictions, 1)
	assert.Equal(t, "logistic", got.Predictions[0].Model)
}

func TestFitCmd_InvalidSeries(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"fit", "--doses", "1,2", "--affected", "0,1", "--total", "5,5"})
	assert.Error(t, root.Execute())
}

func TestRunCmd(t *testing.T) {
	t.Setenv("BMD_MODELS", "logistic,quantal_linear")
	dir := t.TempDir()

	input := filepath.Join(dir, "input.csv")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, testkit.WriteCSV(f, testkit.Batch()))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out")
	root := newRootCmd()
	root.SetArgs([]string{"run", "-i", input, "-o", out,
		"--db-driver", "sqlite", "--db", filepath.Join(dir, "results.db"),
		"--plots", "--report"})
	require.NoError(t, root.Execute())

	for _, name := range []string{"bmd_summary.csv", "model_predictions.csv", "dose_response.csv", "fitted_curve.csv", "report.html"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.FileExists(t, filepath.Join(dir, "results.db"))

	summary, err := os.ReadFile(filepath.Join(out, "bmd_summary.csv"))
	require.NoError(t, err)
	// header plus four valid units; the unit without a control is skipped
	assert.Len(t, strings.Split(strings.TrimSpace(string(summary)), "\n"), 5)
}
