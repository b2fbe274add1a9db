package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"irpsolver/internal/model"
)

func TestRunGenerateProducesAValidInstance(t *testing.T) {
	out := filepath.Join(t.TempDir(), "instance.json")

	code := runGenerate(out, 42, 10, 4, 2, 1)
	require.Equal(t, 0, code)

	inst, err := model.LoadInstance(out)
	require.NoError(t, err)
	require.Equal(t, 4, inst.PeriodNum)
	require.Equal(t, 11, inst.NodeNum())
	require.Equal(t, 2, inst.VehicleNum())
}

func TestRunGenerateRejectsNonPositiveCounts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "instance.json")
	require.NotEqual(t, 0, runGenerate(out, 1, 0, 4, 1, 1))
}

func TestRunConvertRoundTripsLegacyText(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.txt")
	outPath := filepath.Join(dir, "instance.json")

	legacy := "2 2 20\n0 0 0 100 5 0\n1 10 0 20 30 0 5 1\n"
	require.NoError(t, os.WriteFile(legacyPath, []byte(legacy), 0o644))

	require.Equal(t, 0, runConvert(legacyPath, outPath, 1, 1))

	inst, err := model.LoadInstance(outPath)
	require.NoError(t, err)
	require.Equal(t, 2, inst.NodeNum())
}
