package market

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Date,Open,High,Low,Close
2024-03-01,10,11,9,10.5
2024-03-04,10.5,12,10,11
2024-03-05,11,11.5,10.5,11.2
`

func TestReadBars(t *testing.T) {
	series, err := ReadBars(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.InDelta(t, 10.0, series[0].Open, 1e-9)
	assert.InDelta(t, 11.0, series[0].High, 1e-9)
	assert.InDelta(t, 9.0, series[0].Low, 1e-9)
	assert.InDelta(t, 10.5, series[0].Close, 1e-9)
	assert.NoError(t, series.Validate())
}

func TestReadBarsSkipsBadLinesAndDuplicates(t *testing.T) {
	in := `date,open,high,low,close
2024-03-01,10,11,9,10.5
not-a-date,1,2,3,4
2024-03-04,10.5,12,10
2024-03-01,99,99,99,99
2024-03-04,10.5,12,10,11
2024-03-05,x,11.5,10.5,11.2
`
	series, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, series, 2)
	// Duplicate dates keep the first row seen.
	assert.InDelta(t, 10.5, series[0].Close, 1e-9)
	assert.InDelta(t, 11.0, series[1].Close, 1e-9)
}

func TestReadBarsSortsOutOfOrderRows(t *testing.T) {
	in := "2024-03-05,1,1,1,1\n2024-03-01,2,2,2,2\n2024-03-04,3,3,3,3\n"
	series, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.NoError(t, series.Validate())
	assert.InDelta(t, 2.0, series[0].Close, 1e-9)
	assert.InDelta(t, 1.0, series[2].Close, 1e-9)
}

func TestReadBarsDateLayouts(t *testing.T) {
	in := "20240301,1,1,1,1\n2024-03-04T00:00:00Z,2,2,2,2\n"
	series, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, series, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), series[1].Date)
}

func TestReadBarsEmptyInput(t *testing.T) {
	_, err := ReadBars(strings.NewReader("date,open,high,low,close\n"))
	assert.Error(t, err)
}

func TestLoadFileDerivesTicker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aapl.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	ticker, series, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", ticker)
	assert.Len(t, series, 3)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAA.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BBB.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	hist, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Len(t, hist, 2)
	assert.Contains(t, hist, "AAA")
	assert.Contains(t, hist, "BBB")
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)
}
