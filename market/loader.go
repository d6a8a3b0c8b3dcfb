package market

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"
)

// dateLayouts accepted in bar files, tried in order.
var dateLayouts = []string{"2006-01-02", "20060102", time.RFC3339}

// LoadDir reads every daily-bar file in dir into a History. The ticker is
// taken from the file name: AAPL.csv, AAPL.csv.xz or AAPL.zip. Zip bundles
// may contain several ticker CSVs and are expanded in place.
func LoadDir(dir string) (History, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load dir: %w", err)
	}

	hist := make(History)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		switch {
		case strings.HasSuffix(e.Name(), ".zip"):
			if err := loadZip(path, hist); err != nil {
				return nil, err
			}
		case strings.HasSuffix(e.Name(), ".csv"), strings.HasSuffix(e.Name(), ".csv.xz"):
			ticker, series, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			hist[ticker] = series
		}
	}
	if len(hist) == 0 {
		return nil, fmt.Errorf("load dir: no bar files in %s", dir)
	}
	return hist, nil
}

// LoadFile reads one daily-bar CSV (optionally xz-compressed) and returns
// the ticker derived from the file name along with its series.
func LoadFile(path string) (string, Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("load bars: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return "", nil, fmt.Errorf("load bars: xz %s: %w", name, err)
		}
		r = xr
		name = strings.TrimSuffix(name, ".xz")
	}
	ticker := strings.ToUpper(strings.TrimSuffix(name, ".csv"))

	series, err := ReadBars(r)
	if err != nil {
		return "", nil, fmt.Errorf("load bars: %s: %w", ticker, err)
	}
	return ticker, series, nil
}

// loadZip extracts a zip bundle next to itself and loads the contained CSVs.
func loadZip(path string, hist History) error {
	tmp, err := os.MkdirTemp("", "bars-*")
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := unzip.Extract(path, tmp); err != nil {
		return fmt.Errorf("load bars: unzip %s: %w", filepath.Base(path), err)
	}

	sub, err := LoadDir(tmp)
	if err != nil {
		return err
	}
	for ticker, series := range sub {
		hist[ticker] = series
	}
	return nil
}

// ReadBars parses date,open,high,low,close rows. A header line is skipped,
// bad lines are counted and reported, and duplicate dates keep the first
// row seen.
func ReadBars(r io.Reader) (Series, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var series Series
	seen := make(map[time.Time]struct{})
	badLines := 0

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "date") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			badLines++
			continue
		}

		date, err := parseDate(parts[0])
		if err != nil {
			badLines++
			continue
		}
		if _, dup := seen[date]; dup {
			// keep-first policy
			continue
		}

		var px [4]float64
		ok := true
		for i := 0; i < 4; i++ {
			px[i], err = strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			badLines++
			continue
		}

		seen[date] = struct{}{}
		series = append(series, Bar{
			Date:  date,
			Open:  px[0],
			High:  px[1],
			Low:   px[2],
			Close: px[3],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if badLines > 0 {
		fmt.Fprintf(os.Stderr, "ingest warnings: badLines=%d\n", badLines)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no valid bars")
	}

	sortSeries(series)
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad date %q", s)
}

func sortSeries(s Series) {
	// Files are usually already sorted; insertion sort keeps that cheap.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Date.Before(s[j-1].Date); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
