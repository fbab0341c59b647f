package history

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/timeseries"
)

var frenchMonths = []struct{ name, number string }{
	{"janvier", "01"}, {"février", "02"}, {"fevrier", "02"}, {"mars", "03"},
	{"avril", "04"}, {"mai", "05"}, {"juin", "06"}, {"juillet", "07"},
	{"août", "08"}, {"aout", "08"}, {"septembre", "09"}, {"octobre", "10"},
	{"novembre", "11"}, {"décembre", "12"}, {"decembre", "12"},
}

var dayMonthYear = regexp.MustCompile(`(\d{1,2})[-/ ](\d{2})[-/ ](\d{4})`)

// parseRawDate reads dates such as "lundi 3 janvier 2022", "03-01-2022" or
// "2022-01-03".
func parseRawDate(s string) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range frenchMonths {
		s = strings.ReplaceAll(s, " "+m.name+" ", " "+m.number+" ")
	}
	if g := dayMonthYear.FindStringSubmatch(s); g != nil {
		d, _ := strconv.Atoi(g[1])
		m, _ := strconv.Atoi(g[2])
		y, _ := strconv.Atoi(g[3])
		if m < 1 || m > 12 || d < 1 || d > 31 {
			return time.Time{}, false
		}
		date := calendar.Date(y, time.Month(m), d)
		if date.Day() != d {
			return time.Time{}, false
		}
		return date, true
	}
	if date, err := timeseries.ParseDate(s); err == nil {
		return date, true
	}
	return time.Time{}, false
}

// AggregateDaily builds the weekly target store from a raw daily export. The
// header is the first row whose first cell is "date"; rows above it are
// ignored, as are unnamed columns and columns with no numeric value. Values
// are summed per (year, custom week), partial weeks included.
func AggregateDaily(r io.Reader) (*timeseries.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	skip, err := headerRow(raw)
	if err != nil {
		return nil, err
	}
	t, err := timeseries.ReadTable(bytes.NewReader(raw), &timeseries.CSVOptions{Delimiter: ',', SkipRows: skip})
	if err != nil {
		return nil, err
	}

	type key struct{ year, week int }
	var columns []int
	for j, h := range t.Header {
		if j == 0 || h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		columns = append(columns, j)
	}

	sums := make(map[key][]float64)
	numeric := make([]bool, len(columns))
	for i, row := range t.Rows {
		date, ok := parseRawDate(row[0])
		if !ok {
			continue
		}
		w := calendar.WeekContaining(date)
		k := key{w.Year, w.Number}
		acc, ok := sums[k]
		if !ok {
			acc = make([]float64, len(columns))
			sums[k] = acc
		}
		for c, j := range columns {
			if v := t.Float(i, j); !math.IsNaN(v) {
				acc[c] += v
				numeric[c] = true
			}
		}
	}

	header := []string{"Annee", "Semaine"}
	var kept []int
	for c, j := range columns {
		if numeric[c] {
			header = append(header, t.Header[j])
			kept = append(kept, c)
		}
	}

	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})

	out := timeseries.NewTable(header...)
	for _, k := range keys {
		cells := []string{strconv.Itoa(k.year), strconv.Itoa(k.week)}
		for _, c := range kept {
			cells = append(cells, timeseries.FormatFloat(sums[k][c]))
		}
		out.Append(cells...)
	}
	return out, nil
}

// headerRow returns the number of rows preceding the "date" header.
func headerRow(raw []byte) (int, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	for i := 0; ; i++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return 0, errors.New("history: no DATE header row")
		}
		if err != nil {
			return 0, err
		}
		if len(record) > 0 && strings.ToLower(strings.TrimSpace(strings.Trim(record[0], "\"\ufeff"))) == "date" {
			return i, nil
		}
	}
}
