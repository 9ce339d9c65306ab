// Package timeseries reads the hourly heat demand and electricity price
// series from the semicolon separated export used by the utility. The file
// carries a winter and a summer period side by side:
//
//	line 1-2  headers
//	col 0-3   winter: time from; time to; heat demand (MWh); price (DKK/MWh el)
//	col 5-8   summer: same layout, present when the row has more than 8 fields
//
// Timestamps use "dd/MM/yyyy HH.mm" and numbers use a decimal comma.
package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/heatdispatch/core/model"
)

// Season selects a column group of the file.
type Season string

const (
	Winter Season = "winter"
	Summer Season = "summer"
)

// TimeLayout is the timestamp layout of the export.
const TimeLayout = "02/01/2006 15.04"

const headerLines = 2

// ErrMalformed is returned for rows that cannot be parsed.
var ErrMalformed = errors.New("malformed time series")

// ParseSeason maps a configuration string to a Season. The empty string
// yields Winter.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case "", Winter:
		return Winter, nil
	case Summer:
		return Summer, nil
	default:
		return "", fmt.Errorf("unknown season %q", s)
	}
}

func (s Season) offset() int {
	if s == Summer {
		return 5
	}
	return 0
}

// Load reads the series of one season from path.
func Load(path string, season Season) ([]model.PeriodRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	recs, err := Read(f, season)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Read parses the series of one season. Rows whose season columns are absent
// or blank are skipped. Values are not validated beyond parsing.
func Read(r io.Reader, season Season) ([]model.PeriodRecord, error) {
	if season == "" {
		season = Winter
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var out []model.PeriodRecord
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if line <= headerLines {
			continue
		}
		off := season.offset()
		if len(row) < off+4 || blank(row[off:off+4]) {
			continue
		}
		rec, err := parseRow(row[off : off+4])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(cols []string) (model.PeriodRecord, error) {
	from, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(cols[0]), time.UTC)
	if err != nil {
		return model.PeriodRecord{}, fmt.Errorf("time from: %w", err)
	}
	to, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(cols[1]), time.UTC)
	if err != nil {
		return model.PeriodRecord{}, fmt.Errorf("time to: %w", err)
	}
	demand, err := parseDecimal(cols[2])
	if err != nil {
		return model.PeriodRecord{}, fmt.Errorf("heat demand: %w", err)
	}
	price, err := parseDecimal(cols[3])
	if err != nil {
		return model.PeriodRecord{}, fmt.Errorf("electricity price: %w", err)
	}
	return model.PeriodRecord{TimeFrom: from, TimeTo: to, HeatDemand: demand, ElectricityPrice: price}, nil
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

func blank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
