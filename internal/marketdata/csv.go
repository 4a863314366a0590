package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// csvColumns is the expected header of a bar file.
var csvColumns = []string{"instrument_id", "date", "open", "high", "low", "close", "volume"}

// ReadCSV parses daily bars from r. The first row must be the header
// instrument_id,date,open,high,low,close,volume.
func ReadCSV(r io.Reader) ([]*domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, col := range csvColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("csv header column %d: expected %q, got %q", i+1, col, header[i])
		}
	}

	var bars []*domain.Bar
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		b, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// RenderCSV writes bars in the format ReadCSV accepts.
func RenderCSV(bars []*domain.Bar) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(csvColumns, ","))
	sb.WriteString("\n")
	for _, b := range bars {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%d\n",
			b.InstrumentID,
			b.Date.Format(domain.DateLayout),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			b.Volume,
		))
	}
	return sb.String()
}

func parseRecord(rec []string) (*domain.Bar, error) {
	date, err := domain.ParseDay(rec[1])
	if err != nil {
		return nil, err
	}

	prices := make([]decimal.Decimal, 4)
	for i := 0; i < 4; i++ {
		p, err := decimal.NewFromString(strings.TrimSpace(rec[2+i]))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", csvColumns[2+i], err)
		}
		prices[i] = p
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(rec[6]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse volume: %w", err)
	}

	return &domain.Bar{
		InstrumentID: strings.TrimSpace(rec[0]),
		Date:         date,
		Open:         prices[0],
		High:         prices[1],
		Low:          prices[2],
		Close:        prices[3],
		Volume:       volume,
	}, nil
}

// LoadCSV reads a bar file from disk and builds a Series.
func LoadCSV(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewSeries(bars)
}
