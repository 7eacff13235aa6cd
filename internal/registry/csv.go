package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Load(_ context.Context) (Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read registry %s: %w", s.path, err)
	}
	return BuildSnapshot(rows)
}

// ReadCSV parses a header-led CSV. Column order is free; unparseable or
// short rows are kept with zero values so validation can reject them.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if len(rec) < len(header) {
			// truncated line; an empty Row fails validation and is counted
			rows = append(rows, Row{})
			continue
		}
		get := func(col string) string {
			return strings.TrimSpace(rec[idx[col]])
		}
		rows = append(rows, Row{
			VenueAPool:     get("venue_a_pool"),
			VenueBPool:     get("venue_b_pool"),
			Token0:         get("token0"),
			Token0Symbol:   get("token0_symbol"),
			Token0Decimals: parseInt(get("token0_decimals")),
			Token0USD:      parseDecimal(get("token0_usd")),
			Token1:         get("token1"),
			Token1Symbol:   get("token1_symbol"),
			Token1Decimals: parseInt(get("token1_decimals")),
			Token1USD:      parseDecimal(get("token1_usd")),
			FeeA:           parseInt(get("fee_a")),
			FeeB:           parseInt(get("fee_b")),
			NativeUSD:      parseDecimal(get("native_usd")),
		})
	}
	return rows, nil
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
