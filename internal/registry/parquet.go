package registry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

// ParquetRow is the on-disk schema of a parquet registry.
type ParquetRow struct {
	VenueAPool     string  `parquet:"name=venue_a_pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	VenueBPool     string  `parquet:"name=venue_b_pool, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token0         string  `parquet:"name=token0, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token0Symbol   string  `parquet:"name=token0_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token0Decimals int32   `parquet:"name=token0_decimals, type=INT32"`
	Token0USD      float64 `parquet:"name=token0_usd, type=DOUBLE"`
	Token1         string  `parquet:"name=token1, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token1Symbol   string  `parquet:"name=token1_symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token1Decimals int32   `parquet:"name=token1_decimals, type=INT32"`
	Token1USD      float64 `parquet:"name=token1_usd, type=DOUBLE"`
	FeeA           int32   `parquet:"name=fee_a, type=INT32"`
	FeeB           int32   `parquet:"name=fee_b, type=INT32"`
	NativeUSD      float64 `parquet:"name=native_usd, type=DOUBLE"`
}

type ParquetSource struct {
	path string
}

func NewParquetSource(path string) *ParquetSource {
	return &ParquetSource{path: path}
}

func (s *ParquetSource) Load(_ context.Context) (Snapshot, error) {
	fr, err := local.NewLocalFileReader(s.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open registry: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(ParquetRow), 4)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	raw := make([]ParquetRow, int(pr.GetNumRows()))
	if len(raw) > 0 {
		if err := pr.Read(&raw); err != nil {
			return Snapshot{}, fmt.Errorf("read registry %s: %w", s.path, err)
		}
	}

	rows := make([]Row, 0, len(raw))
	for _, p := range raw {
		rows = append(rows, Row{
			VenueAPool:     p.VenueAPool,
			VenueBPool:     p.VenueBPool,
			Token0:         p.Token0,
			Token0Symbol:   p.Token0Symbol,
			Token0Decimals: int64(p.Token0Decimals),
			Token0USD:      decimal.NewFromFloat(p.Token0USD),
			Token1:         p.Token1,
			Token1Symbol:   p.Token1Symbol,
			Token1Decimals: int64(p.Token1Decimals),
			Token1USD:      decimal.NewFromFloat(p.Token1USD),
			FeeA:           int64(p.FeeA),
			FeeB:           int64(p.FeeB),
			NativeUSD:      decimal.NewFromFloat(p.NativeUSD),
		})
	}
	return BuildSnapshot(rows)
}
