package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"parking-api/internal/logger"
	"parking-api/internal/lot"
)

// Source 停车场数据来源
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]lot.Record, error)
}

// CSVSource 本地 CSV 文件
type CSVSource struct {
	Path        string
	SkipInvalid bool
}

func (s CSVSource) Name() string { return "csv:" + filepath.Base(s.Path) }

func (s CSVSource) Fetch(ctx context.Context) ([]lot.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	recs, skipped, err := ParseCSV(f, filepath.Base(s.Path), s.SkipInvalid)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	if len(skipped) > 0 {
		l := logger.L()
		l.Warn("csv_rows_skipped", "path", s.Path, "count", len(skipped))
		for _, e := range skipped {
			l.Debug("csv_row_skipped", "path", s.Path, "err", e)
		}
	}
	return recs, nil
}

// Lister 持久化停车场的读取能力（由 store.Store 实现）
type Lister interface {
	ListLots(ctx context.Context) ([]lot.Record, error)
}

// DBSource 从 Postgres 读取导入工具写入的停车场
type DBSource struct {
	Store Lister
}

func (s DBSource) Name() string { return "postgres" }

func (s DBSource) Fetch(ctx context.Context) ([]lot.Record, error) {
	recs, err := s.Store.ListLots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return recs, nil
}
