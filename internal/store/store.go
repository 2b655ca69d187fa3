// 包 store：停车场记录的 PostgreSQL 持久化，作为索引的可选加载来源
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmcloughlin/geohash"

	"parking-api/internal/geo"
	"parking-api/internal/logger"
	"parking-api/internal/lot"
)

const (
	insertLotSQL = `INSERT INTO parking_lots(id, name, type, year_built, latitude, longitude, geohash, loaded_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,now())`
	listLotsSQL = `SELECT id, name, type, year_built, latitude, longitude FROM parking_lots ORDER BY id`
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// ReplaceAll: 单事务内先清空再批量写入
// 约束：任一写入失败整体回滚，表中保留旧数据
func (s *Store) ReplaceAll(ctx context.Context, recs []lot.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM parking_lots"); err != nil {
		return fmt.Errorf("clear parking_lots: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertLotSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range recs {
		gh := geohash.Encode(r.Location.Lat, r.Location.Lon)
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Type, r.YearBuilt, r.Location.Lat, r.Location.Lon, gh); err != nil {
			return fmt.Errorf("insert lot %d (%s): %w", i+1, r.ID, err)
		}
		if (i+1)%5000 == 0 {
			logger.L().Info("store_replace_progress", "count", i+1)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("store_replace_done", "count", len(recs))
	return nil
}

// ListLots: 读取全部停车场，按 id 排序
// 约束：坐标非法的行返回错误，不静默跳过
func (s *Store) ListLots(ctx context.Context) ([]lot.Record, error) {
	rows, err := s.db.QueryContext(ctx, listLotsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []lot.Record
	for rows.Next() {
		var r lot.Record
		var lat, lon float64
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.YearBuilt, &lat, &lon); err != nil {
			return nil, err
		}
		p, err := geo.NewPoint(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("lot %s: %w", r.ID, err)
		}
		r.Location = p
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("store_list_done", "count", len(out))
	return out, nil
}

// Count: 表内记录数
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM parking_lots").Scan(&n)
	return n, err
}

// Import：ReplaceAll 后回读表内记录数，供导入工具核对写入结果
func (s *Store) Import(ctx context.Context, recs []lot.Record) (int64, error) {
	if err := s.ReplaceAll(ctx, recs); err != nil {
		return 0, err
	}
	n, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count after import: %w", err)
	}
	return n, nil
}
