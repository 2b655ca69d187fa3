// 数据导入工具：解析停车场 CSV 并在单事务内整体替换 parking_lots 表
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"parking-api/internal/config"
	"parking-api/internal/loader"
	"parking-api/internal/logger"
	"parking-api/internal/migrate"
	"parking-api/internal/store"
	"parking-api/internal/utils"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	path := flag.String("csv", cfg.CSVPath, "path to the parking lot CSV")
	skip := flag.Bool("skip-invalid", cfg.SkipInvalid, "skip malformed rows instead of aborting")
	dryRun := flag.Bool("dry-run", false, "parse and validate only, do not write")
	flag.Parse()

	l := logger.Setup()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	recs, err := loader.CSVSource{Path: *path, SkipInvalid: *skip}.Fetch(ctx)
	if err != nil {
		l.Error("import_parse_error", "path", *path, "err", err)
		os.Exit(1)
	}
	l.Info("import_parsed", "path", *path, "lots", len(recs))
	if *dryRun {
		return
	}

	db, err := utils.OpenPostgres(cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)
	began := time.Now()
	n, err := st.Import(ctx, recs)
	if err != nil {
		l.Error("import_write_error", "err", err)
		os.Exit(1)
	}
	l.Info("import_done", "lots", n, "written", len(recs), "duration_ms", time.Since(began).Milliseconds())
}
