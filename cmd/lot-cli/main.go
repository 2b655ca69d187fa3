// 交互式查询工具：加载停车场数据到本地索引，逐行执行 nearest / score 查询
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"parking-api/internal/config"
	"parking-api/internal/engine"
	"parking-api/internal/geo"
	"parking-api/internal/loader"
	"parking-api/internal/logger"
	"parking-api/internal/spatial"
	"parking-api/internal/store"
	"parking-api/internal/utils"
)

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  nearest <lat> <lon>")
	fmt.Println("  score <lat> <lon> [radius_m]")
	fmt.Println("  count <lat> <lon> <radius_m>")
	fmt.Println("  reload")
	fmt.Println("  stats")
	fmt.Println("  help")
	fmt.Println("  exit")
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) < n {
		return nil, fmt.Errorf("need %d numbers", n)
	}
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func main() {
	config.LoadEnvFiles()
	cfg := config.Load()
	source := flag.String("source", cfg.LotSource, "csv or postgres")
	path := flag.String("csv", cfg.CSVPath, "CSV path when source=csv")
	flag.Parse()
	logger.Setup()

	idx, err := spatial.New(cfg.CellDeg)
	if err != nil {
		fmt.Println("index error:", err)
		os.Exit(1)
	}
	var src loader.Source = loader.CSVSource{Path: *path, SkipInvalid: cfg.SkipInvalid}
	if strings.EqualFold(*source, config.SourcePostgres) {
		var db *sql.DB
		if db, err = utils.OpenPostgres(cfg.Postgres); err != nil {
			fmt.Println("db error:", err)
			os.Exit(1)
		}
		defer db.Close()
		src = loader.DBSource{Store: store.AttachDB(db)}
	}
	ld := loader.New(idx, src)
	reload := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := ld.Reload(ctx)
		if err != nil {
			fmt.Println("reload error:", err)
		}
		fmt.Printf("%d lots from %s\n", n, src.Name())
	}
	reload()
	eng := engine.New(idx, engine.WithRadius(cfg.RadiusMeters))

	fmt.Println("parking lot cli ready")
	printHelp()
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		parts := strings.Fields(in.Text())
		if len(parts) == 0 {
			continue
		}
		switch strings.ToLower(parts[0]) {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "stats":
			fmt.Printf("lots=%d version=%d fingerprint=%s cell=%g radius=%g\n", idx.Size(), idx.Version(), idx.Fingerprint(), idx.CellDeg(), eng.Radius())
		case "reload":
			reload()
		case "nearest":
			v, err := parseFloats(parts[1:], 2)
			if err != nil {
				fmt.Println("usage: nearest <lat> <lon>")
				continue
			}
			h, err := eng.NearestHit(v[0], v[1])
			if err != nil {
				fmt.Println(engine.Code(err), err)
				continue
			}
			r := h.Record
			fmt.Printf("%s | %s | %s | %d | (%.6f, %.6f) | %.1f m\n", r.ID, r.Name, r.Type, r.YearBuilt, r.Location.Lat, r.Location.Lon, h.DistanceMeters)
		case "score":
			v, err := parseFloats(parts[1:], 2)
			if err != nil {
				fmt.Println("usage: score <lat> <lon> [radius_m]")
				continue
			}
			radius := eng.Radius()
			if len(v) > 2 {
				radius = v[2]
			}
			s, err := eng.ScoreWithin(v[0], v[1], radius)
			if err != nil {
				fmt.Println(engine.Code(err), err)
				continue
			}
			fmt.Printf("%.4f\n", s)
		case "count":
			v, err := parseFloats(parts[1:], 3)
			if err != nil {
				fmt.Println("usage: count <lat> <lon> <radius_m>")
				continue
			}
			within, total, err := countWithin(idx, v[0], v[1], v[2])
			if err != nil {
				fmt.Println(engine.Code(err), err)
				continue
			}
			fmt.Printf("%d / %d\n", within, total)
		default:
			fmt.Println("unknown command, type help")
		}
	}
}

func countWithin(idx *spatial.Index, lat, lon, radius float64) (within, total int, err error) {
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return 0, 0, err
	}
	within, total = idx.Density(p, radius)
	return within, total, nil
}
