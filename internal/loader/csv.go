package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
)

// 列名沿用 LA_Parking_Lot.csv；匹配时忽略大小写与首尾空白
const (
	colLatitude  = "latitude"
	colLongitude = "longitude"
	colName      = "a_name"
	colYear      = "year"
	colType      = "type"
)

var requiredColumns = []string{colLatitude, colLongitude, colName, colYear, colType}

// lotNamespace 记录 ID 的 UUIDv5 命名空间
var lotNamespace = uuid.MustParse("5b0f7c8e-3f5a-4c55-9d2e-6f1f2a8c4e10")

// RowError 单行解析失败，Line 为源文件中的行号（从 1 开始，含表头）
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// ParseCSV：解析带表头的 RFC 4180 停车场数据
// 返回：成功解析的记录、被跳过的行错误；strict 模式（skipInvalid=false）下首个坏行即作为 err 返回
// 约束：表头缺列、读取失败为致命错误；ID 由 sourceName、行号与行内容派生，同一文件重复加载得到相同 ID
func ParseCSV(r io.Reader, sourceName string, skipInvalid bool) ([]lot.Record, []error, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, errors.New("empty csv: missing header")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		out     []lot.Record
		skipped []error
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, skipped, fmt.Errorf("read csv: %w", err)
			}
			err = &RowError{Line: pe.Line, Err: pe.Err}
		} else {
			line, _ := cr.FieldPos(0)
			var rec lot.Record
			rec, err = parseRow(row, cols, sourceName, line)
			if err == nil {
				out = append(out, rec)
				continue
			}
			err = &RowError{Line: line, Err: err}
		}
		if !skipInvalid {
			return nil, []error{err}, err
		}
		skipped = append(skipped, err)
	}
	return out, skipped, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		k := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[k]; !dup {
			cols[k] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header missing columns: %s", strings.Join(missing, ","))
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int, sourceName string, line int) (lot.Record, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(row) {
			return "", fmt.Errorf("missing field %s", name)
		}
		return strings.TrimSpace(row[i]), nil
	}
	get := func(name string) string { s, _ := field(name); return s }
	for _, c := range requiredColumns {
		if _, err := field(c); err != nil {
			return lot.Record{}, err
		}
	}

	lat, err := strconv.ParseFloat(get(colLatitude), 64)
	if err != nil {
		return lot.Record{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(get(colLongitude), 64)
	if err != nil {
		return lot.Record{}, fmt.Errorf("longitude: %w", err)
	}
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return lot.Record{}, err
	}
	year := 0
	if s := get(colYear); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			return lot.Record{}, fmt.Errorf("year: %w", err)
		}
	}
	return lot.Record{
		ID:        recordID(sourceName, line, row),
		Name:      get(colName),
		Type:      get(colType),
		YearBuilt: year,
		Location:  p,
	}, nil
}

func recordID(sourceName string, line int, row []string) string {
	seed := sourceName + "\x00" + strconv.Itoa(line) + "\x00" + strings.Join(row, "\x1f")
	return uuid.NewSHA1(lotNamespace, []byte(seed)).String()
}
