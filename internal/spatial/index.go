// 包 spatial：停车场记录的进程内空间索引（均匀格网），支持最近邻与半径计数
package spatial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"sync"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
)

// DefaultCellDeg 默认格网边长（度），约 1.1km 纬向
const DefaultCellDeg = 0.01

// Hit：最近邻查询结果
type Hit struct {
	Record         lot.Record
	DistanceMeters float64
}

// Index：读多写少的空间索引
// 约束：查询共享读锁并看到同一份完整格网；Reload 在锁外构建新格网后整体替换，读者只会看到旧数据集或新数据集
type Index struct {
	mu      sync.RWMutex
	g       *grid
	cell    float64
	version uint64
}

func New(cellDeg float64) (*Index, error) {
	if !(cellDeg > 0) || cellDeg > 90 || math.IsInf(cellDeg, 0) {
		return nil, fmt.Errorf("spatial: invalid cell size %v", cellDeg)
	}
	cell := SnapCellDeg(cellDeg)
	return &Index{g: newGrid(cell), cell: cell}, nil
}

// SnapCellDeg：把格网边长调整为能整除 180°（从而整除 360°）的最接近值
// 约束：经度列必须恰好铺满一周，否则末列与第 0 列重叠，环形搜索的块边界会偏大
func SnapCellDeg(cellDeg float64) float64 {
	n := math.Max(2, math.Round(180/cellDeg))
	return 180 / n
}

// Insert：增量写入单条记录；坐标非法时拒绝，不做修正
func (x *Index) Insert(rec lot.Record) error {
	if err := rec.Location.Validate(); err != nil {
		return fmt.Errorf("insert %q: %w", rec.ID, err)
	}
	x.mu.Lock()
	x.g.insert(rec)
	x.version++
	x.mu.Unlock()
	return nil
}

// Clear：整体替换为空格网，可重复调用
func (x *Index) Clear() {
	empty := newGrid(x.cell)
	x.mu.Lock()
	x.g = empty
	x.version++
	x.mu.Unlock()
}

// Reload：全量替换（等价于 clear + 批量 insert 的原子版本）
// 约束：任一记录坐标非法时返回错误且保留旧数据
func (x *Index) Reload(recs []lot.Record) error {
	ng := newGrid(x.cell)
	var errs []error
	for _, r := range recs {
		if err := r.Location.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("record %q: %w", r.ID, err))
			continue
		}
		ng.insert(r)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	x.mu.Lock()
	x.g = ng
	x.version++
	x.mu.Unlock()
	return nil
}

// Nearest：返回距离最小的记录；等距按 ID 升序；空索引返回 false
func (x *Index) Nearest(p geo.Point) (Hit, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.nearest(p)
}

// CountWithin：距离 <= radiusMeters 的记录数
func (x *Index) CountWithin(p geo.Point, radiusMeters float64) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.countWithin(p, radiusMeters)
}

// Density：同一快照下的半径内数量与总数，避免计数与总数跨越一次重载
func (x *Index) Density(p geo.Point, radiusMeters float64) (within, total int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.countWithin(p, radiusMeters), x.g.size
}

func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.size
}

// Version 每次写入/清空/重载递增
func (x *Index) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Fingerprint：与插入顺序无关的内容摘要（记录数 + 记录哈希之和），相同数据集在不同进程中一致
func (x *Index) Fingerprint() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return strconv.Itoa(x.g.size) + "-" + strconv.FormatUint(x.g.sum, 16)
}

// CellDeg 实际使用的格网边长（已按 SnapCellDeg 调整）
func (x *Index) CellDeg() float64 { return x.cell }

func recordHash(r lot.Record) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	h.Write([]byte(r.ID))
	h.Write([]byte{0})
	h.Write([]byte(r.Name))
	h.Write([]byte{0})
	h.Write([]byte(r.Type))
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(r.YearBuilt)))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Location.Lat))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Location.Lon))
	h.Write(buf[:])
	return h.Sum64()
}
