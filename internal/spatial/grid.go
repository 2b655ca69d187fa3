package spatial

import (
	"math"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
)

// 下界比较的数值余量（米），吸收格网取整与三角函数的浮点误差
const boundSlack = 1e-6

type cellKey struct{ row, col int }

// grid：均匀经纬度格网，行按纬度自南向北，列按经度自西向东
// 约束：每条记录仅落在 cellOf(坐标) 对应的一个格子中
type grid struct {
	cell  float64
	rows  int
	cols  int
	cells map[cellKey][]lot.Record
	size  int
	sum   uint64
}

// newGrid：cellDeg 须整除 180°，行列数按整数推导，不受浮点除法误差影响
func newGrid(cellDeg float64) *grid {
	rows := int(math.Round(180 / cellDeg))
	return &grid{
		cell:  cellDeg,
		rows:  rows,
		cols:  2 * rows,
		cells: make(map[cellKey][]lot.Record),
	}
}

func (g *grid) rowOf(lat float64) int {
	r := int(math.Floor((lat + 90) / g.cell))
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

func (g *grid) colOf(lon float64) int {
	return g.wrapCol(int(math.Floor((lon + 180) / g.cell)))
}

func (g *grid) wrapCol(c int) int {
	c %= g.cols
	if c < 0 {
		c += g.cols
	}
	return c
}

func (g *grid) cellOf(p geo.Point) cellKey {
	return cellKey{row: g.rowOf(p.Lat), col: g.colOf(p.Lon)}
}

func (g *grid) insert(rec lot.Record) {
	k := g.cellOf(rec.Location)
	g.cells[k] = append(g.cells[k], rec)
	g.size++
	g.sum += recordHash(rec)
}

// better：先比距离，等距时 ID 小者优先
func better(d float64, rec lot.Record, best Hit, found bool) bool {
	if !found || d < best.DistanceMeters {
		return true
	}
	return d == best.DistanceMeters && rec.Less(best.Record)
}

func (g *grid) scanCell(p geo.Point, recs []lot.Record, best *Hit, found *bool) {
	for i := range recs {
		d := p.DistanceTo(recs[i].Location)
		if better(d, recs[i], *best, *found) {
			*best = Hit{Record: recs[i], DistanceMeters: d}
			*found = true
		}
	}
}

// nearest：以查询点所在格为中心逐圈外扩
// 约束：当已得最优距离严格小于"块外任意点的距离下界"时停止；圈数超过已占用格数或将绕满经度时退化为全量扫描，结果与暴力枚举一致
func (g *grid) nearest(p geo.Point) (Hit, bool) {
	var best Hit
	found := false
	if g.size == 0 {
		return best, false
	}
	c0 := g.cellOf(p)
	for k := 0; ; k++ {
		side := 2*k + 1
		if side >= g.cols || side*side > 4*len(g.cells)+16 {
			for _, recs := range g.cells {
				g.scanCell(p, recs, &best, &found)
			}
			return best, found
		}
		g.ring(c0, k, func(key cellKey) {
			if recs, ok := g.cells[key]; ok {
				g.scanCell(p, recs, &best, &found)
			}
		})
		if found && best.DistanceMeters < g.outsideBound(p, c0, k) {
			return best, true
		}
	}
}

// ring：枚举与中心格切比雪夫距离恰为 k 的格子；调用方保证 2k+1 < cols，列回绕不会重复
func (g *grid) ring(c0 cellKey, k int, fn func(cellKey)) {
	if k == 0 {
		fn(c0)
		return
	}
	for r := c0.row - k; r <= c0.row+k; r++ {
		if r < 0 || r >= g.rows {
			continue
		}
		if r == c0.row-k || r == c0.row+k {
			for c := c0.col - k; c <= c0.col+k; c++ {
				fn(cellKey{row: r, col: g.wrapCol(c)})
			}
			continue
		}
		fn(cellKey{row: r, col: g.wrapCol(c0.col - k)})
		fn(cellKey{row: r, col: g.wrapCol(c0.col + k)})
	}
}

// outsideBound：以 c0 为中心、半径 k 的格块之外任一点到 p 的距离下界（米）
// 纬度方向：大圆距离不小于纬差弧长；经度方向：块外点位于过两极、经差为 gap 的大圆另一侧，距离不小于 p 到该大圆的垂距
func (g *grid) outsideBound(p geo.Point, c0 cellKey, k int) float64 {
	lb := math.Inf(1)
	minLat := float64(c0.row-k)*g.cell - 90
	maxLat := float64(c0.row+k+1)*g.cell - 90
	if c0.row-k > 0 {
		lb = math.Min(lb, arcMeters(math.Max(0, p.Lat-minLat)))
	}
	if c0.row+k < g.rows-1 {
		lb = math.Min(lb, arcMeters(math.Max(0, maxLat-p.Lat)))
	}
	minLon := float64(c0.col-k)*g.cell - 180
	maxLon := float64(c0.col+k+1)*g.cell - 180
	lon := p.Lon
	if lon >= 180 {
		// 180 与 -180 同属第 0 列
		lon -= 360
	}
	gap := math.Max(0, math.Min(lon-minLon, maxLon-lon))
	gapRad := math.Min(geo.DegToRad(gap), math.Pi/2)
	s := math.Cos(geo.DegToRad(p.Lat)) * math.Sin(gapRad)
	if s > 1 {
		s = 1
	}
	if s < 0 {
		s = 0
	}
	lb = math.Min(lb, geo.EarthRadiusMeters*math.Asin(s))
	return lb - boundSlack
}

func arcMeters(deg float64) float64 { return geo.DegToRad(deg) * geo.EarthRadiusMeters }

// cover：半径 radius 的球冠外接经纬度框对应的格子范围（含一格余量）
// 返回 all=true 表示覆盖全部经度或全球，调用方直接全量扫描
func (g *grid) cover(p geo.Point, radius float64) (rowLo, rowHi, colLo, colHi int, fullLon, all bool) {
	ang := radius / geo.EarthRadiusMeters
	if ang >= math.Pi {
		return 0, 0, 0, 0, true, true
	}
	dLat := geo.RadToDeg(ang)
	latLo := p.Lat - dLat
	latHi := p.Lat + dLat
	rowLo = g.rowOf(math.Max(latLo, -90)) - 1
	rowHi = g.rowOf(math.Min(latHi, 90)) + 1
	if rowLo < 0 {
		rowLo = 0
	}
	if rowHi > g.rows-1 {
		rowHi = g.rows - 1
	}
	if latLo <= -90 || latHi >= 90 {
		return rowLo, rowHi, 0, g.cols - 1, true, false
	}
	ratio := math.Sin(ang) / math.Cos(geo.DegToRad(p.Lat))
	if ratio >= 1 {
		return rowLo, rowHi, 0, g.cols - 1, true, false
	}
	dLon := geo.RadToDeg(math.Asin(ratio))
	colLo = int(math.Floor((p.Lon-dLon+180)/g.cell)) - 1
	colHi = int(math.Floor((p.Lon+dLon+180)/g.cell)) + 1
	if colHi-colLo+1 >= g.cols {
		return rowLo, rowHi, 0, g.cols - 1, true, false
	}
	return rowLo, rowHi, colLo, colHi, false, false
}

// countWithin：统计距离 <= radius 的记录数（含边界）
func (g *grid) countWithin(p geo.Point, radius float64) int {
	if g.size == 0 || !(radius >= 0) {
		return 0
	}
	rowLo, rowHi, colLo, colHi, _, all := g.cover(p, radius)
	n := 0
	count := func(recs []lot.Record) {
		for i := range recs {
			if p.DistanceTo(recs[i].Location) <= radius {
				n++
			}
		}
	}
	visits := (rowHi - rowLo + 1) * (colHi - colLo + 1)
	if all || visits > len(g.cells) {
		for _, recs := range g.cells {
			count(recs)
		}
		return n
	}
	for r := rowLo; r <= rowHi; r++ {
		for c := colLo; c <= colHi; c++ {
			if recs, ok := g.cells[cellKey{row: r, col: g.wrapCol(c)}]; ok {
				count(recs)
			}
		}
	}
	return n
}
