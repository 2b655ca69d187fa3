// 包 engine：停车场查询编排（最近停车场、停车评分），在空间索引之上施加业务规则
package engine

import (
	"errors"
	"math"

	"parking-api/internal/geo"
	"parking-api/internal/lot"
	"parking-api/internal/spatial"
)

// DefaultRadiusMeters 停车评分的默认统计半径（1 公里）
const DefaultRadiusMeters = 1000.0

// 对外错误标签
const (
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeNotFound          = "NOT_FOUND"
)

// ErrNotFound 空索引上的最近邻查询；消息沿用既有接口的 PARKING_LOT_NOT_FOUND
var ErrNotFound = errors.New("PARKING_LOT_NOT_FOUND")

// Searcher：引擎依赖的索引能力
type Searcher interface {
	Nearest(p geo.Point) (spatial.Hit, bool)
	Density(p geo.Point, radiusMeters float64) (within, total int)
}

type Engine struct {
	idx    Searcher
	radius float64
}

type Option func(*Engine)

// WithRadius 覆盖默认评分半径；非正数忽略
func WithRadius(m float64) Option {
	return func(e *Engine) {
		if m > 0 && !math.IsInf(m, 0) {
			e.radius = m
		}
	}
}

func New(idx Searcher, opts ...Option) *Engine {
	e := &Engine{idx: idx, radius: DefaultRadiusMeters}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Radius() float64 { return e.radius }

// NearestHit：校验坐标后查询最近记录，附带距离
func (e *Engine) NearestHit(lat, lon float64) (spatial.Hit, error) {
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return spatial.Hit{}, err
	}
	h, ok := e.idx.Nearest(p)
	if !ok {
		return spatial.Hit{}, ErrNotFound
	}
	return h, nil
}

// FindNearest：最近停车场视图；空索引返回 ErrNotFound
func (e *Engine) FindNearest(lat, lon float64) (lot.View, error) {
	h, err := e.NearestHit(lat, lon)
	if err != nil {
		return lot.View{}, err
	}
	return h.Record.View(), nil
}

// Score：默认半径下的停车评分
func (e *Engine) Score(lat, lon float64) (float64, error) {
	return e.ScoreWithin(lat, lon, e.radius)
}

// ScoreWithin：半径内数量 / 总数，四舍五入到 4 位小数
// 约束：空索引返回 0，不报错；计数与总数取自同一快照
func (e *Engine) ScoreWithin(lat, lon, radiusMeters float64) (float64, error) {
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return 0, err
	}
	within, total := e.idx.Density(p, radiusMeters)
	if total == 0 {
		return 0, nil
	}
	return Round4(float64(within) / float64(total)), nil
}

// Round4 四位小数，半数向上
func Round4(v float64) float64 {
	return math.Floor(v*1e4+0.5) / 1e4
}

// Code：错误到对外标签的映射；未知错误返回空串
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return CodeInvalidCoordinate
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	}
	return ""
}
