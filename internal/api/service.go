package api

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"parking-api/internal/cache"
	"parking-api/internal/engine"
	"parking-api/internal/geo"
	"parking-api/internal/metrics"
)

// maxRadiusMeters 半个地球周长，超过即覆盖全球
const maxRadiusMeters = math.Pi * geo.EarthRadiusMeters

const (
	opNearest = "nearest"
	opScore   = "score"
)

// IndexStats 健康检查与缓存键所需的索引元信息
type IndexStats interface {
	Size() int
	Version() uint64
	Fingerprint() string
}

// Reloader 管理端触发的重载
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

type Options struct {
	NotFoundStatus int
	RadiusTunable  bool
	AdminToken     string
	ReloadTimeout  time.Duration
}

// Service：查询编排 + 结果缓存；结果以 JSON 字节缓存，命中时原样返回
type Service struct {
	eng    *engine.Engine
	idx    IndexStats
	cache  *cache.Results
	loader Reloader
	opts   Options
}

func NewService(eng *engine.Engine, idx IndexStats, rc *cache.Results, ld Reloader, opts Options) *Service {
	if opts.NotFoundStatus == 0 {
		opts.NotFoundStatus = 400
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 5 * time.Minute
	}
	return &Service{eng: eng, idx: idx, cache: rc, loader: ld, opts: opts}
}

// Nearest 返回已编码的最近停车场
func (s *Service) Nearest(ctx context.Context, lat, lon float64) ([]byte, error) {
	return s.cached(ctx, opNearest, lat, lon, 0, func() (any, error) {
		return s.eng.FindNearest(lat, lon)
	})
}

// Score 返回已编码的停车评分；radius 为 0 时使用引擎默认半径
// 缓存键始终带实际半径，共享 Redis 的实例半径配置不同也不会串用结果
func (s *Service) Score(ctx context.Context, lat, lon, radius float64) ([]byte, error) {
	if radius <= 0 {
		radius = s.eng.Radius()
	}
	return s.cached(ctx, opScore, lat, lon, radius, func() (any, error) {
		return s.eng.ScoreWithin(lat, lon, radius)
	})
}

// cached：坐标非法时直接交给引擎报错，不查缓存
// 约束：计算前后指纹不一致（期间发生重载）时不回写缓存
func (s *Service) cached(ctx context.Context, op string, lat, lon, radius float64, compute func() (any, error)) ([]byte, error) {
	began := time.Now()
	defer metrics.ObserveRequest(op, began)

	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return nil, err
	}
	fp := s.idx.Fingerprint()
	key := cache.Key(fp, op, p, radius)
	if b, ok := s.cache.Get(ctx, key); ok {
		return b, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if s.idx.Fingerprint() == fp {
		s.cache.Set(ctx, key, b)
	}
	return b, nil
}

func (s *Service) Health() healthBody {
	return healthBody{Lots: s.idx.Size(), Version: s.idx.Version(), Fingerprint: s.idx.Fingerprint()}
}

// Reload 管理端重载；重载成功后清空本地结果缓存
func (s *Service) Reload(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReloadTimeout)
	defer cancel()
	n, err := s.loader.Reload(ctx)
	if err == nil {
		s.cache.Purge()
	}
	return n, err
}
