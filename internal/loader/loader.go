// 包 loader：从数据源加载停车场并整体替换内存索引，支持定时刷新
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"parking-api/internal/logger"
	"parking-api/internal/lot"
	"parking-api/internal/metrics"
)

// ErrLoadFailure 数据源不可读、行解析失败或记录坐标非法；失败时原索引保持不变
var ErrLoadFailure = errors.New("load failure")

// Reloader 可整体替换的索引
type Reloader interface {
	Reload(recs []lot.Record) error
	Size() int
}

type Loader struct {
	mu    sync.Mutex
	idx   Reloader
	src   Source
	hooks []func(n int)
}

func New(idx Reloader, src Source) *Loader {
	return &Loader{idx: idx, src: src}
}

// OnReload 注册重载成功后的回调（如清空结果缓存）
func (l *Loader) OnReload(fn func(n int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

func (l *Loader) Source() Source { return l.src }

// Reload：拉取数据并原子替换索引，返回当前索引规模
// 约束：同一时刻只运行一个重载；失败返回包装了 ErrLoadFailure 的错误
func (l *Loader) Reload(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	log := logger.L()
	began := time.Now()
	recs, err := l.src.Fetch(ctx)
	if err == nil {
		err = l.idx.Reload(recs)
	}
	metrics.ReloadDurationMs.Observe(float64(time.Since(began).Milliseconds()))
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("error").Inc()
		err = fmt.Errorf("%w: %s: %w", ErrLoadFailure, l.src.Name(), err)
		log.Error("index_reload_error", "source", l.src.Name(), "err", err, "kept", l.idx.Size())
		return l.idx.Size(), err
	}
	n := l.idx.Size()
	metrics.ReloadTotal.WithLabelValues("ok").Inc()
	metrics.IndexLots.Set(float64(n))
	log.Info("index_reload_ok", "source", l.src.Name(), "lots", n, "duration_ms", time.Since(began).Milliseconds())
	for _, fn := range l.hooks {
		fn(n)
	}
	return n, nil
}

// Schedule：按 cron 表达式周期重载（如 "@every 1h"、"0 3 * * 1"）
// 错误只记录日志，调度继续；调用方负责 Stop
func (l *Loader) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logger.L().Info("index_reload_scheduled", "spec", spec)
		_, _ = l.Reload(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reload %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
