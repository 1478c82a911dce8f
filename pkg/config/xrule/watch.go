package xrule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xguard/pkg/xguard"
)

// WatchCallback 规则重载回调。err 为 nil 表示本次重载已生效，
// 否则文件被拒绝且当前规则保持不变。
type WatchCallback func(f *RuleFile, err error)

// Watcher 规则文件监视器：文件变更后带防抖地重新加载并应用到 Guard。
type Watcher struct {
	guard    *xguard.Guard
	path     string
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// WatchOption 监视器可选配置函数。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	callback WatchCallback
}

// WithDebounce 设置防抖时长，窗口内的多次变更只触发一次重载。
// 默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		o.debounce = d
	}
}

// WithCallback 设置重载回调。
func WithCallback(cb WatchCallback) WatchOption {
	return func(o *watchOptions) {
		o.callback = cb
	}
}

// Watch 创建规则文件监视器并完成首次加载。
// 首次加载失败直接返回错误，不会以空规则起步。
//
// 监视的是文件所在目录而非文件本身：编辑器保存往往是写临时文件后
// rename，直接监视文件会丢失事件。
func Watch(g *xguard.Guard, path string, opts ...WatchOption) (*Watcher, error) {
	if g == nil {
		return nil, ErrNilGuard
	}
	if path == "" {
		return nil, ErrEmptyPath
	}

	o := &watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	if err := LoadAndApply(g, path); err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xrule: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xrule: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		guard:    g,
		path:     path,
		watcher:  fsWatcher,
		callback: o.callback,
		debounce: o.debounce,
		logger:   g.Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// StartAsync 在后台 goroutine 中启动监视，立即返回。
func (w *Watcher) StartAsync() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run()
}

// Stop 停止监视并关闭底层 watcher。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	w.running = false
	return w.watcher.Close()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.path)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("xrule: watch error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write 直接修改；Create/Rename 覆盖原子写入场景。
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.ctx.Done():
		return
	default:
	}

	f, err := Load(w.path)
	if err == nil {
		err = Apply(w.guard, f)
	}
	if err != nil {
		w.logger.Warn("xrule: rule file rejected, keeping current rules",
			slog.String("path", w.path),
			slog.Any("error", err))
	} else {
		w.logger.Info("xrule: rule file reloaded", slog.String("path", w.path))
	}
	if w.callback != nil {
		w.callback(f, err)
	}
}
