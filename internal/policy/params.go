package policy

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"ctxsearch/internal/config"
	"ctxsearch/internal/sched"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ParamSource supplies the trial parameters. The evaluator calls Params on
// every decision, so sources must be cheap and may change their answer
// between calls.
type ParamSource interface {
	Params() config.PolicyConfig
}

// StaticParams is a fixed ParamSource, used by tests and the replay
// harness.
type StaticParams config.PolicyConfig

// Params returns the wrapped parameters.
func (p StaticParams) Params() config.PolicyConfig { return config.PolicyConfig(p) }

// FileParams serves the policy block of a config file and hot-reloads it
// when the file changes, standing in for a remote trial-parameter service.
type FileParams struct {
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	current config.PolicyConfig

	watcher  *fsnotify.Watcher
	reload   sched.Deferred
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

const reloadDebounce = 200 * time.Millisecond

// NewFileParams loads the config at path and starts watching its directory
// for changes. Close must be called to release the watcher.
func NewFileParams(path string, log *zap.Logger) (*FileParams, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create param watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a file watch dies with the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch param directory: %w", err)
	}

	fp := &FileParams{
		path:    path,
		log:     log.Named("params"),
		current: cfg.Policy,
		watcher: watcher,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go fp.run()
	return fp, nil
}

// Params returns the most recently loaded parameters.
func (p *FileParams) Params() config.PolicyConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close stops the watcher.
func (p *FileParams) Close() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		<-p.doneCh
		p.reload.Cancel()
	})
	return p.watcher.Close()
}

func (p *FileParams) run() {
	defer close(p.doneCh)
	for {
		select {
		case <-p.stopCh:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Rapid saves collapse into one reload.
			p.reload.Schedule(reloadDebounce, p.reloadNow)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn("param watcher error", zap.Error(err))
		}
	}
}

func (p *FileParams) reloadNow() {
	cfg, err := config.Load(p.path)
	if err != nil {
		p.log.Warn("param reload failed, keeping previous values", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.current = cfg.Policy
	p.mu.Unlock()
	p.log.Info("trial parameters reloaded", zap.String("path", p.path))
}
