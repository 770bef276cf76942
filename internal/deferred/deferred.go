// Package deferred 提供可撤销的延迟动作：到期执行 commit，用户撤销时执行 cancel。
// Close 时仍未到期的动作会立即提交，不会静默丢弃。
package deferred

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// ErrClosed Scheduler 已关闭。
var ErrClosed = errors.New("deferred: scheduler closed")

// CommitFunc 到期或关闭时执行的写入。
type CommitFunc func(ctx context.Context) error

type entry struct {
	timer  *time.Timer
	commit CommitFunc
	cancel func()
}

// Scheduler 按 key 管理延迟动作，同一 key 同时只有一个待执行动作。
type Scheduler struct {
	mu            sync.Mutex
	pending       map[string]*entry
	closed        bool
	inflight      sync.WaitGroup
	commitTimeout time.Duration
	logger        *log.Logger
}

// New 创建 Scheduler。commitTimeout 限制单次提交的耗时，<=0 时使用 10s。
func New(commitTimeout time.Duration, logger *log.Logger) *Scheduler {
	if commitTimeout <= 0 {
		commitTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[deferred] ", log.LstdFlags)
	}
	return &Scheduler{
		pending:       make(map[string]*entry),
		commitTimeout: commitTimeout,
		logger:        logger,
	}
}

// Schedule 在 delay 后执行 commit。key 已有待执行动作时替换它并重新计时，旧动作的 cancel 不会被调用。
func (s *Scheduler) Schedule(key string, delay time.Duration, commit CommitFunc, cancel func()) error {
	if commit == nil {
		return fmt.Errorf("deferred: nil commit for %q", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}
	e := &entry{commit: commit, cancel: cancel}
	e.timer = time.AfterFunc(delay, func() { s.fire(key, e) })
	s.pending[key] = e
	return nil
}

// Cancel 撤销待执行动作并调用其 cancel，动作不存在或已在执行时返回 false。
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	e, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
		e.timer.Stop()
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// Pending 判断 key 是否有待执行动作。
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Close 停止计时并立即提交所有待执行动作，等待执行中的提交结束。
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	remaining := s.pending
	s.pending = make(map[string]*entry)
	for _, e := range remaining {
		e.timer.Stop()
	}
	s.mu.Unlock()

	var errs []error
	for key, e := range remaining {
		if err := s.run(ctx, key, e); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func (s *Scheduler) fire(key string, e *entry) {
	s.mu.Lock()
	if s.pending[key] != e {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	_ = s.run(context.Background(), key, e)
}

func (s *Scheduler) run(ctx context.Context, key string, e *entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()
	if err := e.commit(ctx); err != nil {
		s.logger.Printf("commit %s failed: %v", key, err)
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}
