package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"jobhill/internal/ingest"
	"jobhill/internal/model"
	"jobhill/internal/notifier"
	"jobhill/internal/storage"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Config 用于调度配置。Interval 可以是 Go duration（如 2h）或 5 段 cron 表达式。
type Config struct {
	Interval     string `yaml:"interval" json:"interval"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	CloseMissing bool   `yaml:"close_missing" json:"close_missing"`
}

// Store 抽象存储接口，便于测试替换。
type Store interface {
	UpsertCompanyByName(ctx context.Context, name, logo string) (model.Company, error)
	UpsertJobs(ctx context.Context, jobs []model.JobOffer) (storage.UpsertResult, error)
	CloseMissingJobs(ctx context.Context, keep []string) (int64, error)
}

// Scheduler 负责周期性抓取并写入存储。
type Scheduler struct {
	fetcher      ingest.JobFetcher
	store        Store
	notif        notifier.Notifier
	spec         string
	timeout      time.Duration
	closeMissing bool
	running      atomic.Bool
	newCron      func() cronRunner
	logger       *log.Logger
}

type cronRunner interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
	Start()
	Stop() context.Context
}

// NewScheduler 创建 Scheduler，解析配置的间隔与超时。
func NewScheduler(f ingest.JobFetcher, s Store, n notifier.Notifier, cfg Config) *Scheduler {
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}

	return &Scheduler{
		fetcher:      f,
		store:        s,
		notif:        n,
		spec:         parseSchedule(cfg.Interval),
		timeout:      timeout,
		closeMissing: cfg.CloseMissing,
		newCron:      func() cronRunner { return cron.New() },
		logger:       log.New(os.Stdout, "[scheduler] ", log.LstdFlags),
	}
}

// Start 启动调度循环，直到上下文取消。单次抓取失败只记录日志，不终止循环。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.fetcher == nil || s.store == nil {
		return fmt.Errorf("scheduler missing dependencies")
	}

	c := s.newCron()
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.runOnce(ctx); err != nil {
			s.logger.Printf("scheduled run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("add cron %q: %w", s.spec, err)
	}
	s.logger.Printf("schedule=%q timeout=%s", s.spec, s.timeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Start()
		<-gctx.Done()
		<-c.Stop().Done()
		return gctx.Err()
	})
	return g.Wait()
}

// RunOnce 对外暴露单次抓取接口，便于手动刷新。上一轮仍在执行时直接返回 0。
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (int, error) {
	if s.running.Swap(true) {
		return 0, nil
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	postings, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch jobs: %w", err)
	}
	if len(postings) == 0 {
		return 0, nil
	}

	companies := make(map[string]model.Company)
	byID := make(map[int64]model.Company)
	jobs := make([]model.JobOffer, 0, len(postings))
	keep := make([]string, 0, len(postings))
	for _, p := range postings {
		company, ok := companies[p.Company]
		if !ok {
			company, err = s.store.UpsertCompanyByName(ctx, p.Company, "")
			if err != nil {
				return 0, fmt.Errorf("upsert company: %w", err)
			}
			companies[p.Company] = company
			byID[company.ID] = company
		}
		job := p.Job
		job.CompanyID = company.ID
		jobs = append(jobs, job)
		keep = append(keep, job.ID)
	}

	res, err := s.store.UpsertJobs(ctx, jobs)
	if err != nil {
		return 0, fmt.Errorf("upsert jobs: %w", err)
	}

	if s.closeMissing {
		closed, err := s.store.CloseMissingJobs(ctx, keep)
		if err != nil {
			return res.Created, fmt.Errorf("close missing jobs: %w", err)
		}
		if closed > 0 {
			s.logger.Printf("closed %d delisted jobs", closed)
		}
	}

	if s.notif != nil && len(res.NewJobs) > 0 {
		listed := make([]model.ListedJob, 0, len(res.NewJobs))
		for _, job := range res.NewJobs {
			company := byID[job.CompanyID]
			job.Company = &company
			listed = append(listed, model.NewListedJob(job))
		}
		if err := s.notif.Notify(ctx, listed); err != nil {
			return res.Created, fmt.Errorf("notify: %w", err)
		}
	}

	return res.Created, nil
}

// parseSchedule 把配置转换为 cron 表达式，无法识别时回退到每 2 小时。
func parseSchedule(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		if d, err := time.ParseDuration(trimmed); err == nil && d > 0 {
			return "@every " + d.String()
		}
		if _, err := cron.ParseStandard(trimmed); err == nil {
			return trimmed
		}
	}
	return "@every 2h0m0s"
}
