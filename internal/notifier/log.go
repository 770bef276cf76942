package notifier

import (
	"context"
	"log"
	"os"

	"jobhill/internal/model"
)

// LogNotifier 仅打印新增职位，适合开发阶段使用。
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier 创建日志通知器，未提供 logger 时默认输出到标准输出。
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stdout, "[notify] ", log.LstdFlags)
	}
	return &LogNotifier{logger: logger}
}

// Notify 逐条打印新增职位信息。
func (n LogNotifier) Notify(ctx context.Context, jobs []model.ListedJob) error {
	if len(jobs) == 0 {
		return nil
	}
	for _, job := range jobs {
		n.logger.Printf("new job: %s @ %s [%s] %s", job.JobTitle, job.CompanyName, job.Status, job.URL)
	}
	return nil
}

// Notifier 新增职位通知接口。
type Notifier interface {
	Notify(ctx context.Context, jobs []model.ListedJob) error
}

// Multi 依次调用多个通知器，返回第一个错误但不中断后续通知器。
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, jobs []model.ListedJob) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, jobs); err != nil && first == nil {
			first = err
		}
	}
	return first
}
