package storage

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"jobhill/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 表示记录不存在，或不属于当前用户。
var ErrNotFound = errors.New("storage: record not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 描述数据库连接方式。sqlite 使用 Path，postgres 使用 DSN。
type Config struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Store 封装关系库访问，负责职位、公司、投递记录与用户偏好的读写。
type Store struct {
	db *gorm.DB
}

// NewStore 打开本地 SQLite 数据库并自动迁移数据表。
func NewStore(dbPath string) (*Store, error) {
	return Open(Config{Driver: DriverSQLite, Path: dbPath})
}

// Open 按配置打开数据库并自动迁移数据表。
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dialector = sqlite.Open(cfg.Path)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(os.Stdout),
		// 职位可能先于公司写入，或公司被删除后仍保留，读取时靠 INNER JOIN 过滤。
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialectorName(cfg.Driver), err)
	}

	if err := db.AutoMigrate(&model.Company{}, &model.JobOffer{}, &model.Application{}, &model.UserPreferences{}); err != nil {
		return nil, fmt.Errorf("auto migrate models: %w", err)
	}

	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

func dialectorName(driver string) string {
	if driver == "" {
		return DriverSQLite
	}
	return driver
}

// newGormLogger 只输出慢查询与真实错误。ErrNotFound 是正常分支，不记录。
func newGormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "[gorm] ", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
