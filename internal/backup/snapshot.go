package backup

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Uploader 对象存储上传接口
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Snapshotter 定时将表格文件上传到对象存储（内容未变化时跳过）
type Snapshotter struct {
	path     string
	prefix   string
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	hasLast  bool
}

func NewSnapshotter(path, prefix string, uploader Uploader, logger *zap.Logger) *Snapshotter {
	return &Snapshotter{
		path:     path,
		prefix:   prefix,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// Key returns the object key for a snapshot taken at t.
func (s *Snapshotter) Key(t time.Time) string {
	name := "patients-" + t.UTC().Format("20060102-150405") + ".xlsx"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// RunOnce uploads the current file if it changed since the last upload.
// A missing file is not an error.
func (s *Snapshotter) RunOnce(ctx context.Context) (key string, uploaded bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", s.path, err)
	}

	sum := sha256.Sum256(data)
	if s.hasLast && sum == s.lastHash {
		return "", false, nil
	}

	key = s.Key(s.now())
	if err := s.uploader.Upload(ctx, key, data); err != nil {
		return "", false, fmt.Errorf("upload %s: %w", key, err)
	}
	s.lastHash = sum
	s.hasLast = true
	return key, true, nil
}

// Run 按 interval 周期执行，直到 ctx 取消
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Backup snapshotter started",
		zap.String("path", s.path),
		zap.Duration("interval", interval),
	)

	// 启动时先备份一次，避免频繁重启时永远等不到第一个周期
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Backup snapshotter stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Snapshotter) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	key, uploaded, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Backup snapshot failed", zap.Error(err))
		return
	}
	if uploaded {
		s.logger.Info("Backup snapshot uploaded", zap.String("key", key))
	}
}
