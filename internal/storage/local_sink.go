package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/config"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

// LocalSink writes uploads under a directory served at a public prefix.
type LocalSink struct {
	fs       afero.Fs
	dir      string
	prefix   string
	maxBytes int64
	logger   *zap.Logger
}

// NewLocalSink stores uploads on the OS filesystem.
func NewLocalSink(cfg config.UploadConfig, logger *zap.Logger) (*LocalSink, error) {
	return NewSink(afero.NewOsFs(), cfg, logger)
}

// NewSink stores uploads on fs, creating the upload directory if needed.
func NewSink(fs afero.Fs, cfg config.UploadConfig, logger *zap.Logger) (*LocalSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = "uploads"
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(cfg.PublicPrefix), "/")
	return &LocalSink{
		fs:       fs,
		dir:      dir,
		prefix:   prefix,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
	}, nil
}

// Dir is the directory uploads are written to.
func (s *LocalSink) Dir() string { return s.dir }

// Prefix is the public URL path uploads are served under.
func (s *LocalSink) Prefix() string { return s.prefix }

// Store saves r under a random name that keeps the original extension.
func (s *LocalSink) Store(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	target := filepath.Join(s.dir, name)

	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil || closeErr != nil:
		s.discard(target)
		return "", errors.Join(copyErr, closeErr)
	case s.maxBytes > 0 && written > s.maxBytes:
		s.discard(target)
		return "", apperrors.NewPayloadTooLarge(s.maxBytes)
	}

	s.logger.Debug("upload stored", zap.String("name", name), zap.Int64("bytes", written))
	return path.Join(s.prefix, name), nil
}

func (s *LocalSink) discard(target string) {
	if err := s.fs.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove partial upload", zap.String("path", target), zap.Error(err))
	}
}
