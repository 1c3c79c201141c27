package storage

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-chat/internal/config"
	apperrors "github.com/spec-kit/helpdesk-chat/pkg/util/errorutil"
)

func TestStoreWritesUnderRandomName(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewSink(fs, config.UploadConfig{Dir: "data/uploads", PublicPrefix: "/uploads/", MaxBytes: 16}, nil)
	require.NoError(t, err)

	url, err := sink.Store(context.Background(), "Relatorio.PDF", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))
	assert.Equal(t, ".pdf", path.Ext(url))

	data, err := afero.ReadFile(fs, filepath.Join("data/uploads", path.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	other, err := sink.Store(context.Background(), "Relatorio.PDF", strings.NewReader("again"))
	require.NoError(t, err)
	assert.NotEqual(t, url, other)
}

func TestStoreRejectsOversizedUpload(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewSink(fs, config.UploadConfig{Dir: "uploads", PublicPrefix: "/uploads", MaxBytes: 4}, nil)
	require.NoError(t, err)

	_, err = sink.Store(context.Background(), "big.png", strings.NewReader("too large"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodePayloadTooLarge))

	entries, err := afero.ReadDir(fs, "uploads")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreHonorsCancellation(t *testing.T) {
	sink, err := NewSink(afero.NewMemMapFs(), config.UploadConfig{Dir: "uploads"}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.Store(ctx, "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
