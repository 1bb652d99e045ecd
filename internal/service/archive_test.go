package service

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanscope/sanscope/internal/config"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = t.TempDir()
	cfg.Storage.Local.MkdirIfMissing = true
	return cfg
}

func TestLocalArchiveWrite(t *testing.T) {
	cfg := localConfig(t)
	w := NewArchiveWriter(cfg)

	obj, err := w.Write(context.Background(), ArchiveMeta{
		Project:  "dc1",
		Label:    "xxx.xxx.xxx.21",
		TaskID:   "task-1",
		FileName: "capture",
	}, []byte(`{"name":"dc1"}`), "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.URI, "file://"))
	assert.True(t, strings.HasSuffix(obj.URI, "capture.json"))
	assert.Equal(t, int64(len(`{"name":"dc1"}`)), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))
	assert.Equal(t, "application/json", obj.ContentType)

	data, err := os.ReadFile(strings.TrimPrefix(obj.URI, "file://"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"dc1"}`, string(data))
}

func TestMinioFallbackToLocal(t *testing.T) {
	cfg := localConfig(t)
	cfg.Storage.Backend = "minio" // host/port 缺失，客户端不会初始化

	w := NewArchiveWriter(cfg)
	obj, err := w.Write(context.Background(), ArchiveMeta{
		Label:    "edge01",
		FileName: "capture",
	}, []byte("{}"), "")

	// 回退成功：返回本地对象并携带预警错误
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local")
	assert.True(t, strings.HasPrefix(obj.URI, "file://"))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "edge01_f128", slug("Edge01 F128"))
	assert.Equal(t, "xxx.xxx.xxx.21", slug("xxx.xxx.xxx.21"))
	assert.Equal(t, "unknown", slug("@#$"))
}
