package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/pkg/logger"
)

// ArchiveWriter 采集档案写入器
type ArchiveWriter interface {
	Write(ctx context.Context, meta ArchiveMeta, data []byte, contentType string) (StoredObject, error)
}

// ArchiveMeta 写入元数据
type ArchiveMeta struct {
	Project  string
	Label    string // 机箱名或遮蔽后的管理地址
	TaskID   string
	FileName string
	Backend  string // local|minio，空用配置默认
}

// StoredObject 写入结果
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// NewArchiveWriter 根据配置创建写入器
// MinIO 不可用时回退到本地目录
func NewArchiveWriter(cfg *config.Config) ArchiveWriter {
	dw := &delegatingWriter{cfg: cfg, local: &localWriter{cfg: cfg}}
	dw.minio = initMinioWriter(cfg)
	return dw
}

// delegatingWriter 按后端路由写入
type delegatingWriter struct {
	cfg   *config.Config
	local *localWriter
	minio *minioWriter
}

func (w *delegatingWriter) Write(ctx context.Context, meta ArchiveMeta, data []byte, contentType string) (StoredObject, error) {
	backend := strings.ToLower(strings.TrimSpace(meta.Backend))
	if backend == "" {
		backend = strings.ToLower(strings.TrimSpace(w.cfg.Storage.Backend))
	}
	if backend == "minio" {
		if w.minio == nil {
			logger.Warn("MinIO backend selected but client not initialized; falling back to local")
			obj, lerr := w.local.Write(ctx, meta, data, contentType)
			if lerr != nil {
				return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", lerr)
			}
			return obj, fmt.Errorf("minio client not initialized; wrote to local instead")
		}
		obj, err := w.minio.Write(ctx, meta, data, contentType)
		if err != nil {
			logger.Warnf("MinIO write failed; falling back to local: %v", err)
			objLocal, lerr := w.local.Write(ctx, meta, data, contentType)
			if lerr != nil {
				return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
			}
			return objLocal, fmt.Errorf("minio write failed: %w; fell back to local successfully", err)
		}
		return obj, nil
	}
	return w.local.Write(ctx, meta, data, contentType)
}

// archivePathParts 存储层级：project / label / 日期_时间 / taskID
func archivePathParts(meta ArchiveMeta) []string {
	parts := make([]string, 0, 4)
	if p := slug(meta.Project); p != "unknown" {
		parts = append(parts, p)
	}
	parts = append(parts, slug(meta.Label))
	parts = append(parts, time.Now().Format("20060102_150405"))
	if tid := strings.TrimSpace(meta.TaskID); tid != "" {
		parts = append(parts, tid)
	}
	return parts
}

func archiveFileName(meta ArchiveMeta) string {
	name := slug(meta.FileName)
	if !strings.Contains(name, ".") {
		name += ".json"
	}
	return name
}

// localWriter 本地文件写入
type localWriter struct {
	cfg *config.Config
}

func (w *localWriter) Write(ctx context.Context, meta ArchiveMeta, data []byte, contentType string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Storage.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data/archives"
	}

	dirPath := filepath.Join(append([]string{baseDir}, archivePathParts(meta)...)...)
	if w.cfg.Storage.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}

	fullPath := filepath.Join(dirPath, archiveFileName(meta))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	sum := sha256.Sum256(data)
	return StoredObject{
		URI:      "file://" + fullPath,
		Size:     int64(len(data)),
		Checksum: "sha256:" + hex.EncodeToString(sum[:]),
		ContentType: func() string {
			if contentType != "" {
				return contentType
			}
			return "application/json"
		}(),
	}, nil
}

// minioWriter 对象存储写入
type minioWriter struct {
	cfg           *config.Config
	client        *minio.Client
	endpoint      string
	bucketEnsured bool
}

// initMinioWriter 初始化 MinIO 客户端，配置不全或连不上返回 nil
func initMinioWriter(cfg *config.Config) *minioWriter {
	host := strings.TrimSpace(cfg.Storage.Minio.Host)
	port := cfg.Storage.Minio.Port
	if host == "" || port <= 0 {
		if strings.EqualFold(cfg.Storage.Backend, "minio") {
			logger.Warn("MinIO configuration incomplete; host/port missing")
		}
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Storage.Minio.AccessKey, cfg.Storage.Minio.SecretKey, ""),
		Secure:    cfg.Storage.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Errorf("MinIO client initialization failed: %v", err)
		return nil
	}

	w := &minioWriter{cfg: cfg, client: client, endpoint: endpoint}

	bucket := strings.TrimSpace(cfg.Storage.Minio.Bucket)
	if bucket == "" {
		logger.Warn("MinIO bucket not configured")
		return w
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.ensureBucket(ctx, bucket, 2); err != nil {
		logger.Warnf("MinIO bucket ensure at init failed: %v", err)
	} else {
		w.bucketEnsured = true
	}
	return w
}

func (w *minioWriter) Write(ctx context.Context, meta ArchiveMeta, data []byte, contentType string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, fmt.Errorf("minio client not initialized")
	}
	bucket := strings.TrimSpace(w.cfg.Storage.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}

	objectName := path.Join(path.Join(archivePathParts(meta)...), archiveFileName(meta))
	ct := contentType
	if ct == "" {
		ct = "application/json"
	}

	if err := w.fastConnectivityCheck(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio connectivity failed to %s: %w", w.endpoint, err)
	}
	if !w.bucketEnsured {
		if err := w.ensureBucket(ctx, bucket, 3); err != nil {
			return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
		}
		w.bucketEnsured = true
	}

	// 带退避的写入重试
	var lastErr error
	attempts := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i := 0; i < len(attempts); i++ {
		r := bytes.NewReader(data)
		attemptCtx, cancel := attemptContext(ctx, attempts[i])
		_, err := w.client.PutObject(attemptCtx, bucket, objectName, r, int64(len(data)), minio.PutObjectOptions{ContentType: ct})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		time.Sleep(attempts[i])
	}
	if lastErr != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", lastErr)
	}

	sum := sha256.Sum256(data)
	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
		ContentType: ct,
	}, nil
}

// fastConnectivityCheck TCP 直连探测，写入前尽早暴露网络问题
func (w *minioWriter) fastConnectivityCheck(parent context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(parent, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	_ = conn.Close()
	return nil
}

// ensureBucket 校验并创建 bucket，有限重试
func (w *minioWriter) ensureBucket(parent context.Context, bucket string, retries int) error {
	var lastErr error
	for i := 0; i <= retries; i++ {
		ctx, cancel := attemptContext(parent, 10*time.Second)
		exists, err := w.client.BucketExists(ctx, bucket)
		cancel()
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		if exists {
			return nil
		}
		ctx2, cancel2 := attemptContext(parent, 10*time.Second)
		mkErr := w.client.MakeBucket(ctx2, bucket, minio.MakeBucketOptions{})
		cancel2()
		if mkErr != nil {
			lastErr = mkErr
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("bucket ensure failed for %s", bucket)
}

// attemptContext 限时上下文，尊重父上下文剩余截止时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		remain := time.Until(deadline)
		if remain > time.Second && prefer < remain {
			return context.WithTimeout(parent, prefer)
		}
		if remain > time.Second {
			return context.WithTimeout(parent, remain-time.Second)
		}
		return context.WithTimeout(parent, time.Second)
	}
	return context.WithTimeout(parent, prefer)
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
