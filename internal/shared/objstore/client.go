// Package objstore 封装 MinIO 对象存储客户端（别墅图片）
package objstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"villas-admin/internal/config"
	"villas-admin/pkg/logging"
)

// ErrNotConfigured 未配置对象存储
var ErrNotConfigured = errors.New("object storage is not configured")

// publicReadPolicy 匿名只读，图片 URL 直接给前端使用
const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// Client MinIO 客户端封装
type Client struct {
	mc      *minio.Client
	bucket  string
	baseURL string
	log     *logging.Logger
}

// NewClient 创建 MinIO 客户端
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "villas"
	}

	baseURL := strings.TrimSuffix(cfg.PublicURL, "/")
	if baseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, bucket)
	}

	return &Client{
		mc:      mc,
		bucket:  bucket,
		baseURL: baseURL,
		log:     logging.Default("objstore"),
	}, nil
}

// Bucket bucket 名称
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket 确保 bucket 存在并允许匿名读取
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		c.log.Info("created bucket", "bucket", c.bucket)
	}
	if err := c.mc.SetBucketPolicy(ctx, c.bucket, fmt.Sprintf(publicReadPolicy, c.bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

// PutImage 上传图片并返回对外访问 URL
func (c *Client) PutImage(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return c.ObjectURL(key), nil
}

// Delete 删除对象
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
}

// ObjectURL 对象的对外访问地址
func (c *Client) ObjectURL(key string) string {
	return c.baseURL + "/" + strings.TrimPrefix(key, "/")
}

// ImageKey 别墅图片对象键：clusters/{clusterId}/{villaId}/{random}{ext}
func ImageKey(clusterID, villaID, filename string) string {
	b := make([]byte, 8)
	rand.Read(b)
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("clusters/%s/%s/%s%s", clusterID, villaID, hex.EncodeToString(b), ext)
}
