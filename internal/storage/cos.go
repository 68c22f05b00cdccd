package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"github.com/cosconsole/internal/model"
)

const requestTimeout = 60 * time.Second

// COS is a Provider backed by a Tencent Cloud Object Storage bucket.
type COS struct {
	client *cos.Client
	bucket string
	region string
}

// NewCOS returns a client for the bucket in cfg. It does not contact the
// bucket.
func NewCOS(cfg model.COSConfig) (Provider, error) {
	if !cfg.Complete() {
		return nil, ErrIncompleteCredentials
	}
	u, err := cos.NewBucketURL(cfg.Bucket, cfg.Region, true)
	if err != nil {
		return nil, fmt.Errorf("storage: bucket url: %w", err)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: requestTimeout,
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &COS{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

func (c *COS) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	res, _, err := c.client.Bucket.Get(ctx, &cos.BucketGetOptions{
		Prefix:  prefix,
		MaxKeys: maxKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", prefix, err)
	}
	objects := make([]ObjectInfo, 0, len(res.Contents))
	for _, o := range res.Contents {
		objects = append(objects, ObjectInfo{
			Key:          o.Key,
			Size:         o.Size,
			LastModified: o.LastModified,
			ETag:         trimETag(o.ETag),
		})
	}
	return objects, nil
}

func (c *COS) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	resp, err := c.client.Object.Put(ctx, key, body, &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return trimETag(resp.Header.Get("ETag")), nil
}

func (c *COS) Delete(ctx context.Context, key string) error {
	if _, err := c.client.Object.Delete(ctx, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (c *COS) Copy(ctx context.Context, destKey, sourceKey string) error {
	source := fmt.Sprintf("%s.cos.%s.myqcloud.com/%s", c.bucket, c.region, sourceKey)
	if _, _, err := c.client.Object.Copy(ctx, destKey, source, nil); err != nil {
		if cos.IsNotFoundError(err) {
			return fmt.Errorf("storage: copy %s: %w", sourceKey, ErrObjectNotFound)
		}
		return fmt.Errorf("storage: copy %s to %s: %w", sourceKey, destKey, err)
	}
	return nil
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
