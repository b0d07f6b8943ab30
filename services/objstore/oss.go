package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// OSSStore keeps objects in an Aliyun OSS bucket.
type OSSStore struct {
	bucket  *oss.Bucket
	baseURL string
}

var _ core.ObjectStore = (*OSSStore)(nil)

func NewOSSStore(conf core.StorageConfig) (*OSSStore, error) {
	client, err := oss.New(conf.OSSEndpoint, conf.OSSKeyID, conf.OSSKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "creating oss client")
	}
	bucket, err := client.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "opening oss bucket")
	}

	baseURL := strings.TrimRight(conf.PublicBaseURL, "/")
	if baseURL == "" {
		end := strings.TrimPrefix(strings.TrimPrefix(conf.OSSEndpoint, "https://"), "http://")
		baseURL = fmt.Sprintf("https://%s.%s", conf.OSSBucket, end)
	}
	return &OSSStore{bucket: bucket, baseURL: baseURL}, nil
}

func (s *OSSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", errors.Wrap(err, "uploading object")
	}
	return s.baseURL + "/" + key, nil
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.bucket.DeleteObject(key, oss.WithContext(ctx)), "deleting object")
}

func (s *OSSStore) BaseURL() string { return s.baseURL }
