package network

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3ObjectGetter is the one S3 operation the artifact fetcher needs.
// It's defined as an interface so tests can supply objects without
// an S3 server. Workers only read from storage; they never need
// bucket or write access.
type S3ObjectGetter interface {
	// GetObject returns a reader for the object and its size.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
}

// MinioObjectGetter reads objects through a minio client.
type MinioObjectGetter struct {
	Client *minio.Client
}

// NewMinioClient returns a minio client for the S3-compatible
// endpoint at host. Bucket lookup is forced to path style, which is
// what MinIO deployments expect.
func NewMinioClient(host, keyID, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(keyID, secretKey, ""),
		Secure:       useSSL,
		BucketLookup: minio.BucketLookupPath,
	})
}

// NewMinioObjectGetter wraps client.
func NewMinioObjectGetter(client *minio.Client) *MinioObjectGetter {
	return &MinioObjectGetter{Client: client}
}

// GetObject stats and opens the object. Minio opens objects lazily,
// so the Stat call is what surfaces missing keys and auth errors.
// Those come back as *HttpError carrying the S3 status code.
func (g *MinioObjectGetter) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	url := fmt.Sprintf("s3://%s/%s", bucket, key)
	obj, err := g.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, -1, s3Error(url, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, -1, s3Error(url, err)
	}
	return obj, info.Size, nil
}

func s3Error(url string, err error) *HttpError {
	status := minio.ToErrorResponse(err).StatusCode
	message := fmt.Sprintf("GET %s: %s", url, err.Error())
	if status != 0 {
		message = fmt.Sprintf("GET %s: HTTP %d (%s)", url, status, err.Error())
	}
	return NewHttpError(message, err, http.MethodGet, url, status)
}
