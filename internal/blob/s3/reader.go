package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// Reader implements domain.BlobReader using an S3-compatible backend.
type Reader struct {
	c *Client
}

// NewReader creates a Reader over the client's bucket and prefix.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// Get returns the body of the object named by ref, either a path under the
// configured prefix or an s3://bucket/key URI. The caller closes it. A missing
// object yields an error wrapping domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := r.c.Locate(ref)
	if err != nil {
		return nil, err
	}
	return r.get(ctx, bucket, key)
}

func (r *Reader) get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := r.c.S3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s/%s: %w", bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// Exists reports whether the object named by ref is stored. ref is resolved
// the same way as in Get.
func (r *Reader) Exists(ctx context.Context, ref string) (bool, error) {
	bucket, key, err := r.c.Locate(ref)
	if err != nil {
		return false, err
	}
	_, err = r.c.S3().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: exists %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// isNotFound matches NoSuchKey, the bare 404 HeadObject returns, and 404
// responses from providers that use neither type.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

// Compile-time interface check.
var _ domain.BlobReader = (*Reader)(nil)
