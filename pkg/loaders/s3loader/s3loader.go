// Package s3loader adapts S3 object fetches into resource loaders.
//
// The loader functions it produces plug directly into resource.Config, so a
// cell holding an object key becomes a reactively reloading S3 read:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	loader := s3loader.New(s3.NewFromConfig(cfg), "my-bucket")
//
//	key := reactive.NewCell(g, "configs/flags.json")
//	flags := resource.New(g, resource.Config[string, Flags]{
//	    Request: func() (string, bool) { return key.Get(), true },
//	    Loader:  s3loader.JSON[Flags](loader),
//	})
//
// Requests superseded mid-flight get their context canceled, which aborts
// the underlying HTTP request.
package s3loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the slice of the S3 client the loader needs. *s3.Client
// satisfies it; tests can substitute a stub.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Loader fetches objects from one bucket.
type Loader struct {
	client  ObjectGetter
	bucket  string
	maxSize int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxSize caps object size in bytes. Reads past the cap fail rather
// than truncate. 0 means no limit.
func WithMaxSize(n int64) Option {
	return func(l *Loader) { l.maxSize = n }
}

// New creates a loader reading from the given bucket.
func New(client ObjectGetter, bucket string, opts ...Option) *Loader {
	l := &Loader{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bytes returns a resource loader that fetches the keyed object's body.
func (l *Loader) Bytes() func(ctx context.Context, key string) ([]byte, error) {
	return l.fetch
}

// JSON returns a resource loader that fetches the keyed object and decodes
// it as JSON into T.
func JSON[T any](l *Loader) func(ctx context.Context, key string) (T, error) {
	return func(ctx context.Context, key string) (T, error) {
		var out T
		data, err := l.fetch(ctx, key)
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("s3loader: decoding %s/%s: %w", l.bucket, key, err)
		}
		return out, nil
	}
}

func (l *Loader) fetch(ctx context.Context, key string) ([]byte, error) {
	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3loader: fetching %s/%s: %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	body := io.Reader(result.Body)
	if l.maxSize > 0 {
		body = io.LimitReader(body, l.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3loader: reading %s/%s: %w", l.bucket, key, err)
	}
	if l.maxSize > 0 && int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("s3loader: object %s/%s exceeds %d bytes", l.bucket, key, l.maxSize)
	}
	return data, nil
}
