// Package publish uploads built artifacts to S3.
package publish

import (
	"context"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/loom-dev/loom/internal/errors"
	"github.com/loom-dev/loom/internal/toolchain"
)

// ObjectPutter is the slice of the S3 API the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads an output directory to a bucket.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewPublisher creates a publisher over an existing client.
func NewPublisher(client ObjectPutter, bucket, prefix string) *Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Publisher{client: client, bucket: bucket, prefix: prefix}
}

// NewPublisherFromEnv builds an S3 client from the default AWS credential
// chain.
func NewPublisherFromEnv(ctx context.Context, bucket, prefix, region string) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E501").
			WithSuggestion("Check your AWS credentials and region").
			Wrap(err)
	}
	return NewPublisher(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Publish walks dir and uploads every regular file, keyed by its path
// relative to dir. The staging area and the server binary are skipped; a
// published site is static artifacts only.
func (p *Publisher) Publish(ctx context.Context, dir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(dir, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, fp)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == toolchain.ServerArtifact {
			return nil
		}

		if err := p.put(ctx, fp, rel); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		if le, ok := err.(*errors.LoomError); ok {
			return uploaded, le
		}
		return uploaded, errors.New("E501").Wrap(err)
	}

	slog.Info("published artifacts", "bucket", p.bucket, "count", uploaded)
	return uploaded, nil
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return errors.New("E501").WithDetail("could not read " + file).Wrap(err)
	}
	defer f.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.prefix + key),
		Body:        f,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return errors.New("E501").WithDetail("could not upload " + key).Wrap(err)
	}

	slog.Debug("uploaded artifact", "key", p.prefix+key)
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".wasm":
		return "application/wasm"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
