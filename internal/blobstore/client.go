// Package blobstore is the thin wrapper around the AWS S3 SDK that backs
// the object fetcher (C2) and the ingestor's enumeration of a bucket.
//
// It follows the shape of a vendor-SDK wrapper: a Client struct built
// around the underlying SDK client, constructed once and shared, exposing
// typed methods instead of leaking the raw SDK types past this package's
// boundary (List yields ListedObject values; the SDK's types package is used
// only internally, to recognise not-found errors).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxObjectSize is the hard cap on object size the fetcher will download,
// per spec.md §4.2 (100 MiB).
const MaxObjectSize = 100 * 1024 * 1024

// supportedSuffixes are the object key extensions the worker will pass to
// the detector library; anything else is short-circuited by the caller.
var supportedSuffixes = []string{".txt", ".csv", ".json", ".log"}

// Sentinel errors surfaced by Fetch, matching spec.md §7's error kinds.
var (
	ErrNotFound = errors.New("blobstore: object not found")
	ErrTooLarge = errors.New("blobstore: object exceeds size cap")
)

// Client wraps an S3 client for a single region.
type Client struct {
	s3 *s3.Client
}

// NewClient builds a Client from the ambient AWS configuration (region,
// credentials) following the default credential chain.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	log.Printf("[Blobstore] S3 client configured for region %s", region)
	return &Client{s3: s3.NewFromConfig(cfg)}, nil
}

// IsSupported reports whether key's suffix is one the scanner can decode.
func IsSupported(key string) bool {
	lower := strings.ToLower(key)
	for _, suf := range supportedSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// Fetch retrieves bucket/key, failing fast with ErrTooLarge if the object
// exceeds MaxObjectSize without downloading it. The returned entity-tag has
// surrounding quote characters stripped. Invalid UTF-8 in the body is
// replaced with the Unicode replacement character rather than failing.
func (c *Client) Fetch(ctx context.Context, bucket, key string) (content, entityTag string, err error) {
	head, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", "", fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return "", "", fmt.Errorf("head object %s/%s: %w", bucket, key, err)
	}

	if head.ContentLength != nil && *head.ContentLength > MaxObjectSize {
		return "", "", fmt.Errorf("%w: %s/%s is %d bytes", ErrTooLarge, bucket, key, *head.ContentLength)
	}

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", "", fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return "", "", fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", "", fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	// Invalid UTF-8 sequences become the replacement character rather than
	// a hard failure, per spec.md §4.2.
	text := strings.ToValidUTF8(string(raw), "�")

	tag := ""
	if out.ETag != nil {
		tag = strings.Trim(*out.ETag, `"`)
	} else if head.ETag != nil {
		tag = strings.Trim(*head.ETag, `"`)
	}

	return text, tag, nil
}

// ListedObject is one entry of a bucket listing.
type ListedObject struct {
	Key       string
	EntityTag string
	Size      int64
}

// List pages through bucket filtered by prefix, up to 1000 keys per page,
// following continuation tokens until exhausted, invoking fn for each
// non-zero-size object. It stops and returns fn's error if fn returns one.
func (c *Client) List(ctx context.Context, bucket, prefix string, fn func(ListedObject) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(1000),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects %s (prefix %q): %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Size == nil || *obj.Size == 0 {
				continue
			}
			if obj.Key == nil {
				continue
			}
			tag := ""
			if obj.ETag != nil {
				tag = strings.Trim(*obj.ETag, `"`)
			}
			if err := fn(ListedObject{Key: *obj.Key, EntityTag: tag, Size: *obj.Size}); err != nil {
				return err
			}
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nb *types.NotFound
	return errors.As(err, &nb)
}

// DefaultTimeout is the 30-second figure for a single blob-store operation
// (spec.md §5). Fetch and List do not apply it themselves; they run under
// whatever deadline the caller's context carries.
const DefaultTimeout = 30 * time.Second
