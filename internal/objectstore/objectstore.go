// Package objectstore implements the Object Reader: opening a
// URI-addressed byte stream for metadata JSON and bitstream payloads,
// whether the URI points at the local filesystem, S3, or HTTP(S).
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// NotFoundError is returned by Open when the source URI cannot be
// located, distinguishable from a network/transport error so that
// callers can classify bitstream-open failures separately from
// bitstream-post failures.
type NotFoundError struct {
	URI string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not open '%s': %v", e.URI, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransportError is returned when an S3 GetObject call fails for a reason
// other than a missing key or bucket (throttling, auth failures, network
// errors), or when an HTTP(S) request fails before any response arrives. Kept distinguishable from NotFoundError so a transient failure
// is never mistaken for "there was nothing to read".
type TransportError struct {
	URI string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to read '%s': %v", e.URI, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reader is the Object Reader contract: open a byte stream for a
// URI-addressed metadata document or bitstream payload.
type Reader interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// FSReader opens local filesystem paths, s3:// URIs, and http(s):// URIs.
type FSReader struct {
	region string
}

// NewFSReader builds a Reader for the given AWS region (used only for
// s3:// URIs).
func NewFSReader(region string) *FSReader {
	return &FSReader{region: region}
}

// Open returns a readable byte stream for uri. The caller is responsible
// for closing it once fully consumed.
func (r *FSReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, &NotFoundError{URI: uri, Err: err}
	}

	switch strings.ToLower(parsed.Scheme) {
	case "", "file":
		return r.openFile(uri)
	case "s3":
		return r.openS3(ctx, parsed)
	case "http", "https":
		return r.openHTTP(ctx, uri)
	default:
		return nil, &NotFoundError{URI: uri, Err: fmt.Errorf("unsupported scheme '%s'", parsed.Scheme)}
	}
}

func (r *FSReader) openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // path originates from a trusted submission message, not raw user input
	if err != nil {
		return nil, &NotFoundError{URI: path, Err: err}
	}
	return f, nil
}

func (r *FSReader) openS3(ctx context.Context, parsed *url.URL) (io.ReadCloser, error) {
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(r.region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, classifyS3Error(parsed.String(), err)
	}
	return out.Body, nil
}

// classifyS3Error keeps "the object does not exist" distinguishable from
// a transport/network/permissions failure so compensation logic never
// treats a transient outage as nothing-to-clean-up.
func classifyS3Error(uri string, err error) error {
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return &NotFoundError{URI: uri, Err: err}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return &NotFoundError{URI: uri, Err: err}
	}

	return &TransportError{URI: uri, Err: err}
}

func (r *FSReader) openHTTP(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &NotFoundError{URI: uri, Err: err}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &TransportError{URI: uri, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, &NotFoundError{URI: uri, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp.Body, nil
}
