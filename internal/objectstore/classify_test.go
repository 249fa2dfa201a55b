package objectstore

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestClassifyS3ErrorNoSuchKeyIsNotFound(t *testing.T) {
	err := classifyS3Error("s3://bucket/missing.pdf", &types.NoSuchKey{})

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClassifyS3ErrorNoSuchBucketIsNotFound(t *testing.T) {
	err := classifyS3Error("s3://missing-bucket/key.pdf", &types.NoSuchBucket{})

	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClassifyS3ErrorOtherFailureIsTransport(t *testing.T) {
	err := classifyS3Error("s3://bucket/key.pdf", errors.New("connection reset by peer"))

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}
