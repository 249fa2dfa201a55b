package objectstore

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// CheckPermissions verifies ListObjectsV2 permission for every bucket
// named, and GetObject permission on the first object listed in each; a
// bucket with no objects is confirmed on the list call alone. It backs the verify-dspace-connection CLI
// diagnostic rather than the processing hot path.
func CheckPermissions(ctx context.Context, region string, buckets []string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	confirmed := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		bucket := bucket
		listOut, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &bucket, MaxKeys: int32Ptr(1)})
		if err != nil {
			return "", fmt.Errorf("failed to list objects in bucket '%s': %w", bucket, err)
		}
		for _, obj := range listOut.Contents {
			if _, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: obj.Key}); err != nil {
				return "", fmt.Errorf("failed to get object '%s' from bucket '%s': %w", *obj.Key, bucket, err)
			}
		}
		confirmed = append(confirmed, bucket)
	}

	return fmt.Sprintf("S3 list objects and get object permissions confirmed for buckets: %v", confirmed), nil
}

func int32Ptr(v int32) *int32 { return &v }
