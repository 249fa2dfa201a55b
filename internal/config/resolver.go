package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Resolver fetches decrypted parameters from AWS Systems Manager
// Parameter Store: decrypted parameter retrieval plus a permissions
// smoke test used by the verify-dspace-connection CLI command.
type Resolver struct {
	client *ssm.Client
}

// NewResolver builds a Resolver using the default AWS credential chain
// for region us-east-1.
func NewResolver(ctx context.Context) (*Resolver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SSM: %w", err)
	}
	return &Resolver{client: ssm.NewFromConfig(awsCfg)}, nil
}

// GetParameterValue returns the decrypted value stored under key.
func (r *Resolver) GetParameterValue(ctx context.Context, key string) (string, error) {
	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("parameter '%s' not found: %w", key, err)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// ResolveSecrets overwrites cfg.DSpacePassword with the decrypted value
// stored at cfg.DSpacePasswordSSMPath, when that path is set. A no-op
// otherwise, so the test workspace and deployments that set
// DSPACE_PASSWORD directly are unaffected.
func (cfg *Config) ResolveSecrets(ctx context.Context) error {
	if cfg.DSpacePasswordSSMPath == "" {
		return nil
	}

	resolver, err := NewResolver(ctx)
	if err != nil {
		return err
	}

	value, err := resolver.GetParameterValue(ctx, cfg.DSpacePasswordSSMPath)
	if err != nil {
		return err
	}
	cfg.DSpacePassword = value
	return nil
}

// CheckPermissions verifies that an encrypted parameter beneath path can
// be retrieved and decrypted. Used by an operator-facing diagnostic, not
// by the submission hot path.
func (r *Resolver) CheckPermissions(ctx context.Context, path string) (string, error) {
	value, err := r.GetParameterValue(ctx, path+"secure")
	if err != nil {
		return "", err
	}
	if value != "true" {
		return "", fmt.Errorf("was not able to successfully retrieve encrypted SSM parameter at '%s'", path)
	}
	return fmt.Sprintf("SSM permissions confirmed for path '%s'", path), nil
}
