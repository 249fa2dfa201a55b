// Package config loads the immutable, process-wide configuration for the
// submission service. It is built once at startup and passed by
// reference into every component constructor.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RepositoryCredentials are the connection details for one named
// repository instance.
type RepositoryCredentials struct {
	URL      string
	User     string
	Password string
	Timeout  float64
}

// Config holds configuration for the submission service.
type Config struct {
	Workspace string

	DSpaceAPIURL      string
	DSpaceUser        string
	DSpacePassword    string
	DSpaceTimeout     float64
	LocalDSpaceAPIURL string
	LocalDSpaceUser   string
	LocalDSpacePass   string

	InputQueue    string
	OutputQueues  []string
	SQSEndpoint   string
	AWSRegionName string

	// DSpacePasswordSSMPath, when set, names the SSM Parameter Store key
	// ResolveSecrets reads DSpacePassword from instead of the
	// DSPACE_PASSWORD env var.
	DSpacePasswordSSMPath string
	// SSMParameterPath and S3Buckets back the verify-dspace-connection
	// diagnostic's optional SSM/S3 permission checks; both are empty (and
	// the corresponding check skipped) unless an operator configures them.
	SSMParameterPath string
	S3Buckets        []string

	LogLevel  string
	LogFilter string

	SkipProcessing bool
}

// Load builds configuration from environment variables. WORKSPACE is
// required; its absence is a fatal startup condition.
func Load() (*Config, error) {
	workspace, ok := os.LookupEnv("WORKSPACE")
	if !ok || workspace == "" {
		return nil, fmt.Errorf("env variable 'WORKSPACE' is required, please set it and try again")
	}

	cfg := &Config{
		Workspace:             workspace,
		AWSRegionName:         "us-east-1",
		DSpaceAPIURL:          getEnv("DSPACE_API_URL", ""),
		DSpaceUser:            getEnv("DSPACE_USER", ""),
		DSpacePassword:        getEnv("DSPACE_PASSWORD", ""),
		DSpaceTimeout:         getEnvFloat("DSPACE_TIMEOUT", 120.0),
		LocalDSpaceAPIURL:     getEnv("LOCAL_DSPACE_API_URL", ""),
		LocalDSpaceUser:       getEnv("LOCAL_DSPACE_USER", ""),
		LocalDSpacePass:       getEnv("LOCAL_DSPACE_PASSWORD", ""),
		InputQueue:            getEnv("INPUT_QUEUE", ""),
		OutputQueues:          splitCSV(getEnv("OUTPUT_QUEUES", "output")),
		SQSEndpoint:           getEnv("SQS_ENDPOINT_URL", ""),
		DSpacePasswordSSMPath: getEnv("DSPACE_PASSWORD_SSM_PATH", ""),
		SSMParameterPath:      getEnv("SSM_PARAMETER_PATH", ""),
		S3Buckets:             splitCSV(getEnv("S3_BUCKETS", "")),
		LogLevel:              strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFilter:             strings.ToLower(getEnv("LOG_FILTER", "true")),
		SkipProcessing:        strings.ToLower(getEnv("SKIP_PROCESSING", "false")) == "true",
	}

	if workspace == "test" {
		applyTestProfile(cfg)
	}

	return cfg, nil
}

// applyTestProfile overrides cfg in place with the literal test profile
// values. It is not a branch inside every getter — configuration for the
// test workspace is data, not control flow.
func applyTestProfile(cfg *Config) {
	cfg.DSpaceAPIURL = "mock://dspace.edu/rest/"
	cfg.DSpaceUser = "test"
	cfg.DSpacePassword = "test"
	cfg.DSpaceTimeout = 3.0
	cfg.LocalDSpaceAPIURL = "mock://dspace.edu/server/api"
	cfg.LocalDSpaceUser = "local_test"
	cfg.LocalDSpacePass = "local_test"
	cfg.InputQueue = "test_queue_with_messages"
	cfg.LogFilter = "true"
	cfg.LogLevel = "INFO"
	cfg.SkipProcessing = false
	cfg.SQSEndpoint = "https://sqs.us-east-1.amazonaws.com/"
	cfg.OutputQueues = []string{"empty_result_queue"}
}

// RepositoryCredentialsFor returns the credentials for a named repository
// instance. Operators routing submissions to more than one DSpace
// instance select between them by this name (the SubmissionSystem field
// of the submission body).
func (c *Config) RepositoryCredentialsFor(name string) (RepositoryCredentials, bool) {
	switch name {
	case "DSpace@MIT":
		return RepositoryCredentials{
			URL:      c.DSpaceAPIURL,
			User:     c.DSpaceUser,
			Password: c.DSpacePassword,
			Timeout:  c.DSpaceTimeout,
		}, true
	case "DSpace8Local":
		return RepositoryCredentials{
			URL:      c.LocalDSpaceAPIURL,
			User:     c.LocalDSpaceUser,
			Password: c.LocalDSpacePass,
			Timeout:  c.DSpaceTimeout,
		}, true
	default:
		return RepositoryCredentials{}, false
	}
}

// OutputQueueAllowed reports whether queue is on the configured
// allow-list.
func (c *Config) OutputQueueAllowed(queue string) bool {
	for _, q := range c.OutputQueues {
		if q == queue {
			return true
		}
	}
	return false
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultVal
}
