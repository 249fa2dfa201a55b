// Command dspace-submission-service runs the submission worker and its
// operator diagnostics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MITLibraries/dspace-submission-service/internal/config"
	"github.com/MITLibraries/dspace-submission-service/internal/logging"
	"github.com/MITLibraries/dspace-submission-service/internal/loop"
	"github.com/MITLibraries/dspace-submission-service/internal/message"
	"github.com/MITLibraries/dspace-submission-service/internal/metrics"
	"github.com/MITLibraries/dspace-submission-service/internal/objectstore"
	"github.com/MITLibraries/dspace-submission-service/internal/queue"
	"github.com/MITLibraries/dspace-submission-service/internal/repository"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dspace-submission-service",
		Short: "Submit packaged items and bitstreams to DSpace from a queue of messages",
	}

	rootCmd.AddCommand(
		startCmd(),
		loadSampleInputDataCmd(),
		loadSampleOutputDataCmd(),
		createQueueCmd(),
		verifyDSpaceConnectionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func startCmd() *cobra.Command {
	var (
		queueName string
		wait      int32
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Drain the input queue once, submitting each message to DSpace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg)

			if err := cfg.ResolveSecrets(context.Background()); err != nil {
				return fmt.Errorf("failed to resolve secrets from SSM: %w", err)
			}

			if queueName != "" {
				cfg.InputQueue = queueName
			}

			adapter := queue.NewSQSAdapter(cfg.AWSRegionName, cfg.SQSEndpoint)
			reader := objectstore.NewFSReader(cfg.AWSRegionName)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-quit
				logger.Info().Msg("shutdown signal received, cancelling the message loop")
				cancel()
			}()

			go httpServeMetrics(":8081")

			l := &loop.Loop{
				Queue:             adapter,
				InputQueue:        cfg.InputQueue,
				AllowedQueues:     cfg.OutputQueues,
				WaitSeconds:       wait,
				VisibilitySeconds: 30,
				SkipProcessing:    cfg.SkipProcessing,
				Reader:            reader,
				Repositories:      repositoryResolver(cfg),
				Logger:            logger,
			}

			logger.Info().Str("input_queue", cfg.InputQueue).Msg("starting dspace-submission-service")
			if err := l.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("message loop halted")
				return err
			}
			logger.Info().Msg("input queue drained")
			return nil
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "input queue name, overrides INPUT_QUEUE")
	cmd.Flags().Int32VarP(&wait, "wait", "w", 20, "long-poll wait time in seconds (0..20)")
	return cmd
}

// repositoryResolver builds the loop.RepositoryResolver from cfg. A fresh
// DSpaceClient is logged in once per destination the first time it is
// requested and reused for the life of the process.
func repositoryResolver(cfg *config.Config) loop.RepositoryResolver {
	clients := make(map[string]repository.Client)

	return func(destination string) (repository.Client, string, float64, error) {
		creds, ok := cfg.RepositoryCredentialsFor(destination)
		if !ok {
			return nil, "", 0, fmt.Errorf("no repository configured for destination '%s'", destination)
		}

		if client, ok := clients[destination]; ok {
			return client, creds.URL, creds.Timeout, nil
		}

		client := repository.NewDSpaceClient(creds.URL, time.Duration(creds.Timeout*float64(time.Second)))
		if err := client.Login(creds.User, creds.Password); err != nil {
			return nil, "", 0, fmt.Errorf("failed to authenticate against '%s': %w", destination, err)
		}
		clients[destination] = client
		return client, creds.URL, creds.Timeout, nil
	}
}

func loadSampleInputDataCmd() *cobra.Command {
	var (
		inputQueue  string
		outputQueue string
		fixturePath string
	)

	cmd := &cobra.Command{
		Use:   "load-sample-input-data",
		Short: "Read a fixture file of sample submissions and send each as an input message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg)

			raw, err := os.ReadFile(fixturePath) //nolint:gosec // operator-supplied fixture path, not user input
			if err != nil {
				return fmt.Errorf("failed to read fixture '%s': %w", fixturePath, err)
			}

			envelopes, err := message.GenerateSubmissionMessagesFromFile(raw, outputQueue)
			if err != nil {
				return err
			}

			adapter := queue.NewSQSAdapter(cfg.AWSRegionName, cfg.SQSEndpoint)
			ctx := context.Background()
			for _, env := range envelopes {
				if _, err := adapter.Send(ctx, inputQueue, env.Attributes, env.Body); err != nil {
					return fmt.Errorf("failed to send sample submission to '%s': %w", inputQueue, err)
				}
			}

			logger.Info().Int("count", len(envelopes)).Str("queue", inputQueue).Msg("sample input data loaded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputQueue, "input-queue", "i", "", "queue to send generated submission messages to")
	cmd.Flags().StringVarP(&outputQueue, "output-queue", "o", "", "OutputQueue attribute value to stamp on each message")
	cmd.Flags().StringVarP(&fixturePath, "file", "f", "", "path to the sample input fixture file")
	_ = cmd.MarkFlagRequired("input-queue")
	_ = cmd.MarkFlagRequired("output-queue")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadSampleOutputDataCmd() *cobra.Command {
	var (
		outputQueue string
		fixturePath string
	)

	cmd := &cobra.Command{
		Use:   "load-sample-output-data",
		Short: "Read a fixture file of sample results and send each as a result message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg)

			raw, err := os.ReadFile(fixturePath) //nolint:gosec // operator-supplied fixture path, not user input
			if err != nil {
				return fmt.Errorf("failed to read fixture '%s': %w", fixturePath, err)
			}

			envelopes, err := message.GenerateResultMessagesFromFile(raw)
			if err != nil {
				return err
			}

			adapter := queue.NewSQSAdapter(cfg.AWSRegionName, cfg.SQSEndpoint)
			ctx := context.Background()
			for _, env := range envelopes {
				if _, err := adapter.Send(ctx, outputQueue, env.Attributes, env.Body); err != nil {
					return fmt.Errorf("failed to send sample result to '%s': %w", outputQueue, err)
				}
			}

			logger.Info().Int("count", len(envelopes)).Str("queue", outputQueue).Msg("sample output data loaded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputQueue, "output-queue", "o", "", "queue to send generated result messages to")
	cmd.Flags().StringVarP(&fixturePath, "file", "f", "", "path to the sample output fixture file")
	_ = cmd.MarkFlagRequired("output-queue")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func createQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-queue <name>",
		Short: "Create a named SQS queue and log its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg)

			adapter := queue.NewSQSAdapter(cfg.AWSRegionName, cfg.SQSEndpoint)
			url, err := adapter.Create(context.Background(), args[0])
			if err != nil {
				return err
			}

			logger.Info().Str("queue", args[0]).Str("url", url).Msg("queue created")
			return nil
		},
	}
}

func verifyDSpaceConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-dspace-connection",
		Short: "Log-only smoke test of the configured repository, SSM, and S3 permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg)
			ctx := context.Background()

			if err := cfg.ResolveSecrets(ctx); err != nil {
				return fmt.Errorf("failed to resolve secrets from SSM: %w", err)
			}

			client := repository.NewDSpaceClient(cfg.DSpaceAPIURL, time.Duration(cfg.DSpaceTimeout*float64(time.Second)))
			if err := client.Login(cfg.DSpaceUser, cfg.DSpacePassword); err != nil {
				logger.Error().Err(err).Str("url", cfg.DSpaceAPIURL).Msg("verify-dspace-connection failed")
				return err
			}
			logger.Info().Str("url", cfg.DSpaceAPIURL).Msg("verify-dspace-connection succeeded")

			verifySSMPermissions(ctx, logger, cfg)
			verifyS3Permissions(ctx, logger, cfg)

			return nil
		},
	}
}

// verifySSMPermissions logs the result of the SSM permissions smoke test.
// A no-op when no SSMParameterPath is configured.
func verifySSMPermissions(ctx context.Context, logger zerolog.Logger, cfg *config.Config) {
	if cfg.SSMParameterPath == "" {
		return
	}

	resolver, err := config.NewResolver(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build SSM client for permissions check")
		return
	}

	msg, err := resolver.CheckPermissions(ctx, cfg.SSMParameterPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.SSMParameterPath).Msg("SSM permissions check failed")
		return
	}
	logger.Info().Msg(msg)
}

// verifyS3Permissions logs the result of the S3 permissions smoke test. A
// no-op when no S3Buckets are configured.
func verifyS3Permissions(ctx context.Context, logger zerolog.Logger, cfg *config.Config) {
	if len(cfg.S3Buckets) == 0 {
		return
	}

	msg, err := objectstore.CheckPermissions(ctx, cfg.AWSRegionName, cfg.S3Buckets)
	if err != nil {
		logger.Error().Err(err).Msg("S3 permissions check failed")
		return
	}
	logger.Info().Msg(msg)
}

// httpServeMetrics starts the /metrics endpoint. Bind failures are logged
// but never fatal: metrics are a diagnostic aid, not load-bearing.
func httpServeMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	_ = srv.ListenAndServe()
}
