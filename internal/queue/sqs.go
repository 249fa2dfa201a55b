package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAdapter is the Adapter implementation backed by AWS SQS. A fresh
// client is built per call; the adapter itself carries no state across
// the process boundary.
type SQSAdapter struct {
	region      string
	endpointURL string
}

// NewSQSAdapter builds an SQSAdapter for the given AWS region, optionally
// pointed at a local/test SQS endpoint (SQS_ENDPOINT_URL).
func NewSQSAdapter(region, endpointURL string) *SQSAdapter {
	return &SQSAdapter{region: region, endpointURL: endpointURL}
}

func (a *SQSAdapter) client(ctx context.Context) (*sqs.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(a.region)}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if a.endpointURL != "" {
			o.BaseEndpoint = aws.String(a.endpointURL)
		}
	}), nil
}

func (a *SQSAdapter) queueURL(ctx context.Context, client *sqs.Client, name string) (string, error) {
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue '%s': %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// Receive polls a queue for up to 10 messages, requesting all attribute
// names, long-polling for waitSeconds and reserving messages for
// visibilitySeconds.
func (a *SQSAdapter) Receive(ctx context.Context, queueName string, waitSeconds, visibilitySeconds int32) ([]Message, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	url, err := a.queueURL(ctx, client, queueName)
	if err != nil {
		return nil, err
	}

	out, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   10,
		WaitTimeSeconds:       waitSeconds,
		VisibilityTimeout:     visibilitySeconds,
		MessageAttributeNames: []string{"All"},
		AttributeNames:        []types.QueueAttributeName{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages from '%s': %w", queueName, err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		attrs := make(map[string]Attribute, len(m.MessageAttributes))
		for k, v := range m.MessageAttributes {
			attrs[k] = Attribute{
				DataType:    aws.ToString(v.DataType),
				StringValue: aws.ToString(v.StringValue),
			}
		}
		messages = append(messages, Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    attrs,
		})
	}
	return messages, nil
}

// Send publishes a message to queueName and returns the queue service's
// own MessageId and MD5OfMessageBody so the Result Verifier can confirm
// delivery.
func (a *SQSAdapter) Send(ctx context.Context, queueName string, attributes map[string]Attribute, body string) (SendResult, error) {
	client, err := a.client(ctx)
	if err != nil {
		return SendResult{}, err
	}
	url, err := a.queueURL(ctx, client, queueName)
	if err != nil {
		return SendResult{}, err
	}

	msgAttrs := make(map[string]types.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		msgAttrs[k] = types.MessageAttributeValue{
			DataType:    aws.String(v.DataType),
			StringValue: aws.String(v.StringValue),
		}
	}

	out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(url),
		MessageBody:       aws.String(body),
		MessageAttributes: msgAttrs,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to send message to '%s': %w", queueName, err)
	}

	return SendResult{
		MessageID:        aws.ToString(out.MessageId),
		MD5OfMessageBody: aws.ToString(out.MD5OfMessageBody),
	}, nil
}

// Delete removes msg from queueName by its receipt handle.
func (a *SQSAdapter) Delete(ctx context.Context, queueName string, msg Message) error {
	client, err := a.client(ctx)
	if err != nil {
		return err
	}
	url, err := a.queueURL(ctx, client, queueName)
	if err != nil {
		return err
	}

	_, err = client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message from '%s': %w", queueName, err)
	}
	return nil
}

// Create creates a new queue named name and returns its URL.
func (a *SQSAdapter) Create(ctx context.Context, name string) (string, error) {
	client, err := a.client(ctx)
	if err != nil {
		return "", err
	}

	out, err := client.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to create queue '%s': %w", name, err)
	}
	return aws.ToString(out.QueueUrl), nil
}
