// Package queue implements the Queue Adapter: receive, delete, and send
// messages on named SQS queues, and create new queues.
package queue

import "context"

// Attribute is a typed message attribute value, mirroring SQS's
// {DataType, StringValue} shape.
type Attribute struct {
	DataType    string
	StringValue string
}

// Message is one message received from a queue, along with enough of its
// envelope for the caller to delete it later.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]Attribute
}

// SendResult is returned by Send; it carries the queue service's own
// identifiers so the Result Verifier can confirm delivery.
type SendResult struct {
	MessageID       string
	MD5OfMessageBody string
}

// Adapter is the Queue Adapter contract consumed by the message loop and
// submission pipeline.
type Adapter interface {
	Receive(ctx context.Context, queueName string, waitSeconds, visibilitySeconds int32) ([]Message, error)
	Send(ctx context.Context, queueName string, attributes map[string]Attribute, body string) (SendResult, error)
	Delete(ctx context.Context, queueName string, msg Message) error
	Create(ctx context.Context, name string) (string, error)
}
