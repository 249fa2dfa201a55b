package queue

import (
	"context"
	"crypto/md5" //nolint:gosec // delivery check, not a cryptographic use; matches the queue service's own digest
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fake is an in-memory Adapter used by tests. It mirrors the real SQS semantics the
// submission pipeline depends on: FIFO-ish delivery within a queue,
// receipt-handle deletes, and an MD5 digest on send.
type Fake struct {
	mu     sync.Mutex
	queues map[string][]Message
}

// NewFake returns an empty Fake queue set.
func NewFake() *Fake {
	return &Fake{queues: make(map[string][]Message)}
}

func (f *Fake) Receive(_ context.Context, queueName string, _, _ int32) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.queues[queueName]
	if len(msgs) > 10 {
		msgs = msgs[:10]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *Fake) Send(_ context.Context, queueName string, attributes map[string]Attribute, body string) (SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum := md5.Sum([]byte(body)) //nolint:gosec
	msg := Message{
		ID:            uuid.NewString(),
		ReceiptHandle: uuid.NewString(),
		Body:          body,
		Attributes:    attributes,
	}
	f.queues[queueName] = append(f.queues[queueName], msg)

	return SendResult{
		MessageID:        msg.ID,
		MD5OfMessageBody: hex.EncodeToString(sum[:]),
	}, nil
}

func (f *Fake) Delete(_ context.Context, queueName string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	remaining := f.queues[queueName][:0]
	for _, m := range f.queues[queueName] {
		if m.ReceiptHandle != msg.ReceiptHandle {
			remaining = append(remaining, m)
		}
	}
	f.queues[queueName] = remaining
	return nil
}

func (f *Fake) Create(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.queues[name]; !ok {
		f.queues[name] = nil
	}
	return fmt.Sprintf("fake://queues/%s", name), nil
}

// Messages returns a snapshot of the messages currently queued under
// queueName. Test-only helper.
func (f *Fake) Messages(queueName string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.queues[queueName]))
	copy(out, f.queues[queueName])
	return out
}
