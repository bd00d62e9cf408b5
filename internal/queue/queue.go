package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/clubops/notify-engine/internal/domain"
)

// Publisher publishes dispatch messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DispatchMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg DispatchMessage) error

// Consumer consumes dispatch messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

var supportedChannels = []domain.Channel{
	domain.ChannelRouted,
	domain.ChannelDirect,
}

// QueueName returns the channel work queue name, e.g. dispatch.routed.
func QueueName(channel domain.Channel) string {
	return fmt.Sprintf("dispatch.%s", strings.ToLower(channel.String()))
}

// DLQName returns the dead-letter queue name for a channel.
func DLQName(channel domain.Channel) string {
	return fmt.Sprintf("dlq.%s", QueueName(channel))
}

// WorkQueueNames returns all channel work queues.
func WorkQueueNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, QueueName(channel))
	}
	return queues
}

// DLQNames returns all dead-letter queues.
func DLQNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, DLQName(channel))
	}
	return queues
}
