package queue

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/logging"
)

// AMQPQueue publishes JSON payloads to a durable RabbitMQ queue for
// consumers outside this process. Every topic goes to the same queue; the
// topic travels in the message type.
type AMQPQueue struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
}

func DialAMQP(url, queueName string, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open a channel")
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "failed to declare queue")
	}
	logger = logging.OrNop(logger)
	logger.Info("connected to RabbitMQ", zap.String("queue", q.Name))
	return &AMQPQueue{conn: conn, ch: ch, name: q.Name}, nil
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode payload")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish("", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         topic,
		Body:         body,
	})
	return errors.Wrapf(err, "publish to %s", q.name)
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return errors.Wrap(q.conn.Close(), "close connection")
}
