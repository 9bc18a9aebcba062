package queue

import (
	"fmt"

	"muhasibi/internal/util"
	"muhasibi/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Queue names. Run traces and feedback are appended off the request hot
// path through these queues.
const (
	RunTraceQueue = "run_trace_queue"
	FeedbackQueue = "feedback_queue"
)

// Queues lists every queue the worker consumes.
var Queues = []string{RunTraceQueue, FeedbackQueue}

// Init connects to RabbitMQ using the environment configuration.
func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the durable queues plus a dead-letter queue per
// queue for messages that fail processing.
func SetupQueues(ch *amqp091.Channel) error {
	for _, name := range Queues {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}

		_, err = ch.QueueDeclare(
			name+"_dlq",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s_dlq: %w", name, err)
		}
	}
	return nil
}

// Publish sends a persistent message to a queue.
func Publish(ch *amqp091.Channel, queueName string, body []byte) error {
	return ch.Publish(
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		},
	)
}

// DeadLetter moves a poisoned message to the queue's DLQ.
func DeadLetter(ch *amqp091.Channel, queueName string, msg amqp091.Delivery) {
	if err := Publish(ch, queueName+"_dlq", msg.Body); err != nil {
		logger.Error("Failed to dead-letter message", "queue", queueName, "err", err)
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack dead-lettered message", "queue", queueName, "err", err)
	}
}
