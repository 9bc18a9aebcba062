// The worker drains the run-trace and feedback queues into the append-only
// run store. A Postgres lease keeps a single active writer so the log
// never interleaves duplicate appends across worker replicas.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"muhasibi/internal/queue"
	"muhasibi/internal/util"
	"muhasibi/pkg/leaselock"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/logger/console"
	storepgx "muhasibi/pkg/store/pgx"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.New(console.Params{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	runs := storepgx.New(pgConn)

	// Single active writer: wait for the lease before consuming.
	var lease *leaselock.Lease
	for {
		lease, err = leaselock.Acquire(ctx, pgConn, "trace_writer", time.Minute)
		if err == nil {
			break
		}
		if err != leaselock.ErrBusy {
			logger.Fatal("Failed to acquire writer lease", "err", err)
		}
		logger.Info("Another worker holds the writer lease, waiting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer lease.Release(context.Background())

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}
	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				qName+"_consumer",
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("Listening for messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping worker")
			return
		case <-lease.Ctx.Done():
			logger.Error("Writer lease lost, stopping worker")
			return
		case qm := <-messageChan:
			var processingErr error
			switch qm.queueName {
			case queue.RunTraceQueue:
				processingErr = queue.ProcessRunTrace(ctx, runs, qm.msg.Body)
			case queue.FeedbackQueue:
				processingErr = queue.ProcessFeedback(ctx, runs, qm.msg.Body)
			}

			if processingErr != nil {
				logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
				queue.DeadLetter(ch, qm.queueName, qm.msg)
				continue
			}
			if err := qm.msg.Ack(false); err != nil {
				logger.Error("Failed to ack message", "err", err)
			}
		}
	}
}
