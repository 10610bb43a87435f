package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/errors"
)

// maxPayloadSize caps a produced message read from a file or stdin.
const maxPayloadSize = 10 << 20

func newProduceCmd(a *app) *cobra.Command {
	var topic, file, message string

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Push a message to a Kafka topic",
		Example: `  exchange produce -t readings -m '{"temp_c": 11.5}'
  exchange produce -t readings -f reading.json
  cat reading.json | exchange produce -t readings -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := a.readPayload(file, message)
			if err != nil {
				return err
			}

			producer, err := a.newProducer()
			if err != nil {
				return err
			}
			defer func() {
				if err := producer.Close(); err != nil {
					a.logger.Warn("Closing producer failed", "error", err)
				}
			}()

			result, err := producer.Produce(cmd.Context(), topic, payload)
			if err != nil {
				return err
			}
			a.logger.Info("Data pushed to Kafka", "topic", topic, "bytes", result.Bytes)
			return a.printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic name")
	cmd.Flags().StringVarP(&file, "file", "f", "", "File holding the message, - for stdin")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message text")
	_ = cmd.MarkFlagRequired("topic")
	cmd.MarkFlagsMutuallyExclusive("file", "message")
	cmd.MarkFlagsOneRequired("file", "message")
	return cmd
}

// readPayload returns the literal message or the content of file, where
// "-" reads stdin.
func (a *app) readPayload(file, message string) ([]byte, error) {
	if message != "" {
		return []byte(message), nil
	}

	var r io.Reader
	if file == "-" {
		r = a.stdin
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.WrapInvalid(err, "produce", "readPayload", "open "+file)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, errors.WrapInvalid(err, "produce", "readPayload", "read "+file)
	}
	if len(data) > maxPayloadSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: message exceeds %d bytes", errors.ErrInvalidData, maxPayloadSize), "produce", "readPayload", "read "+file)
	}
	return data, nil
}

// consumeOutput is the printed form of a consume run.
type consumeOutput struct {
	Topic      string          `json:"topic"`
	Count      int             `json:"count"`
	TotalBytes int             `json:"total_bytes"`
	Messages   json.RawMessage `json:"messages"`
}

func newConsumeCmd(a *app) *cobra.Command {
	var topic string
	var ttl int

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Read every pending message from a Kafka topic",
		Long: `Read messages from a topic as a member of the configured consumer group.

Each poll waits up to --ttl seconds. Consumption stops after several polls in
a row return nothing; every message is committed as it is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				return fmt.Errorf("invalid ttl: %d, must be a positive number of seconds", ttl)
			}

			consumer, err := a.newConsumer(topic)
			if err != nil {
				return err
			}
			defer func() {
				if err := consumer.Close(); err != nil {
					a.logger.Warn("Closing consumer failed", "error", err)
				}
			}()

			result, err := consumer.Consume(cmd.Context(), time.Duration(ttl)*time.Second)
			if err != nil {
				return err
			}
			a.logger.Info("Data read from Kafka", "topic", topic, "count", result.Count, "bytes", result.TotalBytes)

			messages, err := result.JSON()
			if err != nil {
				return err
			}
			return a.printJSON(consumeOutput{
				Topic:      result.Topic,
				Count:      result.Count,
				TotalBytes: result.TotalBytes,
				Messages:   messages,
			})
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic name")
	cmd.Flags().IntVar(&ttl, "ttl", 30, "Seconds each poll waits for a message, must be positive")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}
