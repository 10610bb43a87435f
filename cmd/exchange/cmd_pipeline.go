package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/pipeline"
	"github.com/c360/exchange/storage"
)

func newRequestCmd(a *app) *cobra.Command {
	var apiName string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request the most recent data from a configured API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.loader.API(apiName)
			if err != nil {
				return err
			}

			body, err := a.newFetcher().Request(cmd.Context(), api, apiName)
			if err != nil {
				return err
			}
			a.logger.Info("Data requested from API", "api", apiName, "bytes", len(body))

			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			out.WriteByte('\n')
			_, err = a.stdout.Write(out.Bytes())
			return err
		},
	}

	cmd.Flags().StringVarP(&apiName, "api-name", "a", "", "Name of the API in api_config.json")
	_ = cmd.MarkFlagRequired("api-name")
	return cmd
}

func newIngestCmd(a *app) *cobra.Command {
	var apiName, topic string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Request an API and push the response to a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api, err := a.loader.API(apiName)
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

			result, err := pipeline.Ingest(cmd.Context(), a.newFetcher(), producer,
				pipeline.IngestRequest{APIName: apiName, API: api, Topic: topic},
				pipeline.Options{Logger: a.logger, Metrics: a.metrics()})
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}

	cmd.Flags().StringVarP(&apiName, "api-name", "a", "", "Name of the API in api_config.json")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to produce to")
	_ = cmd.MarkFlagRequired("api-name")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

func newForwardCmd(a *app) *cobra.Command {
	var topic, container, filename string
	var ttl int

	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Drain a topic into a blob",
		Long: `Consume every pending message from a topic and write them to a blob as a
JSON object keyed "1".."n" in arrival order. When no message arrives the
write is skipped and an existing blob is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl <= 0 {
				return fmt.Errorf("invalid ttl: %d, must be a positive number of seconds", ttl)
			}
			if err := storage.ValidateContainerName(container); err != nil {
				return err
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

			return a.withStore(cmd.Context(), func(s storage.Store) error {
				result, err := pipeline.Forward(cmd.Context(), consumer, s, pipeline.ForwardRequest{
					Topic:     topic,
					Container: container,
					Blob:      filename,
					TTL:       time.Duration(ttl) * time.Second,
				}, pipeline.Options{Logger: a.logger, Metrics: a.metrics()})
				if err != nil {
					return err
				}
				return a.printJSON(result)
			})
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to read from")
	cmd.Flags().StringVarP(&container, "container-name", "c", "", "Container to write to")
	cmd.Flags().StringVarP(&filename, "filename", "f", "", "Blob name (or path) to write")
	cmd.Flags().IntVar(&ttl, "ttl", int(pipeline.DefaultForwardTTL/time.Second), "Seconds each poll waits for a message, must be positive")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("container-name")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}
