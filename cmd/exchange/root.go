package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Move data between Kafka, blob storage and HTTP data APIs",
		Long: `exchange is a call-through utility for a small data pipeline.

Credentials are read from JSON files in the config directory
(default ~/.config/exchange):
  kafka_config.json  broker address and consumer group
  azure_config.json  storage account, key and default container/blob
  api_config.json    data API urls and keys
  nats_config.json   NATS servers, used with --store nats

Logs go to stderr; command results are printed to stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Name())
		},
	}

	a.flags.register(root)

	root.AddCommand(
		newProduceCmd(a),
		newConsumeCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newDeleteCmd(a),
		newContainerCmd(a),
		newListCmd(a),
		newRequestCmd(a),
		newIngestCmd(a),
		newForwardCmd(a),
		newConfigCmd(a),
		newHealthCmd(a),
		newVersionCmd(a),
	)

	return root
}
