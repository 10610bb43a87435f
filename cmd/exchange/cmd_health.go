package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/health"
	"github.com/c360/exchange/storage"
)

// probeContainer is looked up when azure_config.json names no container.
// Any answer, including "not found", proves the store is reachable.
const probeContainer = "exchange"

func newHealthCmd(a *app) *cobra.Command {
	var skipAPIs bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the broker and blob store are reachable",
		Long: `Dial the Kafka bootstrap servers, query the selected blob store and
validate every entry of api_config.json. The combined status is printed
as JSON. The command fails when the broker or the store is unhealthy; a
broken API entry only degrades the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := []health.Check{
				{Name: "kafka", Probe: func(ctx context.Context) error {
					n, err := a.pingBroker(ctx)
					if err == nil {
						a.logger.Debug("Broker reachable", "brokers", n)
					}
					return err
				}},
				{Name: "store:" + a.flags.Store, Probe: a.probeStore},
			}
			if !skipAPIs {
				checks = append(checks, a.apiChecks()...)
			}

			status := health.Run(cmd.Context(), appName, checks, a.flags.Timeout)
			if err := a.printJSON(status); err != nil {
				return err
			}
			if status.IsUnhealthy() {
				return fmt.Errorf("%s: %s", appName, status.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipAPIs, "skip-apis", false, "Do not validate api_config.json entries")
	return cmd
}

func (a *app) probeStore(ctx context.Context) error {
	container, _ := a.azureDefaults()
	if container == "" {
		container = probeContainer
	}
	return a.withStore(ctx, func(s storage.Store) error {
		exists, err := s.ContainerExists(ctx, container)
		if err != nil {
			return err
		}
		a.logger.Debug("Store reachable", "container", container, "exists", exists)
		return nil
	})
}

// apiChecks validates each configured API. A missing api_config.json is a
// single degraded check.
func (a *app) apiChecks() []health.Check {
	apis, err := a.loader.APIs()
	if err != nil {
		return []health.Check{{Name: "api", Optional: true, Probe: func(context.Context) error { return err }}}
	}

	names := make([]string, 0, len(apis))
	for name := range apis {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make([]health.Check, 0, len(names))
	for _, name := range names {
		name := name
		checks = append(checks, health.Check{
			Name:     "api:" + name,
			Optional: true,
			Probe: func(context.Context) error {
				_, err := apis.Lookup(name)
				return err
			},
		})
	}
	return checks
}
