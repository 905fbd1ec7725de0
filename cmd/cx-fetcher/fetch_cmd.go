package main

import (
	"errors"
	"fmt"

	"github.com/open-edge-platform/cx-fetcher/internal/fetcher"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/general/slice"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createFetchCommand creates the fetch subcommand
func createFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [flags] EXTENSION_ID...",
		Short: "Download and unpack extensions",
		Long: `Fetch downloads each extension, verifies it when a keyring is configured,
unpacks it into the storage directory and records it as available.
Extensions that are already installed are fetched again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeFetch,
	}
}

// executeFetch handles the fetch command logic
func executeFetch(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	unsubscribe := a.fetcher.Subscribe(func(ev fetcher.Event) {
		log.Debugf("event: acquired %s %s", ev.ID, ev.Info.Version)
	})
	defer unsubscribe()

	ids := slice.SplitList(args)
	results, err := a.fetcher.AcquireAll(cmd.Context(), ids)

	out := cmd.OutOrStdout()
	for _, id := range sortedIDs(results) {
		info := results[id]
		fmt.Fprintf(out, "%s\t%s\t%s\n", id, info.Version, info.Path)
	}

	if err != nil {
		if errors.Is(err, fetcher.ErrAlreadyInFlight) {
			log.Warnf("some extensions were already being fetched")
		}
		return fmt.Errorf("fetched %d of %d extensions: %w", len(results), len(ids), err)
	}
	log.Infof("fetched %d extensions", len(results))
	return nil
}
