package main

import (
	"errors"
	"fmt"

	"github.com/open-edge-platform/cx-fetcher/internal/utils/general/slice"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createCheckCommand creates the check subcommand
func createCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [flags] [EXTENSION_ID...]",
		Short: "Report which installed extensions have updates",
		Long: `Check fetches the update manifest of each extension and reports whether it
advertises a newer version. Without arguments every installed extension is checked.`,
		RunE: executeCheck,
	}
}

// createUpdateCommand creates the update subcommand
func createUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update [flags] [EXTENSION_ID...]",
		Short: "Replace installed extensions that have newer versions",
		Long: `Update re-fetches each extension whose update manifest advertises a newer
version. Without arguments every installed extension is updated.`,
		RunE: executeUpdate,
	}
}

// executeCheck handles the check command logic
func executeCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ids := slice.SplitList(args)
	if len(ids) == 0 {
		ids = sortedIDs(a.fetcher.Available())
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, id := range ids {
		newer, err := a.fetcher.CheckForUpdate(cmd.Context(), id)
		switch {
		case err != nil:
			errs = append(errs, err)
			fmt.Fprintf(out, "%s\terror\n", id)
		case newer:
			fmt.Fprintf(out, "%s\tupdate available\n", id)
		default:
			fmt.Fprintf(out, "%s\tup to date\n", id)
		}
	}
	return errors.Join(errs...)
}

// executeUpdate handles the update command logic
func executeUpdate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 {
		updated, err := a.fetcher.UpdateAll(cmd.Context())
		for _, id := range updated {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tupdated\n", id)
		}
		log.Infof("updated %d extensions", len(updated))
		return err
	}

	var errs []error
	for _, id := range slice.SplitList(args) {
		ok, err := a.fetcher.Update(cmd.Context(), id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tupdated\n", id)
		}
	}
	return errors.Join(errs...)
}
