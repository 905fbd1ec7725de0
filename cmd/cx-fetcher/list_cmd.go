package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/general/slice"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Output format flags
var (
	listFormat string // "text" | "json"
	prettyJSON bool   = true
)

// createListCommand creates the list subcommand
func createListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List installed extensions",
		Args:  cobra.NoArgs,
		RunE:  executeList,
	}

	listCmd.Flags().StringVar(&listFormat, "format", "text",
		"Output format: text or json")
	listCmd.Flags().BoolVar(&prettyJSON, "pretty", true,
		"Pretty-print JSON output (only for --format json)")
	return listCmd
}

// createRemoveCommand creates the remove subcommand
func createRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [flags] EXTENSION_ID...",
		Short: "Delete installed extensions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  executeRemove,
	}
}

// executeList handles the list command logic
func executeList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	available := a.fetcher.Available()
	out := cmd.OutOrStdout()

	switch strings.ToLower(listFormat) {
	case "json":
		list := make([]ospackage.PackageInfo, 0, len(available))
		for _, id := range sortedIDs(available) {
			list = append(list, available[id])
		}
		var b []byte
		if prettyJSON {
			b, err = json.MarshalIndent(list, "", "  ")
		} else {
			b, err = json.Marshal(list)
		}
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil

	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tVERSION\tPATH")
		for _, id := range sortedIDs(available) {
			info := available[id]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, info.Name, info.Version, info.Path)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("invalid --format %q (expected text|json)", listFormat)
	}
}

// executeRemove handles the remove command logic
func executeRemove(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var errs []error
	for _, id := range slice.SplitList(args) {
		if _, err := a.fetcher.Remove(cmd.Context(), id); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Infof("removed %s", id)
	}
	return errors.Join(errs...)
}

func sortedIDs(m map[string]ospackage.PackageInfo) []string {
	ids := maps.Keys(m)
	slices.Sort(ids)
	return ids
}
