package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/docdedup"
	"github.com/ZaguanLabs/docdedup/index"
)

func newLookupCmd(setup setupFunc) *cobra.Command {
	var (
		flags requestFlags
		file  string
	)

	cmd := &cobra.Command{
		Use:   "lookup [KEY]",
		Short: "Print the output registered for a key, or for a request given with --file or --text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if file != "" || flags.text != "" {
					return errors.New("pass either a key or a request, not both")
				}
				return lookupKey(cmd, setup, args[0])
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			var inputArgs []string
			if file != "" {
				inputArgs = []string{file}
			}
			_, req, err := flags.newJob(cmd, a, inputArgs, nil)
			if err != nil {
				return err
			}

			dedup := docdedup.NewDeduplicator(a.store, docdedup.WithLogger(a.log))
			res, err := dedup.Lookup(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res == nil {
				return errors.New("no output registered for this request")
			}
			fmt.Fprintln(a.stdout, res.OutputPath)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "Look up the output for this input file")
	return cmd
}

func lookupKey(cmd *cobra.Command, setup setupFunc, raw string) error {
	key, err := docdedup.ParseCacheKey(raw)
	if err != nil {
		return err
	}
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	path, ok, err := a.store.TryGetOutput(cmd.Context(), key.String())
	if ok {
		fmt.Fprintln(a.stdout, path)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no output registered for %s", key.Short())
	}
	return nil
}

func newRegisterCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "register KEY PATH",
		Short: "Record an existing file as the output for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := docdedup.ParseCacheKey(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(args[1])
			if err != nil {
				return fmt.Errorf("output file: %w", err)
			}
			if !info.Mode().IsRegular() {
				return fmt.Errorf("output %s is not a regular file", args[1])
			}

			a, err := setup(cmd)
			if err != nil {
				return err
			}
			return a.store.RegisterOutput(cmd.Context(), key.String(), args[1])
		},
	}
}

func newEvictCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "evict KEY",
		Short: "Forget the output registered for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := docdedup.ParseCacheKey(args[0])
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			removed, err := a.store.Evict(cmd.Context(), key.String())
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(a.stdout, "%s not in index\n", key.Short())
				return nil
			}
			fmt.Fprintf(a.stdout, "evicted %s\n", key.Short())
			return nil
		},
	}
}

func newPruneCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove entries whose output file no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			n, err := a.store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "removed %d dangling entries\n", n)
			return nil
		},
	}
}

func newListCmd(setup setupFunc) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List index entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			entries, err := a.store.Entries(cmd.Context())
			if err != nil {
				return err
			}
			return writeEntries(a.stdout, entries, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, yaml")
	return cmd
}

func writeEntries(w io.Writer, entries []index.Entry, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []index.Entry{}
		}
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Key", "Output", "Created", "Last used"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		for _, e := range entries {
			table.Append([]string{
				docdedup.CacheKey(e.Key).Short(),
				e.OutputPath,
				e.CreatedAt.Local().Format(time.DateTime),
				e.LastUsedAt.Local().Format(time.DateTime),
			})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}
