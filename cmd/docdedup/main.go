// Command docdedup translates long documents, skipping any request whose
// output already exists.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/docdedup"
	"github.com/ZaguanLabs/docdedup/index"
	"github.com/ZaguanLabs/docdedup/internal/config"
	"github.com/ZaguanLabs/docdedup/internal/logging"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	store  *index.Store
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           docdedup.Name,
		Short:         docdedup.Description,
		Long:          `Translate long documents once: identical requests are served from a persistent output index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: <data-dir>/config.yaml if present)")
	pf.String("data-dir", "", "Directory for the index and outputs")
	pf.String("index", "", "Index file (default: <data-dir>/index.json)")
	pf.String("output-dir", "", "Directory for translated outputs (default: <data-dir>/outputs)")
	pf.String("log-level", "", "Log level: none, error, warn, info, debug, trace")

	// setup loads configuration for the command being run.
	setup := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.NewLoader().Load(cmd, configFile)
		if err != nil {
			return nil, err
		}
		log, err := logging.Setup(cfg.LogLevel, stderr)
		if err != nil {
			return nil, err
		}
		store := index.New(cfg.IndexFile, index.WithLogger(log))
		return &app{cfg: cfg, log: log, store: store, stdout: stdout, stderr: stderr}, nil
	}

	root.AddCommand(
		newTranslateCmd(setup),
		newKeyCmd(setup),
		newLookupCmd(setup),
		newRegisterCmd(setup),
		newEvictCmd(setup),
		newPruneCmd(setup),
		newListCmd(setup),
		newVersionCmd(stdout),
	)

	return root
}

type setupFunc func(cmd *cobra.Command) (*app, error)

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(stdout, "%s %s\n", docdedup.Name, docdedup.FullVersion())
			if docdedup.BuildDate != "unknown" && docdedup.BuildDate != "" {
				fmt.Fprintf(stdout, "  built:   %s\n", docdedup.BuildDate)
			}
			return nil
		},
	}
}
