// Package main provides the deforest CLI: offline analysis of collected
// Galera cluster error logs using the Cobra framework.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"deforest/src/broker"
	"deforest/src/config"
	"deforest/src/diag"
	"deforest/src/logger"
	"deforest/src/pipeline"
	"deforest/src/report"
	"deforest/src/source"
	"deforest/src/store"
)

var (
	appConfig *config.Config

	flagNodes       []string
	flagFormat      string
	flagQuiet       bool
	flagDialect     string
	flagAlignWindow time.Duration
	flagSeqnoGap    int64
	flagConfigFile  string
	flagExportDSN   string
	flagBrokers     []string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "deforest",
	Short: "Deforest - cross-node analysis of Galera cluster logs",
	Long: `Deforest correlates error logs collected independently from each node
of a Galera cluster into one account of what the cluster did:
membership changes, state transfers (full and incremental), and
windows where nodes disagreed about membership.

Logs carry no shared identifiers, so deforest resolves which node each
file belongs to, links the two halves of each state transfer, and
flags ambiguity instead of hiding it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.LoadFromEnv()
		if err != nil {
			return err
		}
		if flagConfigFile != "" {
			if err := appConfig.ApplyFile(flagConfigFile); err != nil {
				return err
			}
		}

		// Flags set by the operator win over the file and environment.
		if cmd.Flags().Changed("format") {
			appConfig.Format = flagFormat
		}
		if cmd.Flags().Changed("quiet") {
			appConfig.Quiet = flagQuiet
		}
		if cmd.Flags().Changed("dialect") {
			appConfig.Dialect = flagDialect
		}
		if cmd.Flags().Changed("align-window") {
			appConfig.AlignWindow = flagAlignWindow
		}
		if cmd.Flags().Changed("seqno-gap") {
			appConfig.SeqnoGap = flagSeqnoGap
		}
		if cmd.Flags().Changed("export-dsn") {
			appConfig.ExportDSN = flagExportDSN
		}
		if cmd.Flags().Changed("brokers") {
			appConfig.Brokers = flagBrokers
		}

		return appConfig.Validate()
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log files...]",
	Short: "Analyze one or more collected node logs",
	Long: `Analyze correlates the given log files, one per node. Pass "-" to read
a single log from stdin.

Sources whose node cannot be inferred from content can be labeled
explicitly; explicit labels always win over heuristics:

  deforest analyze node1.log node2.log --node db-prod-03:rescued.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context(), args)
	},
}

func runAnalyze(ctx context.Context, args []string) error {
	sources, err := loadSources(args)
	if err != nil {
		return err
	}

	sink := diag.NewSink(os.Stderr, appConfig.Quiet)

	var pub broker.Broker
	if len(appConfig.Brokers) > 0 {
		pub, err = broker.NewRedpandaBroker(appConfig.Brokers)
		if err != nil {
			return err
		}
		defer pub.Close()
		sink.AttachPublisher(pub)
	}

	var log logger.Logger = logger.NewSilentLogger()
	if flagVerbose {
		log = logger.NewConsoleLogger()
	}

	a, err := pipeline.Run(ctx, appConfig, sources, sink, pub, log)
	if err != nil {
		return err
	}

	renderer, err := report.New(appConfig.Format)
	if err != nil {
		return err
	}
	if err := renderer.Render(os.Stdout, a); err != nil {
		return err
	}

	if appConfig.ExportDSN != "" {
		st, err := store.NewPostgresStore(appConfig.ExportDSN)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := pipeline.Export(ctx, st, a); err != nil {
			return err
		}
	}

	return nil
}

func loadSources(args []string) ([]*source.Source, error) {
	if len(args) == 1 && args[0] == "-" {
		src, err := source.FromStdin()
		if err != nil {
			return nil, err
		}
		return []*source.Source{src}, nil
	}
	return source.Load(args, flagNodes, appConfig.NodeOverrides)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress diagnostic warnings on stderr")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log pipeline progress")

	analyzeCmd.Flags().StringArrayVar(&flagNodes, "node", nil, "explicit label:path node mapping (repeatable)")
	analyzeCmd.Flags().StringVarP(&flagFormat, "format", "f", config.DefaultFormat, "output format: text or json")
	analyzeCmd.Flags().StringVar(&flagDialect, "dialect", config.DefaultDialect, "log dialect: auto, galera-26, mariadb-10, pxc-8")
	analyzeCmd.Flags().DurationVar(&flagAlignWindow, "align-window", config.DefaultAlignWindow, "view-alignment window for split-brain detection")
	analyzeCmd.Flags().Int64Var(&flagSeqnoGap, "seqno-gap", config.DefaultSeqnoGap, "max seqno distance for views of the same event")
	analyzeCmd.Flags().StringVar(&flagExportDSN, "export-dsn", "", "Postgres DSN to archive the run to")
	analyzeCmd.Flags().StringSliceVar(&flagBrokers, "brokers", nil, "Kafka/Redpanda seed brokers for publishing diagnostics")

	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var userErr *source.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, "Error:", userErr.Error())
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
