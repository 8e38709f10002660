package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/plenert/payments"
	"github.com/plenert/payments/payments/internal/config"
	"github.com/plenert/payments/payments/internal/fastcolor"
	"github.com/plenert/payments/payments/internal/logging"
	"github.com/plenert/payments/payments/sink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type newLoggerFunc func(level string) (*zap.Logger, error)

// options holds the persistent flags. Flags only override the resolved
// configuration when given explicitly.
type options struct {
	configPath        string
	logLevel          string
	format            string
	sink              string
	wide              bool
	strictTxIDs       bool
	amountExpressions bool
}

func newRootCmd(newLogger newLoggerFunc) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "payments [flags] <transactions.csv>",
		Short: "Replay a transaction log into account balances",
		Long: `payments reads deposits, withdrawals, disputes, resolves and chargebacks
from a CSV file (optionally .gz, .zst, .lz4 or .br compressed, or "-" for
stdin) and prints the final balance of every client account.`,
		Example: `  payments transactions.csv > accounts.csv
  payments --format table --wide transactions.csv.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runProcess(cmd, &opts, newLogger, args[0])
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "TOML configuration file (default "+config.DefaultFile+" if present).")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	flags.StringVar(&opts.format, "format", config.FormatCSV, "Output format: csv or table.")
	flags.BoolVar(&opts.wide, "wide", false, "Wide table output (use terminal width).")
	flags.BoolVar(&opts.strictTxIDs, "strict-tx", false, "Reject deposits and withdrawals that reuse a transaction id.")
	flags.BoolVar(&opts.amountExpressions, "amount-expressions", false, "Evaluate parenthesised amounts such as (2.5 * 4).")
	flags.StringVar(&opts.sink, "sink", config.SinkNone, "Also export balances to: none, postgres or kafka.")

	rootCmd.AddCommand(newCheckCmd(&opts, newLogger))
	return rootCmd
}

// Execute runs the payments command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd(logging.New)
	cc.Init(&cc.Config{
		RootCmd:  rootCmd,
		Headings: cc.HiCyan + cc.Bold + cc.Underline,
		Commands: cc.HiYellow + cc.Bold,
		Example:  cc.Italic,
		ExecName: cc.Bold,
		Flags:    cc.Bold,
	})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func (o *options) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
	if flags.Changed("sink") {
		cfg.Sink = o.sink
	}
	if flags.Changed("strict-tx") {
		cfg.StrictTxIDs = o.strictTxIDs
	}
	if flags.Changed("amount-expressions") {
		cfg.AmountExpressions = o.amountExpressions
	}
	return cfg, cfg.Validate()
}

func setup(cmd *cobra.Command, opts *options, newLogger newLoggerFunc) (config.Config, *zap.Logger, error) {
	cfg, err := opts.resolve(cmd)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func runProcess(cmd *cobra.Command, opts *options, newLogger newLoggerFunc, filename string) error {
	cfg, logger, err := setup(cmd, opts, newLogger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	start := time.Now()
	runID := uuid.New()
	p := NewProcessor(cfg, logger, runID)
	if err := p.Run(cmd.Context(), filename); err != nil {
		logger.Error("replay failed", zap.String("source", filename), zap.Error(err))
		return err
	}

	rows := p.Snapshot()
	if err := printRows(cmd.OutOrStdout(), rows, cfg, opts.wide, logger); err != nil {
		return err
	}

	s, err := sink.Open(cfg, runID)
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
		if err := s.Write(cmd.Context(), rows); err != nil {
			logger.Error("export failed", zap.String("sink", cfg.Sink), zap.Error(err))
			return err
		}
	}

	p.logSummary(p.Summary(rows, start))
	return nil
}

func printRows(w io.Writer, rows []payments.AccountRow, cfg config.Config, wide bool, logger *zap.Logger) error {
	if cfg.Format == config.FormatCSV {
		return PrintCSV(w, rows)
	}

	isTerm, width := terminal(w)
	columns := 80
	if wide {
		columns = 132
		if width > 0 {
			columns = width
		}
	}

	lockedColor := fastcolor.None
	if isTerm {
		c, err := fastcolor.FromHex(cfg.LockedColor)
		if err != nil {
			logger.Warn("bad locked_color, using red", zap.String("locked_color", cfg.LockedColor), zap.Error(err))
			c = fastcolor.FgRed
		}
		lockedColor = c
	}
	return PrintTable(w, rows, columns, lockedColor)
}
