package cmd

import (
	"bufio"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/plenert/payments/payments/internal/fastcolor"
	"github.com/spf13/cobra"
)

const labelWidth = 12

func newCheckCmd(opts *options, newLogger newLoggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check <transactions.csv>",
		Short: "Replay a transaction log and report record counts only",
		Example: `  payments check transactions.csv
  payments check --strict-tx transactions.csv.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, logger, err := setup(cmd, opts, newLogger)
			if err != nil {
				return err
			}
			defer logger.Sync()

			start := time.Now()
			p := NewProcessor(cfg, logger, uuid.New())
			if err := p.Run(cmd.Context(), args[0]); err != nil {
				return err
			}
			s := p.Summary(p.Snapshot(), start)
			p.logSummary(s)

			buf := bufio.NewWriter(cmd.OutOrStdout())
			for _, line := range []struct {
				label string
				value int
			}{
				{"records", s.Records()},
				{"applied", s.Applied},
				{"invalid", s.Invalid},
				{"unresolved", s.Unresolved},
				{"malformed", s.Malformed},
				{"accounts", s.Accounts},
				{"locked", s.Locked},
			} {
				fastcolor.None.WriteStringFixed(buf, line.label, labelWidth, false)
				buf.WriteString(strconv.Itoa(line.value))
				buf.WriteString(newLine)
			}
			return buf.Flush()
		},
	}
}
