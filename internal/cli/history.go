package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	From string
	To   string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored sessions over a date range",
		Long: `List the sessions stored for the user between --from and --to
(inclusive, YYYY-MM-DD) with per-day totals and the range total.
Both bounds default to today.

Examples:
  absensi history --from 2025-01-01 --to 2025-01-31
  absensi history --user budi --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD, default today)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return out.Fail("failed to load config", err)
	}
	if cfg.UserID == "" {
		return out.Fail("history", NewExitError(ExitCommandError, "user ID is required"))
	}

	today := model.DateKey(opts.now().In(cfg.Location))
	from, to := opts.From, opts.To
	if from == "" {
		from = today
	}
	if to == "" {
		to = today
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return out.Fail("invalid date", fmt.Errorf("bad date %q: want YYYY-MM-DD", d))
		}
	}
	if from > to {
		return out.Fail("invalid range", fmt.Errorf("--from %s is after --to %s", from, to))
	}

	st, bus, err := openStore(cfg, opts.RootOptions)
	if err != nil {
		return out.Fail("failed to open database", err)
	}
	defer bus.Close()
	defer st.Close()

	sessions, err := st.GetSessionsForUser(commandContext(cmd), cfg.UserID, from, to)
	if err != nil {
		return out.Fail("failed to read sessions", err)
	}
	return out.Success(viewHistory(cfg.UserID, from, to, sessions, cfg.Location))
}
