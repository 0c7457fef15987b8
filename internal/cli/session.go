package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// ActivityOptions holds flags for the commands that record an activity.
type ActivityOptions struct {
	*RootOptions
	Latitude  float64
	Longitude float64
	Address   string
	Notes     string
	Selfie    string
}

// location returns the captured location, or nil when no location flag
// was given.
func (o *ActivityOptions) location(cmd *cobra.Command) *model.Location {
	flags := cmd.Flags()
	if !flags.Changed("lat") && !flags.Changed("lng") && !flags.Changed("address") {
		return nil
	}
	return &model.Location{Latitude: o.Latitude, Longitude: o.Longitude, Address: o.Address}
}

func addActivityFlags(cmd *cobra.Command, opts *ActivityOptions, notes bool) {
	cmd.Flags().Float64Var(&opts.Latitude, "lat", 0, "latitude of the current location")
	cmd.Flags().Float64Var(&opts.Longitude, "lng", 0, "longitude of the current location")
	cmd.Flags().StringVar(&opts.Address, "address", "", "address of the current location")
	cmd.Flags().StringVar(&opts.Selfie, "selfie", "", "path to a verification photo to upload")
	if notes {
		cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	}
}

// NewClockInCommand creates the clock-in command.
func NewClockInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActivityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clock-in",
		Short: "Start today's attendance session",
		Long: `Clock in for today. Fails with ALREADY_CLOCKED_IN when a session is open
and with ALREADY_COMPLETED_TODAY after today's clock-out.

Examples:
  absensi clock-in --user budi
  absensi clock-in --lat -6.2 --lng 106.8 --address "Kantor Pusat" --notes "WFO"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return recordActivity(cmd, opts, model.ActivityClockIn)
		},
	}
	addActivityFlags(cmd, opts, true)
	return cmd
}

// NewClockOutCommand creates the clock-out command.
func NewClockOutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActivityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clock-out",
		Short: "Close today's attendance session",
		Long: `Clock out for today. An active break, overtime or client visit is ended
first. Totals are frozen at the clock-out time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return recordActivity(cmd, opts, model.ActivityClockOut)
		},
	}
	addActivityFlags(cmd, opts, false)
	return cmd
}

// NewActivityCommand creates the activity command.
func NewActivityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActivityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "activity <type>",
		Short: "Record an activity in today's session",
		Long: `Record one activity. Types:
  clock_in, clock_out, break_start, break_end,
  overtime_start, overtime_end, client_visit_start, client_visit_end

Exit codes:
  0 - Activity recorded
  1 - Rejected by the attendance rules or not written to the database
  2 - Command error

Examples:
  absensi activity break_start
  absensi activity client_visit_start --notes "PT Maju" --address "Jl. Sudirman"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := model.ParseActivityType(args[0])
			if err != nil {
				return opts.formatter(cmd).Fail("invalid activity", err)
			}
			return recordActivity(cmd, opts, typ)
		},
	}
	addActivityFlags(cmd, opts, true)
	return cmd
}

func recordActivity(cmd *cobra.Command, opts *ActivityOptions, typ model.ActivityType) error {
	out := opts.formatter(cmd)
	ctx := commandContext(cmd)

	env, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return out.Fail("failed to open session", err)
	}
	defer env.Close()

	snap, err := env.tracker.RecordActivity(ctx, typ, opts.location(cmd), opts.Notes, opts.Selfie)
	if err != nil {
		return out.Fail(string(typ)+" rejected", err)
	}
	if err := env.tracker.Flush(ctx); err != nil {
		return out.Fail("failed to save session", err)
	}
	out.VerboseLog("saved %s revision %d", snap.Date, snap.Revision)
	return out.Success(viewSession(snap, env.cfg.Location))
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show today's session and elapsed time",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)
			env, err := openEnv(commandContext(cmd), rootOpts)
			if err != nil {
				return out.Fail("failed to open session", err)
			}
			defer env.Close()
			return out.Success(viewSession(env.tracker.Snapshot(), env.cfg.Location))
		},
	}
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
