package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/tracker"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	For time.Duration
}

// tickView is one line of watch output.
type tickView struct {
	At     string     `json:"at"`
	Date   string     `json:"date"`
	Status string     `json:"status"`
	Totals totalsView `json:"totals"`
}

func (v tickView) String() string {
	return fmt.Sprintf("%s  %-12s %s", v.At, v.Status, v.Totals)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show elapsed time live",
		Long: `Run the tracker: print today's elapsed time every tick and keep the
session in sync with the database until interrupted (Ctrl+C).

With --format json every tick is written as one JSON document per line.

Examples:
  absensi watch
  absensi watch --for 1h --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	out := opts.formatter(cmd)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.For)
		defer cancel()
	}

	var mu sync.Mutex
	var loc *time.Location
	printTick := func(t tracker.Tick) {
		mu.Lock()
		defer mu.Unlock()
		_ = out.Success(tickView{
			At:     t.At.In(loc).Format("15:04:05"),
			Date:   t.Date,
			Status: string(t.Status),
			Totals: viewTotals(t.Totals),
		})
	}
	onNotice := func(n reconcile.Notice) {
		switch n.Kind {
		case reconcile.NoticeState:
			if n.Err != nil {
				out.VerboseLog("sync %s: %v", n.State, n.Err)
				return
			}
			out.VerboseLog("sync %s", n.State)
		case reconcile.NoticeWriteFailed:
			out.VerboseLog("write failed: %v", n.Err)
		case reconcile.NoticeRemoteApplied:
			out.VerboseLog("session updated from another device (revision %d)", n.Revision)
		}
	}

	env, err := openEnv(ctx, opts.RootOptions,
		tracker.WithTickObserver(printTick),
		tracker.WithReconcileOptions(reconcile.WithObserver(onNotice)),
	)
	if err != nil {
		return out.Fail("failed to open session", err)
	}
	defer env.Close()
	loc = env.cfg.Location

	// ctx only signals when to stop; the run itself ends in Close.
	if err := env.tracker.Start(context.WithoutCancel(ctx)); err != nil {
		return out.Fail("failed to start tracker", err)
	}
	env.tracker.Tick()

	<-ctx.Done()
	if err := env.tracker.Close(); err != nil {
		return out.Fail("tracker stopped", err)
	}
	return nil
}
