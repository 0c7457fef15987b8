package cli

import (
	"github.com/spf13/cobra"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// RosterOptions holds flags for the roster command.
type RosterOptions struct {
	*RootOptions
	All bool
}

// NewRosterCommand creates the roster command.
func NewRosterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RosterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Show who is working now",
		Long: `List employees who are online or on a break, from their profiles.
Profiles follow every session write. Use --all to include offline employees.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoster(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include offline employees")

	return cmd
}

func runRoster(cmd *cobra.Command, opts *RosterOptions) error {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return out.Fail("failed to load config", err)
	}
	st, bus, err := openStore(cfg, opts.RootOptions)
	if err != nil {
		return out.Fail("failed to open database", err)
	}
	defer bus.Close()
	defer st.Close()

	profiles, err := st.ListProfiles(commandContext(cmd))
	if err != nil {
		return out.Fail("failed to read profiles", err)
	}

	view := rosterView{Entries: make([]model.RosterEntry, 0, len(profiles)), loc: cfg.Location}
	for _, p := range profiles {
		if !opts.All && p.Status == model.EmployeeOffline {
			continue
		}
		view.Entries = append(view.Entries, model.RosterEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Status:      p.Status,
			Since:       p.UpdatedAt,
		})
	}
	return out.Success(view)
}

// NewProfileCommand creates the profile command.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile <display-name>",
		Short: "Set the display name shown on the roster",
		Example: `  absensi profile "Budi Santoso" --user budi`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return out.Fail("failed to load config", err)
			}
			if cfg.UserID == "" {
				return out.Fail("profile", NewExitError(ExitCommandError, "user ID is required"))
			}
			st, bus, err := openStore(cfg, rootOpts)
			if err != nil {
				return out.Fail("failed to open database", err)
			}
			defer bus.Close()
			defer st.Close()

			p, err := st.UpsertProfile(commandContext(cmd), cfg.UserID, args[0])
			if err != nil {
				return out.Fail("failed to save profile", err)
			}
			return out.Success(rosterView{Entries: []model.RosterEntry{{
				UserID:      p.UserID,
				DisplayName: p.DisplayName,
				Status:      p.Status,
				Since:       p.UpdatedAt,
			}}, loc: cfg.Location})
		},
	}
	return cmd
}
