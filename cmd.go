package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/config"
	"github.com/philtim/multiclock/logging"
	"github.com/philtim/multiclock/snippet"
	"github.com/philtim/multiclock/storage"
	"github.com/philtim/multiclock/subscription"
	"github.com/philtim/multiclock/widget"
)

var version = "dev"

var (
	okColor     = color.New(color.FgGreen)
	noticeColor = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
	mutedColor  = color.New(color.FgHiBlack)
	localColor  = color.New(color.FgCyan, color.Bold)
)

// app holds what every command needs once config is loaded
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	kv        storage.Store
	state     *widget.State
	// initErr is a non-fatal StorageFailure from loading the clock list
	initErr error
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "multiclock",
		Short:         "World clock board with SFMC time conversion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default ~/.config/multiclock.yaml).")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("storage", "", "Storage backend: file|redis|memory.")
	cmd.PersistentFlags().Bool("ephemeral", false, "Keep state in memory only.")

	_ = a.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("storage.backend", cmd.PersistentFlags().Lookup("storage"))

	cmd.AddCommand(
		newListCmd(a),
		newZonesCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newResetCmd(a),
		newSnippetCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// setup loads config, opens the logger and storage, and loads the widget.
// The TUI owns the terminal, so it logs to a file by default.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	tui := !cmd.HasParent()
	flags := cmd.Flags()

	if ephemeral, _ := flags.GetBool("ephemeral"); ephemeral {
		a.v.Set("storage.backend", storage.BackendMemory)
	}
	path, _ := flags.GetString("config")

	cfg, err := config.Load(a.v, path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File, Writer: cmd.ErrOrStderr()}
	if tui && logCfg.File == "" {
		if logCfg.File, err = logging.DefaultFile(); err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}
	}
	a.logger, a.logCloser, err = logging.New(logCfg)
	if err != nil {
		return err
	}

	a.kv, err = storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		Path:        cfg.Storage.Path,
		RedisURL:    cfg.Redis.URL,
		RedisPrefix: cfg.Redis.Prefix,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	a.state = widget.New(widget.Options{
		Storage:     a.kv,
		MaxClocks:   cfg.MaxClocks,
		AmbientZone: cfg.AmbientZone(),
		DefaultZone: cfg.DefaultZone,
		Logger:      a.logger,
	})
	if err := a.state.Init(ctx); err != nil {
		if apperror.KindOf(err) != apperror.KindStorageFailure {
			return err
		}
		a.initErr = err
	}

	a.logger.Debug("multiclock started", "backend", cfg.Storage.Backend, "clocks", len(a.state.Subscriptions()))
	return nil
}

func (a *app) close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil && a.logger != nil {
			a.logger.Warn("failed to close storage", "error", err)
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

func (a *app) runTUI(ctx context.Context) error {
	m := newModel(ctx, a.state, a.cfg.UI.FrameInterval, a.logger)
	if a.initErr != nil {
		m.setError(a.initErr)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run program: %w", err)
	}
	return nil
}

// applyAt pins the reference instant when --at was given
func (a *app) applyAt(cmd *cobra.Command) error {
	at, _ := cmd.Flags().GetString("at")
	if at == "" {
		return nil
	}
	return a.state.ApplyOverride(at)
}

func (a *app) warnInit(w io.Writer) {
	if a.initErr != nil {
		noticeColor.Fprintf(w, "warning: %s\n", apperror.Message(a.initErr))
	}
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every clock, west to east",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.applyAt(cmd); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			a.warnInit(cmd.ErrOrStderr())

			t := newTable("", "CLOCK", "TIME", "DATE", "OFFSET", "SEASON")
			for _, c := range a.state.Frame() {
				marker := ""
				if c.Local {
					marker = "local"
				}
				t.Row(marker, c.Label, c.FormatTime(), c.FormatDate(), c.OffsetLabel, string(c.Season))
			}
			fmt.Fprintln(out, t.String())

			if pinned, ok := a.state.Pinned(); ok {
				mutedColor.Fprintf(out, "reference instant pinned at %s\n", pinned.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
	cmd.Flags().String("at", "", "Show the clocks at this SFMC date/time instead of now.")
	return cmd
}

func newZonesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "zones [query]",
		Short: "List catalog zones, optionally filtered",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zones := a.state.Catalog()
			if len(args) == 1 {
				zones = catalog.Default().Search(args[0], 0)
			}
			if len(zones) == 0 {
				noticeColor.Fprintln(cmd.ErrOrStderr(), "no zones found")
				return nil
			}

			subscribed := lo.SliceToMap(a.state.Subscriptions(), func(s subscription.Subscription) (string, bool) {
				return s.Timezone, true
			})
			t := newTable("", "ZONE", "LABEL", "OFFSET", "SFMC NAME")
			for _, z := range zones {
				mark := ""
				if subscribed[z.ID] {
					mark = "✓"
				}
				t.Row(mark, z.ID, catalog.Default().DisplayLabel(z.ID), a.state.Offset(z.ID), z.ExternalName)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add TIMEZONE",
		Short: "Add a clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tz := resolveArg(args[0])
			err := a.state.AddClock(cmd.Context(), tz)
			if apperror.KindOf(err) == apperror.KindDuplicateSubscription {
				noticeColor.Fprintln(cmd.OutOrStdout(), apperror.Message(err))
				return nil
			}
			if err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "added %s\n", catalog.Default().DisplayLabel(tz))
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove TIMEZONE",
		Short: "Remove a clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tz := resolveArg(args[0])
			if err := a.state.RemoveClock(cmd.Context(), tz); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "removed %s\n", catalog.Default().DisplayLabel(tz))
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the first-run clock list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.state.ResetClocks(cmd.Context()); err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "clock list reset to %d clocks\n", len(a.state.Subscriptions()))
			return nil
		},
	}
}

func newSnippetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet TIMEZONE",
		Short: "Print SFMC SQL, AMPscript and SSJS converting system time to a clock's zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyAt(cmd); err != nil {
				return err
			}
			snippets, err := a.state.Snippets(resolveArg(args[0]))
			if err != nil {
				return err
			}

			lang, _ := cmd.Flags().GetString("lang")
			out := cmd.OutOrStdout()
			for _, s := range snippets {
				if lang != "" && !strings.EqualFold(lang, string(s.Language)) {
					continue
				}
				localColor.Fprintf(out, "-- %s\n", s.Language)
				fmt.Fprintf(out, "%s\n\n", s.Code)
			}
			return nil
		},
	}
	cmd.Flags().String("at", "", "Compute offsets at this SFMC date/time instead of now.")
	cmd.Flags().String("lang", "", fmt.Sprintf("Only print one language: %s.", strings.Join(lo.Map(snippet.Languages, func(l snippet.Language, _ int) string {
		return strings.ToLower(string(l))
	}), "|")))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config, storage or logger needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "multiclock %s\n", version)
		},
	}
}

// resolveArg maps a city or alias ("tokyo", "Boston") onto its catalog id
// when it isn't an id already
func resolveArg(arg string) string {
	cat := catalog.Default()
	if cat.Contains(arg) {
		return arg
	}
	if matches := cat.Search(arg, 2); len(matches) == 1 {
		return matches[0].ID
	}
	return arg
}

func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		BorderHeader(true).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// errorLine formats err for the terminal
func errorLine(err error) string {
	if apperror.KindOf(err) != "" {
		return errColor.Sprintf("error: %s", apperror.Message(err))
	}
	return errColor.Sprintf("error: %v", err)
}
