package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibanks42/resswitch/internal/autostart"
	"github.com/ibanks42/resswitch/internal/config"
	"github.com/ibanks42/resswitch/internal/display"
	"github.com/ibanks42/resswitch/internal/watchlist"
)

var addCmd = &cobra.Command{
	Use:   "add NAME WIDTHxHEIGHT",
	Short: "Watch a program",
	Long: `Adds a program to the watch list. NAME is the executable name as the OS reports
it (for example cs2.exe). A running instance picks the change up automatically.`,
	Example: "  resswitch add cs2.exe 1280x960",
	Args:    cobra.ExactArgs(2),
	RunE:    runAdd,
}

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Stop watching a program",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched programs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Show the current mode of the primary display",
	Args:  cobra.NoArgs,
	RunE:  runDisplay,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting resswitch at login",
}

var listFormat string

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "text", "Output format: text, yaml, json")

	autostartCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start resswitch at login",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runAutostartSet(cmd, true) },
	})
	autostartCmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Do not start resswitch at login",
		Args:  cobra.NoArgs,
		RunE:  func(cmd *cobra.Command, args []string) error { return runAutostartSet(cmd, false) },
	})
	autostartCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether resswitch starts at login",
		Args:  cobra.NoArgs,
		RunE:  runAutostartStatus,
	})
}

// editWatches loads the watch list from the config file, applies edit and saves
// it. A corrupt file is reported rather than overwritten.
func editWatches(edit func(*watchlist.List) error) error {
	store := config.NewStore(configPath, commandLogger())
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	list, err := watchlist.New(cfg.Watches...)
	if err != nil {
		return err
	}
	if err := edit(list); err != nil {
		return err
	}
	return store.SaveWatches(list.Snapshot())
}

func runAdd(cmd *cobra.Command, args []string) error {
	width, height, err := watchlist.ParseResolution(args[1])
	if err != nil {
		return err
	}

	err = editWatches(func(l *watchlist.List) error {
		_, err := l.Add(args[0], width, height)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s at %dx%d\n", args[0], width, height)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	err := editWatches(func(l *watchlist.List) error {
		_, err := l.Remove(args[0])
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stopped watching %s\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	return writeWatches(cmd.OutOrStdout(), cfg.Watches, listFormat)
}

func writeWatches(w io.Writer, entries []watchlist.Entry, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text":
		if len(entries) == 0 {
			fmt.Fprintln(w, "No programs are being watched.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROCESS\tRESOLUTION")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%dx%d\n", e.ProcessName, e.Width, e.Height)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (expected text, yaml or json)", format)
	}
}

func runDisplay(cmd *cobra.Command, args []string) error {
	backend, err := display.NewBackend()
	if err != nil {
		return fmt.Errorf("failed to open display backend: %w", err)
	}

	mode, err := backend.Current()
	if err != nil {
		return fmt.Errorf("failed to get current display mode: %w", err)
	}

	out := cmd.OutOrStdout()
	if name := display.Describe(backend); name != "" {
		fmt.Fprintf(out, "Display: %s\n", name)
	}
	fmt.Fprintf(out, "Mode:    %s\n", mode)
	return nil
}

func runAutostartSet(cmd *cobra.Command, enable bool) error {
	mgr, err := autostart.New()
	if err != nil {
		return err
	}
	if err := autostart.Set(mgr, enable); err != nil {
		return err
	}

	// keep the window's checkbox in step
	store := config.NewStore(configPath, commandLogger())
	if _, err := store.Load(); err != nil {
		return err
	}
	settings := store.Settings()
	settings.StartWithOS = enable
	if err := store.SaveSettings(settings); err != nil {
		return err
	}

	if enable {
		fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled (%s)\n", mgr.Location())
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
	}
	return nil
}

func runAutostartStatus(cmd *cobra.Command, args []string) error {
	mgr, err := autostart.New()
	if err != nil {
		return err
	}

	enabled, err := mgr.IsEnabled()
	if err != nil {
		return err
	}

	if enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "enabled (%s)\n", mgr.Location())
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "disabled")
	}
	return nil
}
