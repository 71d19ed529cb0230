package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/modengine-overrides/internal/config"
	"github.com/example/modengine-overrides/internal/fileopen"
	"github.com/example/modengine-overrides/internal/logx"
	"github.com/example/modengine-overrides/internal/modloader"
	"github.com/example/modengine-overrides/internal/modsync"
	"github.com/example/modengine-overrides/internal/pathmatch"
	"github.com/example/modengine-overrides/internal/resolvecache"
	"github.com/example/modengine-overrides/internal/state"
	"github.com/example/modengine-overrides/internal/wstr"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modengine",
		Short:         "Inspect and prepare loose file overrides for archive-backed games",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newResolveCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newPrintSampleConfigCmd())
	root.AddCommand(newPrintSampleStateCmd())

	return root
}

type resolveResult struct {
	Input     string `json:"input"`
	Archive   string `json:"archive,omitempty"`
	Suffix    string `json:"suffix,omitempty"`
	Rewritten string `json:"rewritten"`
	Override  string `json:"override,omitempty"`
}

type resolveReport struct {
	Results []resolveResult               `json:"results"`
	Stats   map[string]resolvecache.Stats `json:"cache_stats"`
}

func newResolveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve --config <path> <archive-path>...",
		Short: "Show how archive paths are rewritten when overrides exist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			loader, err := modloader.FromConfig(cfg, logx.NewWithWriter(cmd.ErrOrStderr(), cfg.Level()))
			if err != nil {
				return err
			}
			results := make([]resolveResult, 0, len(args))
			for _, in := range args {
				res := resolveResult{Input: in, Rewritten: in}
				if m, ok := pathmatch.MatchString(in); ok {
					res.Archive = m.Archive
					res.Suffix = m.Suffix.Dotted()
					buf := wstr.FromString(in)
					if loader.Rewriter().Rewrite(buf) {
						res.Rewritten = buf.String()
						res.Override, _ = loader.ArchiveOverride(m.Suffix.String())
					}
				}
				results = append(results, res)
			}
			loader.LogStats()
			return printJSON(cmd.OutOrStdout(), resolveReport{Results: results, Stats: loader.Stats()})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "modengine.json", "path to config file (.json, .jsonc, .yaml)")
	return cmd
}

type openResult struct {
	Path     string                        `json:"path"`
	Override string                        `json:"override,omitempty"`
	Opened   bool                          `json:"opened"`
	Error    string                        `json:"error,omitempty"`
	Stats    map[string]resolvecache.Stats `json:"cache_stats"`
}

func newOpenCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "open --config <path> <file>",
		Short: "Open a file through the override interceptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			loader, err := modloader.FromConfig(cfg, logx.NewWithWriter(cmd.ErrOrStderr(), cfg.Level()))
			if err != nil {
				return err
			}
			ic := loader.Interceptor(fileopen.OSOpen)
			res := openResult{Path: args[0]}
			res.Override, _ = ic.Override(args[0])
			h, err := ic.Open(fileopen.ReadOnly(args[0]))
			if err != nil {
				res.Error = err.Error()
			} else if h != fileopen.InvalidHandle {
				res.Opened = true
				if err := fileopen.Close(h); err != nil {
					return fmt.Errorf("close handle: %w", err)
				}
			}
			loader.LogStats()
			res.Stats = loader.Stats()
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "modengine.json", "path to config file (.json, .jsonc, .yaml)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync --config <path>",
		Short: "Mirror remote override roots into their local directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logx.NewWithWriter(cmd.ErrOrStderr(), cfg.Level())
			if len(cfg.RemoteRoots) == 0 {
				logger.Info("no remote roots configured", nil)
				return nil
			}
			gameDir, err := cfg.WorkingDir()
			if err != nil {
				return err
			}
			st, err := state.Load(cfg.StatePath)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			syncErr := modsync.NewEngine(logger).SyncRoots(ctx, cfg, gameDir, &st)
			if err := state.SaveAtomic(cfg.StatePath, st); err != nil {
				return fmt.Errorf("save state: %w", err)
			}
			return syncErr
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "modengine.json", "path to config file (.json, .jsonc, .yaml)")
	return cmd
}

func newPrintSampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-sample-config",
		Short: "Print a sample modengine.json to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), config.Sample())
		},
	}
}

func newPrintSampleStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print-sample-state",
		Short: "Print a sample empty state file to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), state.Sample())
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
