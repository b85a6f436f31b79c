// Package cmd defines the sitecrawl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/config"
	"github.com/JakeFAU/sitecrawl/internal/logging"
)

// runtimeKey stores the loaded runtime in the command context.
type runtimeKey struct{}

// runtime holds what PersistentPreRunE builds for subcommands.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// flagKeys maps command flags onto viper keys so flags override config files
// and environment variables.
var flagKeys = map[string]string{
	"max-pages":    "crawler.max_pages",
	"delay":        "crawler.delay",
	"workers":      "crawler.workers",
	"headless":     "headless.mode",
	"report-dir":   "report.dir",
	"metrics-addr": "metrics.addr",
}

// newRootCmd creates the root command. Every invocation gets its own viper
// instance so tests can build commands side by side.
func newRootCmd() *cobra.Command {
	var cfgFile string
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Crawl one website and report word counts per page.",
		Long: `sitecrawl walks every reachable page of a single site with a pool of
concurrent workers, counts the words on each page, and writes CSV, text, and
markdown reports broken down by language and category.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), runtimeKey{}, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := resolveRuntime(cmd.Context()); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON, or TOML)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// bindFlags binds the known flags of the executing command. Unchanged flags
// fall through to config, env, and defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		return nil, errors.New("command context not set")
	}
	rt, ok := ctx.Value(runtimeKey{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a canceled crawl still writes its partial reports.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
