package main

import (
	"fmt"
	"os"
	"sort"

	"ctxsearch/internal/config"
	"ctxsearch/internal/logging"
	"ctxsearch/internal/policy"
	"ctxsearch/internal/prefs"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ctxsearch",
	Short: "Contextual search decision pipeline for tap and long-press selections",
	Long: `ctxsearch drives the contextual search subsystem outside the browser:
the selection controller classifies taps and long-presses, the policy
evaluator gates prefetch and term resolution against opt-in state and tap
limits, and the request builder produces the search URLs.

Use 'replay' to run a scripted event trace, 'attach' to feed the pipeline
from a live Chromium page, and 'prefs' to inspect the persisted counters.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.Development = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// prefsCmd inspects and resets the persisted counters
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect or reset the persisted tap and promo counters",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted counters and the derived promo tap counter state",
	RunE:  prefsShow,
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset all counters, re-enabling the promo tap counter",
	RunE:  prefsReset,
}

// configCmd manages the configuration file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration file commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to the config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file %s already exists", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ctxsearch.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsResetCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*prefs.SQLiteStore, error) {
	store, err := prefs.OpenSQLite(cfg.Prefs.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open preference store %s: %w", cfg.Prefs.DatabasePath, err)
	}
	return store, nil
}

func prefsShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counter, err := policy.LoadPromoTapCounter(store)
	if err != nil {
		return err
	}
	eval := policy.NewEvaluator(store, policy.StaticParams(cfg.Policy), counter, logger)

	counters, err := eval.DescribeCounters()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Contextual Search Counters"))
	fmt.Println(dimStyle.Render(store.Path()))
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s %s\n", keyStyle.Render(fmt.Sprintf("%-28s", k)), counters[k])
	}
	return nil
}

func prefsReset(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	counter, err := policy.LoadPromoTapCounter(store)
	if err != nil {
		return err
	}
	if err := counter.Reset(); err != nil {
		return err
	}
	for _, key := range []string{
		prefs.KeyTapCount,
		prefs.KeyTapQuickAnswerCount,
		prefs.KeyPromoOpenCount,
		prefs.KeyPeekPromoShowCount,
		prefs.KeyLastAnimationTime,
	} {
		if err := store.Delete(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	logger.Info("counters reset", zap.String("db", store.Path()))
	fmt.Println("Counters reset.")
	return nil
}
