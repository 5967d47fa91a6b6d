package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ctxsearch/internal/browser"
	"ctxsearch/internal/engine"
	"ctxsearch/internal/policy"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var attachParamsFile string

// attachCmd feeds the pipeline from a live Chromium page
var attachCmd = &cobra.Command{
	Use:   "attach [url]",
	Short: "Attach to a live Chromium page and run the pipeline on its events",
	Long: `Opens url in Chromium (or connects to an existing instance via
browser.debugger_url / CTXSEARCH_DEBUGGER_URL), injects selection and
pointer listeners, and feeds every page event through the pipeline,
printing the decisions. Counters persist in the configured store.

Pass --params to hot-reload policy trial parameters from a watched YAML
file while attached.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachParamsFile, "params", "", "Watch this YAML file for policy parameter changes")
}

func runAttach(cmd *cobra.Command, args []string) error {
	url := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var src policy.ParamSource = policy.StaticParams(cfg.Policy)
	if attachParamsFile != "" {
		fileSrc, err := policy.NewFileParams(attachParamsFile, logger)
		if err != nil {
			return fmt.Errorf("watch params file: %w", err)
		}
		defer fileSrc.Close()
		src = fileSrc
	}

	session, err := engine.NewSession(cfg, store, src, nil, newPrintObserver(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	source := browser.NewEventSource(cfg.Browser, session, logger)
	if err := source.Start(ctx, url); err != nil {
		return err
	}
	logger.Info("attached", zap.String("url", url), zap.String("session", session.ID))
	fmt.Println(headerStyle.Render("Attached: " + url))
	fmt.Println(dimStyle.Render("Press Ctrl+C to detach"))

	<-ctx.Done()
	return source.Stop()
}
