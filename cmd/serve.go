package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/llm"
	"github.com/abhisek/codecoach/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the problem and completion API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, level, err := newLogger(os.Stderr)
		if err != nil {
			return err
		}
		loader.WatchLogLevel(level, logger)

		st, err := openServerStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var provider llm.Provider
		err = cfg.LLM.Validate()
		if err == nil {
			provider, err = llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
		}
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			logger.Warn("completion API key is not configured, chat routes will fail", "provider", cfg.LLM.Provider, "error", err)
			provider = nil
		case err != nil:
			return fmt.Errorf("configure LLM provider: %w", err)
		default:
			logger.Info("completion provider ready", "provider", cfg.LLM.Provider, "model", provider.ModelID())
		}

		srv, err := server.New(cfg.ServerOptions(version), st.ProblemRepo(), provider, logger)
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides CODECOACH_SERVER_ADDR)")
	if err := loader.BindFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
}
