package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/app"
	"github.com/abhisek/codecoach/internal/client"
	"github.com/abhisek/codecoach/internal/config"
)

// runApp opens the client state, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	logPath, err := config.LogFilePath()
	if err != nil {
		return fmt.Errorf("resolve log path: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger, level, err := newLogger(logFile)
	if err != nil {
		return err
	}
	loader.WatchLogLevel(level, logger)

	c, svc, state, err := newTutor(logger)
	if err != nil {
		return err
	}
	defer state.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	if _, err := c.CheckServer(ctx); err != nil {
		if errors.Is(err, client.ErrIncompatible) {
			fmt.Fprintln(os.Stderr, "Warning:", err)
		}
		logger.Warn("server check failed", "url", c.BaseURL(), "error", err)
	}

	return app.Run(app.Deps{Backend: c, Tutor: svc})
}
