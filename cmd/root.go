package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/codecoach/internal/client"
	"github.com/abhisek/codecoach/internal/config"
	"github.com/abhisek/codecoach/internal/conversation"
	"github.com/abhisek/codecoach/internal/store"
	"github.com/abhisek/codecoach/internal/tutor"
)

var (
	loader = config.NewLoader()
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codecoach",
	Short: "AI coding tutor",
	Long:  "codecoach - a terminal coding tutor that answers with questions instead of solutions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := loader.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file (default: $XDG_CONFIG_HOME/codecoach/config.yaml)")
	flags.String("db", "", "Path to the server's problem database (overrides CODECOACH_SERVER_DB)")
	flags.String("state-db", "", "Path to the client's conversation database (overrides CODECOACH_CLIENT_STATE_DB)")
	flags.String("server", "", "Server base URL (overrides CODECOACH_CLIENT_SERVER_URL)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")

	for key, name := range map[string]string{
		"server.db":         "db",
		"client.state_db":   "state-db",
		"client.server_url": "server",
		"log.level":         "log-level",
	} {
		if err := loader.BindFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(problemCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the configured logger writing to w.
func newLogger(w io.Writer) (*slog.Logger, *slog.LevelVar, error) {
	return config.NewLogger(cfg.Log, w)
}

// newClient returns an API client for the configured server.
func newClient() *client.Client {
	return client.New(cfg.Client.ServerURL,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithVersion(version),
	)
}

// clientState bundles the client's local conversation store.
type clientState struct {
	store *store.Store
	convs *conversation.Manager
}

func (s *clientState) Close() error {
	return s.store.Close()
}

// openClientState opens the client database and restores the
// conversation history from it.
func openClientState(logger *slog.Logger) (*clientState, error) {
	path, err := cfg.ClientDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve state database path: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	convs := conversation.Open(store.NewBlobStorage(st.BlobRepo()), logger)
	return &clientState{store: st, convs: convs}, nil
}

// newTutor wires the client, conversation state and tutor service for the
// commands that talk to the tutor.
func newTutor(logger *slog.Logger) (*client.Client, *tutor.Service, *clientState, error) {
	state, err := openClientState(logger)
	if err != nil {
		return nil, nil, nil, err
	}
	c := newClient()
	return c, tutor.New(c, state.convs, logger), state, nil
}

// openServerStore opens the server's problem database.
func openServerStore() (*store.Store, error) {
	path, err := cfg.ServerDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func stderrLogger() *slog.Logger {
	logger, _, err := newLogger(os.Stderr)
	if err != nil {
		return slog.Default()
	}
	return logger
}
