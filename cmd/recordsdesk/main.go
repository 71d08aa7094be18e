package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recordsdesk/internal/app"
	"recordsdesk/internal/config"
	"recordsdesk/internal/repositories"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "recordsdesk",
		Short:         "Records Desk - public records request tracking service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default $RECORDSDESK_CONFIG or "+config.DefaultPath+")")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(pollMailCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML file and overlays RECORDSDESK_* variables.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	env := config.NewEnv()
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.ConfigPath(env)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the mailbox poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := repositories.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer store.Close()
			v, err := store.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d\n", v)
			return nil
		},
	}
}

func pollMailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll-mail",
		Short: "Fetch unseen agency mail once and route it to requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.IMAP.Host == "" {
				return fmt.Errorf("imap.host is not configured")
			}
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Poller().PollOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("handled %d message(s)\n", n)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("recordsdesk", Version)
		},
	}
}
