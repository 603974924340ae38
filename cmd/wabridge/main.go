package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wabridgehq/wabridge/internal/config"
	"github.com/wabridgehq/wabridge/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wabridge",
		Short: "WhatsApp Cloud API bridge with a persistent conversation store",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
