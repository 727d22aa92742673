package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/aiaimg/taxcollecotr-sub000/internal/infra"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded SQL migrations",
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres URL (defaults to $DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(url); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer")
				}
				steps = n
			}
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := infra.RollbackMigrations(url, steps); err != nil {
				return err
			}
			fmt.Printf("rolled back %d migration(s)\n", steps)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force [version]",
		Short: "Mark the schema as the given version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("version must be an integer")
			}
			url, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			if err := infra.ForceMigrationVersion(url, version); err != nil {
				return err
			}
			fmt.Printf("schema version forced to %d\n", version)
			return nil
		},
	})

	return cmd
}

// databaseURL avoids config.Load so migrations run before secrets exist.
func databaseURL(cmd *cobra.Command) (string, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return "", errors.New("set --database-url or DATABASE_URL")
	}
	return url, nil
}
