package main

import (
	"errors"
	"fmt"

	"github.com/jonathan/property-analyzer/internal/db"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the listing page cache database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	RunE:  runDBMigrate,
}

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cached pages",
	RunE:  runDBPrune,
}

var dbPagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List recently cached pages",
	RunE:  runDBPages,
}

var (
	pagesPlatform string
	pagesLimit    int
)

func init() {
	dbPagesCmd.Flags().StringVar(&pagesPlatform, "platform", "", "Only list pages of this platform (suumo, homes, athome)")
	dbPagesCmd.Flags().IntVar(&pagesLimit, "limit", 20, "Maximum number of pages")

	dbCmd.AddCommand(dbMigrateCmd, dbPruneCmd, dbPagesCmd)
	rootCmd.AddCommand(dbCmd)
}

func databaseURL() (string, error) {
	settings, err := loadSettings(configPath)
	if err != nil {
		return "", err
	}
	newLogger(settings)
	if settings.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL environment variable is required")
	}
	return settings.DatabaseURL, nil
}

func runDBMigrate(_ *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	return db.Migrate(url)
}

func runDBPrune(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	database, err := db.Connect(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer database.Close()

	deleted, err := database.DeleteExpiredPages(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired pages\n", deleted)
	return nil
}

func runDBPages(cmd *cobra.Command, _ []string) error {
	url, err := databaseURL()
	if err != nil {
		return err
	}
	database, err := db.Connect(cmd.Context(), url)
	if err != nil {
		return err
	}
	defer database.Close()

	pages, err := database.ListRecentPages(cmd.Context(), pagesPlatform, pagesLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range pages {
		platform := "-"
		if p.Platform != nil {
			platform = *p.Platform
		}
		fmt.Fprintf(out, "%s  %-8s %s\n", p.FetchedAt.Format("2006-01-02 15:04"), platform, p.URL)
	}
	return nil
}
