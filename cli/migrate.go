package cli

import (
	"log"

	"github.com/spf13/cobra"

	"watch-reward-system/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := openDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := Migrate(db); err != nil {
			return err
		}
		log.Println("✅ Schema up to date")
		return nil
	},
}
