package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/threadbbs/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := bootstrap()
		utils.Sugar.Infof("schema up to date (driver=%s)", cfg.DBDriver)
		return nil
	},
}
