package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/threadbbs/config"
	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

// rootCmd runs the server when no subcommand is given
var rootCmd = &cobra.Command{
	Use:   "threadbbs",
	Short: "Threaded message board with nested replies and file attachments",
	Long: `threadbbs serves an anonymous message board over HTTP. Visitors post
root messages or reply to any post; replies nest without depth limit.
Attachments are limited to images, which are scaled down, and small text files.

Configuration is read from .env, config/config.json and environment variables.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, deletePostCmd)
}

// bootstrap loads configuration and the logger, then opens and migrates the database.
func bootstrap() config.AppConfig {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	config.InitDatabase(&models.Post{}, &models.Attachment{})
	return cfg
}
