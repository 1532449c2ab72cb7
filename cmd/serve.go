package cmd

import (
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/cppla/threadbbs/config"
	"github.com/cppla/threadbbs/routes"
	"github.com/cppla/threadbbs/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown on SIGINT/SIGTERM.
SIGUSR2 starts a new process on the same listener and drains this one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg := bootstrap()
	defer utils.Logger.Sync() //nolint:errcheck

	// Redis backs both the response cache and the captcha store
	var rc *redis.Client
	if cfg.CacheEnabled {
		rc = utils.NewRedis(cfg)
		defer rc.Close()
	}

	r := routes.SetupRouter(config.DB(), rc, cfg)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
		return err
	}
	return nil
}
