package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/threadbbs/config"
	"github.com/cppla/threadbbs/controllers"
	"github.com/cppla/threadbbs/services"
	"github.com/cppla/threadbbs/utils"
)

var deletePostID uint

var deletePostCmd = &cobra.Command{
	Use:   "delete-post",
	Short: "Delete a post together with all replies and attachments",
	Long: `Delete a post, every reply below it at any depth and all of their attachments
in a single transaction.

Examples:
  threadbbs delete-post --id 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if deletePostID == 0 {
			return errors.New("--id is required")
		}
		cfg := bootstrap()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		svc := services.NewPostService(config.DB(), cfg.PageDefaultLimit, cfg.PageMaxLimit)
		n, err := svc.DeletePost(ctx, deletePostID)
		if err != nil {
			return fmt.Errorf("delete post %d: %w", deletePostID, err)
		}
		if cfg.CacheEnabled {
			rc := utils.NewRedis(cfg)
			defer rc.Close()
			controllers.InvalidatePosts(ctx, utils.NewCache(rc, 0))
		}
		utils.Sugar.Infof("deleted post %d and %d replies", deletePostID, n-1)
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d posts\n", n)
		return nil
	},
}

func init() {
	deletePostCmd.Flags().UintVar(&deletePostID, "id", 0, "id of the post to delete")
}
