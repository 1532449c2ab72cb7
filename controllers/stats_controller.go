package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/threadbbs/services"
	"github.com/cppla/threadbbs/utils"
)

// StatsController provides board statistics such as post and attachment counts.
type StatsController struct {
	posts *services.PostService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(posts *services.PostService) *StatsController {
	return &StatsController{posts: posts}
}

// GetStats returns aggregate statistics for the board.
func (s *StatsController) GetStats(ctx *gin.Context) {
	st, err := s.posts.Stats(ctx.Request.Context())
	if err != nil {
		utils.Logger.Error("load stats failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.Respond(ctx, http.StatusOK, st)
}
