package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/threadbbs/utils"
)

// CaptchaController hands out image challenges for the create form.
type CaptchaController struct {
	issuer utils.CaptchaIssuer
}

func NewCaptchaController(issuer utils.CaptchaIssuer) *CaptchaController {
	return &CaptchaController{issuer: issuer}
}

// Issue returns a new challenge id and its base64 image.
func (c *CaptchaController) Issue(ctx *gin.Context) {
	id, image, err := c.issuer.Generate()
	if err != nil {
		utils.Logger.Error("generate captcha failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.Respond(ctx, http.StatusOK, gin.H{
		"captcha_key":   id,
		"captcha_image": image,
	})
}
