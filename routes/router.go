package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/cppla/threadbbs/config"
	"github.com/cppla/threadbbs/controllers"
	"github.com/cppla/threadbbs/middleware"
	"github.com/cppla/threadbbs/services"
	"github.com/cppla/threadbbs/utils"
)

// SetupRouter wires routes, middlewares, and controllers. rc may be nil, in which case
// responses are not cached and captcha answers live in process memory.
func SetupRouter(db *gorm.DB, rc *redis.Client, cfg config.AppConfig) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	// Access logs go to their own rolling file when configured
	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnf("gin log %s unavailable, using app logger: %v", cfg.GinPath, err)
		}
	}
	r.Use(ginzap.GinzapWithConfig(gl, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", c.GetString("request_id"))}
		},
	}))
	r.Use(ginzap.RecoveryWithZap(gl, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Respond(ctx, http.StatusOK, gin.H{"status": "ok"})
	})

	sanitizer := utils.NewSanitizer(utils.SanitizePolicy{
		Tags:       cfg.SanitizeTags,
		Attrs:      cfg.SanitizeAttrs,
		URLSchemes: cfg.SanitizeURLSchemes,
	})
	uploads := utils.NewAttachmentProcessor(utils.AttachmentPolicy{
		MaxFileBytes:   cfg.UploadMaxFileBytes,
		MaxTextBytes:   cfg.UploadMaxTextBytes,
		MaxImageWidth:  cfg.ImageMaxWidth,
		MaxImageHeight: cfg.ImageMaxHeight,
		MaxImagePixels: cfg.ImageMaxPixels,
		JPEGQuality:    cfg.JPEGQuality,
	})

	var cache *utils.Cache
	if cfg.CacheEnabled && rc != nil {
		cache = utils.NewCache(rc, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	}
	captchaTTL := time.Duration(cfg.CaptchaTTLSeconds) * time.Second
	digits := utils.NewDigitCaptcha(rc, captchaTTL)
	var verifier utils.CaptchaVerifier = digits
	if !cfg.CaptchaEnabled {
		verifier = utils.NoCaptcha{}
	}

	postService := services.NewPostService(db, cfg.PageDefaultLimit, cfg.PageMaxLimit)
	publisher := services.NewPublisher(postService, sanitizer, uploads, cfg.UploadMaxFiles)

	postController := controllers.NewPostController(postService, publisher, uploads, verifier, cache, cfg.MaxRequestBytes)
	statsController := controllers.NewStatsController(postService)
	captchaController := controllers.NewCaptchaController(digits)

	api := r.Group("/api/v1")

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/:id", postController.GetPost)
	postsGroup.POST("", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), postController.CreatePost)

	api.GET("/captcha", captchaController.Issue)
	api.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, utils.ErrorResponse{Error: "not found"})
	})

	return r
}
