package handler

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/sentry"
	"github.com/lk2023060901/xdooria-encounter/pkg/web"
	weberrors "github.com/lk2023060901/xdooria-encounter/pkg/web/errors"
	"github.com/lk2023060901/xdooria-encounter/pkg/web/middleware"
	"github.com/panjf2000/ants/v2"
)

// Router 汇总所有 HTTP 处理器
type Router struct {
	trainer   *TrainerHandler
	encounter *EncounterHandler
	shop      *ShopHandler
	limiter   *middleware.RateLimiter
	logger    logger.Logger
}

// NewRouter 创建路由，limiter 为 nil 时不限流
func NewRouter(
	l logger.Logger,
	trainer *TrainerHandler,
	encounter *EncounterHandler,
	shop *ShopHandler,
	limiter *middleware.RateLimiter,
) *Router {
	return &Router{
		trainer:   trainer,
		encounter: encounter,
		shop:      shop,
		limiter:   limiter,
		logger:    l.Named("handler.router"),
	}
}

// Register 注册路由
func (r *Router) Register(e *gin.Engine) {
	e.GET("/healthz", r.Healthz)

	v1 := e.Group("/v1")
	v1.GET("/stats", r.encounter.Stats)

	// 聊天消息不是命令，不计入限流，由经验冷却节流
	r.trainer.RegisterPassive(v1.Group("/trainers/:id", withTrainer))

	trainers := v1.Group("/trainers/:id", withTrainer)
	if r.limiter != nil {
		trainers.Use(middleware.RateLimit(r.limiter))
	}
	r.trainer.Register(trainers)
	r.encounter.Register(trainers)
	r.shop.Register(trainers)
}

// Healthz 存活检查
func (r *Router) Healthz(c *gin.Context) {
	web.Success(c, gin.H{"status": "ok"})
}

// TrainerKey 按训练师限流的键函数
func TrainerKey(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return "trainer:" + id
	}
	return "ip:" + c.ClientIP()
}

// withTrainer 把路径中的训练师 ID 写入日志上下文
func withTrainer(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		web.AbortWithError(c, weberrors.CodeInvalidParams, "trainer id is required")
		return
	}
	c.Request = c.Request.WithContext(logger.WithTrainerID(c.Request.Context(), id))
	c.Next()
}

// errorCode 业务错误映射为响应码
func errorCode(err error) int {
	switch {
	case errors.IsAny(err, service.ErrNoAccount, service.ErrNotFound):
		return weberrors.CodeNotFound
	case errors.Is(err, service.ErrNotOwned):
		return weberrors.CodeForbidden
	case errors.IsAny(err, service.ErrAccountExists, service.ErrDailyCooldown,
		service.ErrConflict, service.ErrSessionAlreadyActive):
		return weberrors.CodeConflict
	case errors.IsAny(err, service.ErrInvalidDevice, service.ErrInvalidStarter,
		service.ErrInvalidNickname, service.ErrInvalidQuantity, service.ErrInvalidSetting, service.ErrNoPartner,
		service.ErrInsufficientFunds, service.ErrInsufficientDevices):
		return weberrors.CodeInvalidParams
	case errors.Is(err, ants.ErrPoolOverload):
		return weberrors.CodeRateLimited
	}
	return weberrors.CodeInternalError
}

// writeError 写出错误响应，内部错误不向调用方暴露细节，只记录日志并上报 Sentry
func writeError(c *gin.Context, l logger.Logger, action string, err error) {
	code := errorCode(err)
	if code == weberrors.CodeInternalError {
		l.ErrorContext(c.Request.Context(), "request failed",
			"action", action,
			"path", c.FullPath(),
			"error", err,
		)
		sentry.CaptureException(c.Request.Context(), err, map[string]string{
			"action": action,
			"route":  c.FullPath(),
		})
		web.Error(c, code, "internal error")
		return
	}

	var cd *service.CooldownError
	if errors.As(err, &cd) {
		c.Header("Retry-After", formatSeconds(cd.Remaining))
	}
	web.Error(c, code, err.Error())
}

func formatSeconds(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
