package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/web"
)

// ShopHandler 商店与每日奖励
type ShopHandler struct {
	logger  logger.Logger
	shop    *service.ShopService
	metrics *metrics.EncounterMetrics
}

// NewShopHandler 创建商店处理器
func NewShopHandler(l logger.Logger, shop *service.ShopService, m *metrics.EncounterMetrics) *ShopHandler {
	return &ShopHandler{
		logger:  l.Named("handler.shop"),
		shop:    shop,
		metrics: m,
	}
}

// PurchaseRequest 购买请求
type PurchaseRequest struct {
	Device   string `json:"device" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// DailyResponse 每日奖励响应
type DailyResponse struct {
	ClaimedAt time.Time `json:"claimed_at"`
	Streak    int       `json:"streak"`
	Reward    int64     `json:"reward"`
}

// Register 注册路由
func (h *ShopHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/shop/purchase", h.Purchase)
	rg.POST("/daily", h.ClaimDaily)
}

// Purchase 购买道具
// @Summary 扣除货币并增加道具
// @Tags shop
// @Param request body PurchaseRequest true "道具与数量"
// @Success 200 {object} web.Response{data=service.Receipt}
// @Failure 400 {object} web.Response
// @Router /v1/trainers/{id}/shop/purchase [post]
func (h *ShopHandler) Purchase(c *gin.Context) {
	start := time.Now()

	var req PurchaseRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	device, ok := model.ParseDevice(req.Device)
	if !ok {
		device = model.DeviceType(req.Device)
	}

	receipt, err := h.shop.Purchase(c.Request.Context(), c.Param("id"), device, req.Quantity)
	h.metrics.RecordAction("purchase", err == nil, time.Since(start))
	if err != nil {
		writeError(c, h.logger, "purchase", err)
		return
	}
	web.Success(c, receipt)
}

// ClaimDaily 领取每日奖励，冷却中返回 409 并带 Retry-After
func (h *ShopHandler) ClaimDaily(c *gin.Context) {
	claim, err := h.shop.ClaimDaily(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "daily", err)
		return
	}
	web.Success(c, DailyResponse{
		ClaimedAt: claim.ClaimedAt,
		Streak:    claim.Streak,
		Reward:    claim.Reward,
	})
}
