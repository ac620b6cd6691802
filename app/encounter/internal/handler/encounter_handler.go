package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/metrics"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/model"
	"github.com/lk2023060901/xdooria-encounter/app/encounter/internal/service"
	"github.com/lk2023060901/xdooria-encounter/pkg/logger"
	"github.com/lk2023060901/xdooria-encounter/pkg/metrics/sliding"
	"github.com/lk2023060901/xdooria-encounter/pkg/web"
)

// EncounterHandler 野生遭遇与捕获
type EncounterHandler struct {
	logger  logger.Logger
	capture *service.CaptureService
	metrics *metrics.EncounterMetrics
}

// NewEncounterHandler 创建遭遇处理器
func NewEncounterHandler(l logger.Logger, capture *service.CaptureService, m *metrics.EncounterMetrics) *EncounterHandler {
	return &EncounterHandler{
		logger:  l.Named("handler.encounter"),
		capture: capture,
		metrics: m,
	}
}

// ThrowRequest 投掷请求，device 支持缩写
type ThrowRequest struct {
	Device string `json:"device" binding:"required"`
}

// StatsResponse 运行统计
type StatsResponse struct {
	OpenSessions int           `json:"open_sessions"`
	Actions      sliding.Stats `json:"actions"`
}

// Register 注册路由
func (h *EncounterHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/encounters")
	{
		g.POST("", h.Begin)
		g.POST("/throw", h.Throw)
		g.POST("/run", h.Run)
	}
}

// Begin 触发一次野生遭遇
// @Summary 遇到野生个体，拒绝原因放在 data.reason 中
// @Tags encounter
// @Success 200 {object} web.Response{data=model.SessionOutcome}
// @Router /v1/trainers/{id}/encounters [post]
func (h *EncounterHandler) Begin(c *gin.Context) {
	out, err := h.capture.BeginEncounter(c.Request.Context(), c.Param("id"))
	h.respond(c, "begin", out, err)
}

// Throw 投掷捕获道具
// @Summary 使用道具尝试捕获
// @Tags encounter
// @Param request body ThrowRequest true "道具"
// @Success 200 {object} web.Response{data=model.SessionOutcome}
// @Router /v1/trainers/{id}/encounters/throw [post]
func (h *EncounterHandler) Throw(c *gin.Context) {
	var req ThrowRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	// 无法识别的名称原样交给会话，按 invalid_device 处理且不结束会话
	device, ok := model.ParseDevice(req.Device)
	if !ok {
		device = model.DeviceType(req.Device)
	}

	out, err := h.capture.SubmitDevice(c.Request.Context(), c.Param("id"), device)
	h.respond(c, "throw", out, err)
}

// Run 逃跑
func (h *EncounterHandler) Run(c *gin.Context) {
	out, err := h.capture.SubmitAbort(c.Request.Context(), c.Param("id"))
	h.respond(c, "run", out, err)
}

// Stats 运行统计
func (h *EncounterHandler) Stats(c *gin.Context) {
	web.Success(c, StatsResponse{
		OpenSessions: h.capture.OpenSessions(),
		Actions:      h.metrics.GetStats(),
	})
}

// respond 会话操作的耗时指标由 CaptureService 记录
func (h *EncounterHandler) respond(c *gin.Context, action string, out *model.SessionOutcome, err error) {
	if err != nil {
		writeError(c, h.logger, action, err)
		return
	}
	web.Success(c, out)
}
