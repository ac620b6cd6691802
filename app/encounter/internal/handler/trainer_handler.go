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

// TrainerHandler 账户、伙伴、收藏与被动经验
type TrainerHandler struct {
	logger     logger.Logger
	trainers   *service.TrainerService
	experience *service.ExperienceService
	metrics    *metrics.EncounterMetrics
}

// NewTrainerHandler 创建训练师处理器
func NewTrainerHandler(
	l logger.Logger,
	trainers *service.TrainerService,
	experience *service.ExperienceService,
	m *metrics.EncounterMetrics,
) *TrainerHandler {
	return &TrainerHandler{
		logger:     l.Named("handler.trainer"),
		trainers:   trainers,
		experience: experience,
		metrics:    m,
	}
}

// StartRequest 开始冒险请求
type StartRequest struct {
	Generation int `json:"generation" binding:"required,min=1"`
	SpeciesID  int `json:"species_id" binding:"required,min=1"`
}

// StartResponse 开始冒险响应
type StartResponse struct {
	Trainer *model.Trainer  `json:"trainer"`
	Starter *model.Creature `json:"starter"`
}

// PartnerRequest 设置伙伴请求，creature_id 为空表示清除
type PartnerRequest struct {
	CreatureID string `json:"creature_id"`
}

// NicknameRequest 设置昵称请求，空串表示清除
type NicknameRequest struct {
	Nickname string `json:"nickname"`
}

// SettingRequest 修改偏好请求
type SettingRequest struct {
	Key   string `json:"key" binding:"required,max=64"`
	Value string `json:"value" binding:"required,max=64"`
}

// ListQuery 收藏分页参数
type ListQuery struct {
	Page int `form:"page" binding:"omitempty,min=1,max=100000"`
	Size int `form:"size" binding:"omitempty,min=1,max=100"`
}

// Register 注册路由
func (h *TrainerHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/start", h.Start)
	rg.GET("", h.Get)
	rg.GET("/creatures", h.ListCreatures)
	rg.PUT("/partner", h.SetPartner)
	rg.PUT("/settings", h.UpdateSetting)
	rg.PUT("/creatures/:cid/nickname", h.SetNickname)
}

// RegisterPassive 注册不经过限流的路由
func (h *TrainerHandler) RegisterPassive(rg *gin.RouterGroup) {
	rg.POST("/messages", h.OnMessage)
}

// Start 开始冒险
// @Summary 创建账户并领取初始伙伴
// @Tags trainer
// @Param request body StartRequest true "世代与物种"
// @Success 200 {object} web.Response{data=StartResponse}
// @Router /v1/trainers/{id}/start [post]
func (h *TrainerHandler) Start(c *gin.Context) {
	start := time.Now()

	var req StartRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	tr, starter, err := h.trainers.StartAdventure(c.Request.Context(), c.Param("id"), req.Generation, req.SpeciesID)
	h.metrics.RecordAction("start", err == nil, time.Since(start))
	if err != nil {
		writeError(c, h.logger, "start", err)
		return
	}

	web.Success(c, StartResponse{Trainer: tr, Starter: starter})
}

// Get 查询账户
func (h *TrainerHandler) Get(c *gin.Context) {
	tr, err := h.trainers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get_trainer", err)
		return
	}
	web.Success(c, tr)
}

// ListCreatures 分页查询收藏
func (h *TrainerHandler) ListCreatures(c *gin.Context) {
	var q ListQuery
	if !web.BindQuery(c, &q) {
		return
	}

	page, err := h.trainers.ListCreatures(c.Request.Context(), c.Param("id"), q.Page, q.Size)
	if err != nil {
		writeError(c, h.logger, "list_creatures", err)
		return
	}
	web.Success(c, page)
}

// SetPartner 设置或清除伙伴
func (h *TrainerHandler) SetPartner(c *gin.Context) {
	var req PartnerRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var err error
	if req.CreatureID == "" {
		err = h.trainers.ClearPartner(ctx, c.Param("id"))
	} else {
		err = h.trainers.SetPartner(ctx, c.Param("id"), req.CreatureID)
	}
	if err != nil {
		writeError(c, h.logger, "set_partner", err)
		return
	}
	web.Success(c, gin.H{"partner_id": req.CreatureID})
}

// UpdateSetting 修改偏好
// @Summary 修改单个偏好项
// @Tags trainer
// @Param request body SettingRequest true "偏好项与取值"
// @Success 200 {object} web.Response{data=model.Trainer}
// @Router /v1/trainers/{id}/settings [put]
func (h *TrainerHandler) UpdateSetting(c *gin.Context) {
	var req SettingRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	tr, err := h.trainers.UpdateSetting(c.Request.Context(), c.Param("id"), req.Key, req.Value)
	if err != nil {
		writeError(c, h.logger, "update_setting", err)
		return
	}
	web.Success(c, tr)
}

// SetNickname 设置昵称
func (h *TrainerHandler) SetNickname(c *gin.Context) {
	var req NicknameRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	if err := h.trainers.SetNickname(c.Request.Context(), c.Param("id"), c.Param("cid"), req.Nickname); err != nil {
		writeError(c, h.logger, "set_nickname", err)
		return
	}
	web.Success(c, nil)
}

// OnMessage 聊天消息钩子，异步给伙伴发放经验
func (h *TrainerHandler) OnMessage(c *gin.Context) {
	if err := h.experience.Enqueue(c.Param("id")); err != nil {
		writeError(c, h.logger, "message", err)
		return
	}
	web.Success(c, gin.H{"queued": true})
}
