package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/zone"
	"github.com/sanscope/sanscope/pkg/logger"
)

// ZoneHandler zoning 事务处理器
type ZoneHandler struct {
	config *config.Config
}

// NewZoneHandler 创建 zoning 处理器
func NewZoneHandler(cfg *config.Config) *ZoneHandler {
	return &ZoneHandler{config: cfg}
}

// ZoneApplyRequest zoning 脚本执行请求
type ZoneApplyRequest struct {
	IPAddr   string `json:"ip_addr" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"pw" binding:"required"`
	Security string `json:"security,omitempty"`
	FID      int    `json:"fid,omitempty"`
	// Script zoning CLI 脚本内容，一行一条命令
	Script string `json:"script" binding:"required"`
	// Test 只校验不下发
	Test bool `json:"test,omitempty"`
	// Force 创建冲突时覆盖已有对象
	Force bool `json:"force,omitempty"`
}

// Apply 执行 zoning 脚本
// @Summary 在 fabric 上执行 zoning CLI 脚本
// @Description 命令顺序执行，任一条失败即中止事务并放弃未保存的修改
// @Tags zone
// @Accept json
// @Produce json
// @Param request body ZoneApplyRequest true "zoning 请求"
// @Success 200 {object} SuccessResponse "全部命令执行成功"
// @Failure 400 {object} ErrorResponse "脚本解析错误"
// @Failure 422 {object} SuccessResponse "事务已中止，附各命令执行记录"
// @Router /api/v1/zone/apply [post]
func (h *ZoneHandler) Apply(c *gin.Context) {
	var request ZoneApplyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	ops, err := zone.ParseFile(strings.NewReader(request.Script))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "SCRIPT_PARSE_FAILED",
			Message: "脚本解析失败: " + err.Error(),
		})
		return
	}
	if len(ops) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "EMPTY_SCRIPT",
			Message: "脚本为空",
		})
		return
	}

	session, err := loginSession(c.Request.Context(), h.config, request.IPAddr, request.UserID, request.Password, request.Security)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "LOGIN_FAILED",
			Message: "交换机登录失败: " + err.Error(),
		})
		return
	}
	defer session.Logout(context.Background())

	applier := zone.NewApplier(session, request.FID)
	applier.Test = request.Test
	applier.Force = request.Force

	results, err := applier.Apply(c.Request.Context(), ops)
	if err != nil {
		logger.Errorf("zone apply failed: %v", err)
		c.JSON(http.StatusUnprocessableEntity, SuccessResponse{
			Code:    "TRANSACTION_ABORTED",
			Message: err.Error(),
			Data:    results,
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "脚本执行完成",
		Data:    results,
	})
}

// ZoneEnableRequest 启用配置请求
type ZoneEnableRequest struct {
	IPAddr   string `json:"ip_addr" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"pw" binding:"required"`
	Security string `json:"security,omitempty"`
	FID      int    `json:"fid,omitempty"`
	CfgName  string `json:"cfg_name" binding:"required"`
}

// Enable 启用指定 zone 配置
// @Summary 启用指定的 zone 配置
// @Tags zone
// @Accept json
// @Produce json
// @Param request body ZoneEnableRequest true "启用请求"
// @Success 200 {object} SuccessResponse "启用成功"
// @Router /api/v1/zone/enable [post]
func (h *ZoneHandler) Enable(c *gin.Context) {
	var request ZoneEnableRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	session, err := loginSession(c.Request.Context(), h.config, request.IPAddr, request.UserID, request.Password, request.Security)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "LOGIN_FAILED",
			Message: "交换机登录失败: " + err.Error(),
		})
		return
	}
	defer session.Logout(context.Background())

	applier := zone.NewApplier(session, request.FID)
	if err := applier.EnableCfg(c.Request.Context(), request.CfgName); err != nil {
		logger.Errorf("cfgenable %s failed: %v", request.CfgName, err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code:    "ENABLE_FAILED",
			Message: "配置启用失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "配置已启用",
		Data:    gin.H{"cfg_name": request.CfgName},
	})
}
