package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanscope/sanscope/internal/service"
	"github.com/sanscope/sanscope/pkg/logger"
)

// MulticaptureHandler 批量采集处理器
type MulticaptureHandler struct {
	multicaptureService *service.MulticaptureService
}

// NewMulticaptureHandler 创建批量采集处理器
func NewMulticaptureHandler(multicaptureService *service.MulticaptureService) *MulticaptureHandler {
	return &MulticaptureHandler{multicaptureService: multicaptureService}
}

// MulticaptureRequest 批量采集请求
type MulticaptureRequest struct {
	// CredentialsFile 服务器本地的登录参数工作簿路径
	CredentialsFile string `json:"credentials_file" binding:"required"`
	OutputDir       string `json:"output_dir" binding:"required"`
	ProjectName     string `json:"project_name,omitempty"`
	NoCLI           bool   `json:"no_cli,omitempty"`
	NoReport        bool   `json:"no_report,omitempty"`
	ClearStats      bool   `json:"clear_stats,omitempty"`
	PreserveIPs     bool   `json:"preserve_ips,omitempty"`
}

// Run 执行批量采集
// @Summary 按凭据表并发采集多台机箱并汇总
// @Description 同步执行，单台失败不中断其余机箱
// @Tags multicapture
// @Accept json
// @Produce json
// @Param request body MulticaptureRequest true "批量采集请求"
// @Success 200 {object} SuccessResponse "采集完成"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/multicapture [post]
func (h *MulticaptureHandler) Run(c *gin.Context) {
	var request MulticaptureRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	result, err := h.multicaptureService.Run(c.Request.Context(), service.MulticaptureOptions{
		CredentialsFile: request.CredentialsFile,
		OutputDir:       request.OutputDir,
		ProjectName:     request.ProjectName,
		NoCLI:           request.NoCLI,
		NoReport:        request.NoReport,
		ClearStats:      request.ClearStats,
		PreserveIPs:     request.PreserveIPs,
	})
	if err != nil {
		logger.Errorf("multicapture failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "MULTICAPTURE_FAILED",
			Message: "批量采集失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "批量采集完成",
		Data:    result,
	})
}
