package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/internal/stats"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
)

// StatsHandler 端口统计处理器
type StatsHandler struct {
	config *config.Config
	db     *gorm.DB
}

// NewStatsHandler 创建端口统计处理器
func NewStatsHandler(cfg *config.Config, db *gorm.DB) *StatsHandler {
	return &StatsHandler{config: cfg, db: db}
}

// StatsRunRequest 统计采样请求
type StatsRunRequest struct {
	IPAddr   string `json:"ip_addr" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"pw" binding:"required"`
	Security string `json:"security,omitempty"`
	FID      int    `json:"fid,omitempty"`
	// Interval 采样间隔秒数，低于下限会被抬高
	Interval int `json:"interval,omitempty"`
	// Samples 采样次数
	Samples int `json:"samples,omitempty"`
}

// Run 执行统计采样并入库
// @Summary 对单台逻辑交换机做端口计数器差分采样
// @Description 同步执行，采样结束后差分样本写入数据库
// @Tags stats
// @Accept json
// @Produce json
// @Param request body StatsRunRequest true "采样请求"
// @Success 200 {object} SuccessResponse "采样完成"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/stats/run [post]
func (h *StatsHandler) Run(c *gin.Context) {
	var request StatsRunRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	interval := time.Duration(request.Interval) * time.Second
	if interval <= 0 {
		interval = h.config.Stats.Interval
	}
	samples := request.Samples
	if samples <= 0 {
		samples = h.config.Stats.MaxSamples
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

	collection, err := stats.NewPoller(session, request.FID, interval, samples).Run(c.Request.Context())
	if err != nil {
		logger.Errorf("stats polling failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "POLL_FAILED",
			Message: "采样失败: " + err.Error(),
		})
		return
	}

	rows, err := stats.WriteCollection(h.db, collection)
	if err != nil {
		logger.Errorf("write stats samples: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DB_WRITE_FAILED",
			Message: "样本入库失败: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "OK",
		Message: "采样完成",
		Data: gin.H{
			"base_switch_wwn": collection.BaseSwitchWWN,
			"samples":         len(collection.SwitchList),
			"rows":            rows,
		},
	})
}

// QuerySamples 查询差分样本
// @Summary 按交换机、端口、计数器过滤差分样本
// @Tags stats
// @Produce json
// @Param switch_wwn query string false "交换机 WWN"
// @Param port query string false "端口名"
// @Param counter query string false "计数器名"
// @Param limit query int false "返回条数"
// @Success 200 {array} model.StatsSample
// @Router /api/v1/stats/samples [get]
func (h *StatsHandler) QuerySamples(c *gin.Context) {
	q := h.db.Model(&model.StatsSample{})
	if wwn := c.Query("switch_wwn"); wwn != "" {
		q = q.Where("switch_wwn = ?", wwn)
	}
	if port := c.Query("port"); port != "" {
		q = q.Where("port = ?", port)
	}
	if counter := c.Query("counter"); counter != "" {
		q = q.Where("counter = ?", counter)
	}
	limit := 1000
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var samples []model.StatsSample
	if err := q.Order("sample_index").Limit(limit).Find(&samples).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "样本查询失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, samples)
}

// loginSession 按请求参数建立 API 会话
func loginSession(ctx context.Context, cfg *config.Config, ip, user, pw, security string) (*rest.Session, error) {
	restCfg := rest.DefaultConfig()
	restCfg.Security = cfg.Capture.Security
	if security != "" {
		restCfg.Security = security
	}
	restCfg.Timeout = cfg.Capture.Timeout
	restCfg.MaxRetries = cfg.Capture.MaxRetries

	session := rest.NewSession(restCfg)
	if err := session.Login(ctx, ip, user, pw); err != nil {
		return nil, err
	}
	return session, nil
}
