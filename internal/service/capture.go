package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sanscope/sanscope/internal/capture"
	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
	"github.com/sanscope/sanscope/pkg/ssh"
)

// CaptureService 异步采集服务
type CaptureService struct {
	config  *config.Config
	db      *gorm.DB
	archive ArchiveWriter
	mutex   sync.RWMutex
	running bool
	tasks   map[string]*TaskContext
	workers chan struct{}
}

// TaskContext 任务上下文
type TaskContext struct {
	Task      *model.CaptureTask
	Cancel    context.CancelFunc
	StartTime time.Time
}

// CaptureRequest 采集请求
type CaptureRequest struct {
	IPAddr     string   `json:"ip_addr" binding:"required"`
	UserID     string   `json:"user_id" binding:"required"`
	Password   string   `json:"pw" binding:"required"`
	Security   string   `json:"security,omitempty"`
	Name       string   `json:"name,omitempty"`
	KPIFile    string   `json:"kpi_file,omitempty"`
	FIDs       []int    `json:"fids,omitempty"`
	ClearStats bool     `json:"clear_stats,omitempty"`
	NoCLI      bool     `json:"no_cli,omitempty"`
	KPIs       []string `json:"kpis,omitempty"`
}

// NewCaptureService 创建采集服务
func NewCaptureService(cfg *config.Config, db *gorm.DB) *CaptureService {
	workers := cfg.Capture.Workers
	if workers <= 0 {
		workers = 1
	}
	return &CaptureService{
		config:  cfg,
		db:      db,
		archive: NewArchiveWriter(cfg),
		tasks:   make(map[string]*TaskContext),
		workers: make(chan struct{}, workers),
	}
}

// Start 启动服务
func (s *CaptureService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return fmt.Errorf("capture service is already running")
	}
	s.running = true
	go s.cleanupTasks(ctx)
	logger.Info("capture service started")
	return nil
}

// Stop 停止服务并取消全部任务
func (s *CaptureService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	for _, taskCtx := range s.tasks {
		if taskCtx.Cancel != nil {
			taskCtx.Cancel()
		}
	}
	logger.Info("capture service stopped")
	return nil
}

// Submit 提交采集任务，返回任务 ID
// 采集在后台协程执行，进度经 TaskStatus 查询
func (s *CaptureService) Submit(req *CaptureRequest) (string, error) {
	s.mutex.RLock()
	running := s.running
	s.mutex.RUnlock()
	if !running {
		return "", fmt.Errorf("capture service is not running")
	}

	task := &model.CaptureTask{
		ID:        uuid.NewString(),
		Type:      model.TaskTypeCapture,
		Status:    model.TaskStatusPending,
		IPAddr:    rest.MaskIPAddr(req.IPAddr, true),
		CreatedAt: time.Now(),
	}
	if err := s.saveTask(task); err != nil {
		return "", fmt.Errorf("save capture task: %w", err)
	}

	taskCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	s.addTaskContext(task.ID, &TaskContext{Task: task, Cancel: cancel, StartTime: time.Now()})

	go func() {
		defer cancel()
		defer s.removeTaskContext(task.ID)

		select {
		case s.workers <- struct{}{}:
			defer func() { <-s.workers }()
		case <-taskCtx.Done():
			s.finishTask(task, "", fmt.Errorf("queue wait cancelled: %w", taskCtx.Err()))
			return
		}

		now := time.Now()
		task.Status = model.TaskStatusRunning
		task.StartedAt = &now
		if err := s.saveTask(task); err != nil {
			logger.Errorf("update capture task %s: %v", task.ID, err)
		}

		output, err := s.runCapture(taskCtx, req, task.ID)
		s.finishTask(task, output, err)
	}()

	return task.ID, nil
}

// runCapture 登录并采集单台机箱，返回落盘路径
func (s *CaptureService) runCapture(ctx context.Context, req *CaptureRequest, taskID string) (string, error) {
	proj := model.NewProject(req.Name, "")

	session, cli, err := s.connect(ctx, req)
	if err != nil {
		return "", err
	}
	defer session.Logout(context.Background())
	if cli != nil {
		defer cli.Close()
	}

	kpis := req.KPIs
	if len(kpis) == 0 && req.KPIFile != "" {
		kpis, err = capture.SelectKPIs(session, req.KPIFile)
		if err != nil {
			return "", err
		}
	}

	capturer := capture.New(session, cli, capture.Options{
		KPIs:       kpis,
		FIDs:       req.FIDs,
		MaskIP:     s.config.Capture.MaskIP,
		ClearStats: req.ClearStats,
	})
	if err := capturer.Run(ctx, proj); err != nil {
		return "", err
	}

	label := req.Name
	if label == "" {
		label = rest.MaskIPAddr(req.IPAddr, true)
	}
	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal capture result: %w", err)
	}
	obj, err := s.archive.Write(ctx, ArchiveMeta{
		Project:  req.Name,
		Label:    label,
		TaskID:   taskID,
		FileName: "capture.json",
	}, data, "application/json")
	if err != nil {
		// 回退写入也算成功，预警留在日志里
		logger.Warnf("archive capture result for task %s: %v", taskID, err)
	}
	return obj.URI, nil
}

// connect 建立 API 会话与可选的 CLI 会话
func (s *CaptureService) connect(ctx context.Context, req *CaptureRequest) (*rest.Session, *ssh.Client, error) {
	restCfg := rest.DefaultConfig()
	restCfg.Security = s.config.Capture.Security
	if req.Security != "" {
		restCfg.Security = req.Security
	}
	restCfg.Timeout = s.config.Capture.Timeout
	restCfg.MaxRetries = s.config.Capture.MaxRetries
	restCfg.RecordDir = s.config.Capture.RecordDir
	restCfg.ReplayDir = s.config.Capture.ReplayDir

	session := rest.NewSession(restCfg)
	if err := session.Login(ctx, req.IPAddr, req.UserID, req.Password); err != nil {
		return nil, nil, fmt.Errorf("API login %s: %w", rest.MaskIPAddr(req.IPAddr, true), err)
	}

	var cli *ssh.Client
	if !req.NoCLI && !session.Replay() {
		cli = ssh.NewClient(&ssh.Config{
			Timeout:   s.config.SSH.Timeout,
			KeepAlive: s.config.SSH.KeepAliveInterval,
		})
		if err := cli.Connect(ctx, &ssh.ConnectionInfo{
			Host:     req.IPAddr,
			Port:     22,
			Username: req.UserID,
			Password: req.Password,
		}); err != nil {
			logger.Warnf("SSH login %s failed, CLI captures skipped: %v", rest.MaskIPAddr(req.IPAddr, true), err)
			cli = nil
		}
	}
	return session, cli, nil
}

// finishTask 落库任务终态
func (s *CaptureService) finishTask(task *model.CaptureTask, output string, err error) {
	now := time.Now()
	task.FinishedAt = &now
	task.Output = output
	if err != nil {
		if errors.Is(err, context.Canceled) || task.Status == model.TaskStatusCancelled {
			task.Status = model.TaskStatusCancelled
		} else {
			task.Status = model.TaskStatusFailed
		}
		task.Error = err.Error()
		logger.Errorf("capture task %s failed: %v", task.ID, err)
	} else {
		task.Status = model.TaskStatusSuccess
		logger.Infof("capture task %s finished: %s", task.ID, output)
	}
	if dbErr := s.saveTask(task); dbErr != nil {
		logger.Errorf("update capture task %s: %v", task.ID, dbErr)
	}
}

// TaskStatus 查询任务，内存里没有就查数据库
func (s *CaptureService) TaskStatus(taskID string) (*model.CaptureTask, error) {
	s.mutex.RLock()
	if taskCtx, ok := s.tasks[taskID]; ok {
		s.mutex.RUnlock()
		return taskCtx.Task, nil
	}
	s.mutex.RUnlock()

	var task model.CaptureTask
	if err := s.db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	return &task, nil
}

// ListTasks 最近任务列表
func (s *CaptureService) ListTasks(limit int) ([]model.CaptureTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var tasks []model.CaptureTask
	err := s.db.Order("created_at desc").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// Cancel 取消运行中的任务
func (s *CaptureService) Cancel(taskID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if taskCtx, ok := s.tasks[taskID]; ok {
		if taskCtx.Cancel != nil {
			taskCtx.Cancel()
			taskCtx.Task.Status = model.TaskStatusCancelled
		}
		return nil
	}
	return fmt.Errorf("task not found: %s", taskID)
}

func (s *CaptureService) addTaskContext(taskID string, taskCtx *TaskContext) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[taskID] = taskCtx
}

func (s *CaptureService) removeTaskContext(taskID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tasks, taskID)
}

// cleanupTasks 清理滞留超过一小时的任务上下文
func (s *CaptureService) cleanupTasks(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mutex.Lock()
			now := time.Now()
			for taskID, taskCtx := range s.tasks {
				if now.Sub(taskCtx.StartTime) > time.Hour {
					if taskCtx.Cancel != nil {
						taskCtx.Cancel()
					}
					delete(s.tasks, taskID)
				}
			}
			s.mutex.Unlock()
		}
	}
}

// saveTask 写任务记录，重复 ID 走更新
func (s *CaptureService) saveTask(task *model.CaptureTask) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(task).Error
}
