package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sanscope/sanscope/internal/capture"
	"github.com/sanscope/sanscope/internal/combine"
	"github.com/sanscope/sanscope/internal/config"
	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/internal/report"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
	"github.com/sanscope/sanscope/pkg/ssh"
)

// MulticaptureService 批量采集：凭据表驱动多机箱并发采集，汇总成单一工程
type MulticaptureService struct {
	config *config.Config
}

// MulticaptureOptions 批量采集参数
type MulticaptureOptions struct {
	// CredentialsFile 登录参数工作簿
	CredentialsFile string
	// OutputDir 汇总结果输出目录
	OutputDir string
	// ProjectName 工程名，空用工作簿文件名
	ProjectName string
	// KPIs 限定采集对象，空用默认清单
	KPIs []string
	// NoCLI 跳过 fos_cli 采集
	NoCLI bool
	// NoReport 只合并不出 Excel 汇总
	NoReport bool
	// ClearStats 每台机箱采集成功后清零端口统计
	ClearStats bool
	// PreserveIPs 保留完整管理地址，不做遮蔽
	PreserveIPs bool
}

// MulticaptureResult 批量采集结果
type MulticaptureResult struct {
	Project    *model.Project    `json:"-"`
	OutputFile string            `json:"output_file"`
	ReportFile string            `json:"report_file,omitempty"`
	Captured   []string          `json:"captured"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// NewMulticaptureService 创建批量采集服务
func NewMulticaptureService(cfg *config.Config) *MulticaptureService {
	return &MulticaptureService{config: cfg}
}

// Run 执行批量采集
// 单台失败不中断其余机箱；上下文取消后已完成的结果仍然合并落盘
func (s *MulticaptureService) Run(ctx context.Context, opts MulticaptureOptions) (*MulticaptureResult, error) {
	creds, err := report.ReadCredentials(opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	name := opts.ProjectName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(opts.CredentialsFile), filepath.Ext(opts.CredentialsFile))
	}

	workers := s.config.Capture.Workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	projects := make([]*model.Project, 0, len(creds))
	result := &MulticaptureResult{Failed: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, cred := range creds {
		cred := cred
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil // 取消后不再开新采集，保留已有结果
			}
			proj, err := s.captureOne(gctx, name, cred, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Errorf("capture %s (%s) failed: %v", cred.Name, rest.MaskIPAddr(cred.IPAddr, true), err)
				result.Failed[cred.Name] = err.Error()
				return nil
			}
			projects = append(projects, proj)
			result.Captured = append(result.Captured, cred.Name)
			return nil
		})
	}
	_ = g.Wait()

	if len(projects) == 0 {
		return result, fmt.Errorf("no chassis captured (%d failed)", len(result.Failed))
	}

	merged := model.NewProject(name, "multicapture")
	for _, proj := range projects {
		combine.Merge(merged, proj)
	}
	result.Project = merged

	outputFile := filepath.Join(opts.OutputDir, name)
	if err := merged.Save(outputFile); err != nil {
		return result, err
	}
	result.OutputFile = outputFile + ".json"

	if !opts.NoReport {
		reportFile := filepath.Join(opts.OutputDir, name+".xlsx")
		if err := report.WriteSummary(merged, reportFile); err != nil {
			logger.Errorf("write summary workbook: %v", err)
		} else {
			result.ReportFile = reportFile
		}
	}

	if len(result.Failed) > 0 {
		logger.Warnf("multicapture finished with %d/%d chassis failed", len(result.Failed), len(creds))
	}
	return result, nil
}

// captureOne 采集单台机箱到独立工程
func (s *MulticaptureService) captureOne(ctx context.Context, projectName string, cred report.Credential, opts MulticaptureOptions) (*model.Project, error) {
	restCfg := rest.DefaultConfig()
	restCfg.Security = cred.Security
	restCfg.Timeout = s.config.Capture.Timeout
	restCfg.MaxRetries = s.config.Capture.MaxRetries
	restCfg.RecordDir = s.config.Capture.RecordDir
	restCfg.ReplayDir = s.config.Capture.ReplayDir

	session := rest.NewSession(restCfg)
	if err := session.Login(ctx, cred.IPAddr, cred.UserID, cred.Password); err != nil {
		return nil, fmt.Errorf("API login: %w", err)
	}
	defer session.Logout(context.Background())

	var cli *ssh.Client
	if !opts.NoCLI && !session.Replay() {
		cli = ssh.NewClient(&ssh.Config{
			Timeout:   s.config.SSH.Timeout,
			KeepAlive: s.config.SSH.KeepAliveInterval,
		})
		if err := cli.Connect(ctx, &ssh.ConnectionInfo{
			Host:     cred.IPAddr,
			Port:     22,
			Username: cred.UserID,
			Password: cred.Password,
		}); err != nil {
			logger.Warnf("SSH login %s failed, CLI captures skipped: %v", cred.Name, err)
			cli = nil
		} else {
			defer cli.Close()
		}
	}

	proj := model.NewProject(projectName, cred.Name)
	capturer := capture.New(session, cli, capture.Options{
		KPIs:       opts.KPIs,
		MaskIP:     s.config.Capture.MaskIP && !opts.PreserveIPs,
		ClearStats: opts.ClearStats,
	})
	if err := capturer.Run(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}
