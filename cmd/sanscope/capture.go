package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanscope/sanscope/internal/capture"
	"github.com/sanscope/sanscope/internal/combine"
	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/internal/service"
	"github.com/sanscope/sanscope/internal/supportshow"
	"github.com/sanscope/sanscope/pkg/logger"
	"github.com/sanscope/sanscope/pkg/rest"
	"github.com/sanscope/sanscope/pkg/ssh"
)

// signalContext Control-C 触发取消，已完成的部分仍然落盘
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loginREST 按全局登录参数建立 API 会话
func loginREST(ctx context.Context) (*rest.Session, error) {
	cfg := cliConfig()
	restCfg := rest.DefaultConfig()
	restCfg.Security = flagSec
	restCfg.Timeout = cfg.Capture.Timeout
	restCfg.MaxRetries = cfg.Capture.MaxRetries
	restCfg.RecordDir = cfg.Capture.RecordDir
	restCfg.ReplayDir = cfg.Capture.ReplayDir

	session := rest.NewSession(restCfg)
	if err := session.Login(ctx, flagIP, flagID, flagPW); err != nil {
		return nil, err
	}
	return session, nil
}

// loginCLI 建立 SSH 会话，失败返回 nil 由调用方跳过 CLI 采集
func loginCLI(ctx context.Context) *ssh.Client {
	cfg := cliConfig()
	cli := ssh.NewClient(&ssh.Config{
		Timeout:   cfg.SSH.Timeout,
		KeepAlive: cfg.SSH.KeepAliveInterval,
	})
	if err := cli.Connect(ctx, &ssh.ConnectionInfo{
		Host:     flagIP,
		Port:     22,
		Username: flagID,
		Password: flagPW,
	}); err != nil {
		logger.Warnf("SSH login failed, CLI captures skipped: %v", err)
		return nil
	}
	return cli
}

func newCaptureCmd() *cobra.Command {
	var (
		outFile string
		kpiSpec string
		fidCSV  string
		clr     bool
		nm      bool
	)
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture (GET) requests from a chassis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			if outFile == "" {
				return inputErrorf("missing required output file: -f")
			}
			fids, err := parseFIDList(fidCSV)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			session, err := loginREST(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			kpis, err := capture.SelectKPIs(session, kpiSpec)
			if err != nil {
				return inputErrorf("KPI list: %v", err)
			}

			var cli *ssh.Client
			if !session.Replay() {
				if cli = loginCLI(ctx); cli != nil {
					defer cli.Close()
				}
			}

			feedback(append(loginFeedback(),
				"Output file, -f:     "+outFile,
				"KPI list, -c:        "+kpiSpec,
				"FIDs, -fid:          "+fidCSV,
			)...)

			proj := model.NewProject(strings.TrimSuffix(filepath.Base(outFile), ".json"), "capture")
			capturer := capture.New(session, cli, capture.Options{
				KPIs:       kpis,
				FIDs:       fids,
				MaskIP:     !nm,
				ClearStats: clr,
			})
			if err := capturer.Run(ctx, proj); err != nil && ctx.Err() == nil {
				return err
			}
			if err := proj.Save(outFile); err != nil {
				return err
			}
			feedback(fmt.Sprintf("Capture complete. %d chassis written to %s", len(proj.Chassis), outFile))
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "f", "", `Required. Output file for captured data. ".json" is automatically appended.`)
	cmd.Flags().StringVar(&kpiSpec, "c", "", "KPI list file. Use * to capture all data the chassis supports. The default is the report KPI set.")
	cmd.Flags().StringVar(&fidCSV, "fid", "", "CSV list or range of FIDs to capture logical switch specific data.")
	cmd.Flags().BoolVar(&clr, "clr", false, "Clear port statistics after successful capture.")
	cmd.Flags().BoolVar(&nm, "nm", false, "Preserve full IP addresses in the output file.")
	return cmd
}

func newCombineCmd() *cobra.Command {
	var (
		inDir   string
		outName string
	)
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine captured data files into a single project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inDir == "" || outName == "" {
				return inputErrorf("missing required parameters: -i, -o")
			}
			feedback(
				"Input directory, -i: "+inDir,
				"Output file, -o:     "+outName,
			)
			proj, err := combine.Directory(inDir, outName)
			if err != nil {
				if os.IsNotExist(err) {
					return inputErrorf("%v", err)
				}
				return err
			}
			feedback(fmt.Sprintf("Combined %d chassis into %s", len(proj.Chassis), filepath.Join(inDir, outName)))
			return nil
		},
	}
	cmd.Flags().StringVar(&inDir, "i", "", `Required. Directory of captured data files. Only ".json" files are read.`)
	cmd.Flags().StringVar(&outName, "o", "", `Required. Name of the combined data file, placed in the -i folder.`)
	return cmd
}

func newMulticaptureCmd() *cobra.Command {
	var (
		credsFile string
		outDir    string
		kpiFile   string
		noReport  bool
		clr       bool
		nm        bool
	)
	cmd := &cobra.Command{
		Use:   "multicapture",
		Short: "Capture multiple chassis from a credentials workbook, then combine and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if credsFile == "" {
				return inputErrorf("missing required credentials workbook: -i")
			}
			if !strings.HasSuffix(credsFile, ".xlsx") {
				credsFile += ".xlsx"
			}
			if outDir == "" {
				outDir = "."
			}

			var kpis []string
			if kpiFile != "" {
				f, err := os.Open(kpiFile)
				if err != nil {
					return inputErrorf("KPI list: %v", err)
				}
				kpis, err = capture.ParseKPIList(f)
				f.Close()
				if err != nil {
					return inputErrorf("KPI list: %v", err)
				}
			}

			feedback(
				"Credentials, -i:     "+credsFile,
				"Output folder, -f:   "+outDir,
			)

			ctx, cancel := signalContext()
			defer cancel()

			result, err := service.NewMulticaptureService(cliConfig()).Run(ctx, service.MulticaptureOptions{
				CredentialsFile: credsFile,
				OutputDir:       outDir,
				KPIs:            kpis,
				NoReport:        noReport,
				ClearStats:      clr,
				PreserveIPs:     nm,
			})
			if err != nil {
				if result == nil {
					return inputErrorf("%v", err)
				}
				return err
			}

			lines := []string{fmt.Sprintf("Captured %d chassis, combined into %s", len(result.Captured), result.OutputFile)}
			if result.ReportFile != "" {
				lines = append(lines, "Report written to "+result.ReportFile)
			}
			for name, msg := range result.Failed {
				lines = append(lines, fmt.Sprintf("FAILED %s: %s", name, msg))
			}
			feedback(lines...)
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d chassis failed", len(result.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&credsFile, "i", "", `Required. Excel file of switch login credentials. ".xlsx" is automatically appended.`)
	cmd.Flags().StringVar(&outDir, "f", "", "Folder for captured data and the report. Default is the current directory.")
	cmd.Flags().StringVar(&kpiFile, "c", "", "KPI list file applied to every chassis.")
	cmd.Flags().BoolVar(&noReport, "r", false, "Skip the Excel summary report.")
	cmd.Flags().BoolVar(&clr, "clr", false, "Clear port statistics after each successful capture.")
	cmd.Flags().BoolVar(&nm, "nm", false, "Preserve full IP addresses in the output file.")
	return cmd
}

func newSscaptureCmd() *cobra.Command {
	var (
		ssPath  string
		outFile string
	)
	cmd := &cobra.Command{
		Use:   "sscapture",
		Short: "Convert supportshow output files to a capture project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ssPath == "" || outFile == "" {
				return inputErrorf("missing required parameters: -ss, -o")
			}
			feedback(
				"supportshow, -ss:    "+ssPath,
				"Output file, -o:     "+outFile,
			)

			proj := model.NewProject(strings.TrimSuffix(filepath.Base(outFile), ".json"), "supportshow")
			if err := supportshow.ParsePath(ssPath, proj); err != nil {
				return inputErrorf("%v", err)
			}
			if err := proj.Save(outFile); err != nil {
				return err
			}
			feedback(fmt.Sprintf("Parsed %d chassis into %s", len(proj.Chassis), outFile))
			return nil
		},
	}
	cmd.Flags().StringVar(&ssPath, "ss", "", "Required. supportshow output file or folder of collection folders.")
	cmd.Flags().StringVar(&outFile, "o", "", `Required. Output file for converted data. ".json" is automatically appended.`)
	return cmd
}

func newLoginTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logintest",
		Short: "Verify API login credentials and URI discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			session, err := loginREST(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			feedback(append(loginFeedback(),
				fmt.Sprintf("Login succeeded. %d URIs discovered.", len(session.URIMap())),
			)...)
			return nil
		},
	}
	return cmd
}
