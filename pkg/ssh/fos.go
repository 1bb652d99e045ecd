package ssh

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultCLIWait API 配置变更落到 CLI 可见通常需要数秒
const DefaultCLIWait = 10 * time.Second

// Fosexec 在指定逻辑交换机上执行 FOS 命令
// fid 大于 0 时包装为 fosexec --fid N -cmd "<cmd>"，非 VF 模式直接下发
func (c *Client) Fosexec(ctx context.Context, fid int, cmd string) ([]string, error) {
	full := cmd
	if fid > 0 {
		full = fmt.Sprintf("fosexec --fid %d -cmd \"%s\"", fid, cmd)
	}
	result, err := c.ExecuteCommand(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("fosexec %q: %w", cmd, err)
	}
	lines := result.Lines()
	// fosexec 包装时第一行是 "switchname FID N:" 回显，剥掉
	if fid > 0 && len(lines) > 0 && strings.HasSuffix(strings.TrimSpace(lines[0]), ":") {
		lines = lines[1:]
	}
	return lines, nil
}

// CLIPort API 端口名转 CLI 端口名
// 固定端口交换机的 API 名带 "0/" 前缀，CLI 命令只认纯端口号
func CLIPort(portName string) string {
	if rest, ok := strings.CutPrefix(portName, "0/"); ok {
		return rest
	}
	return portName
}

// CLIWait 等待 API 侧的配置变更在 CLI 侧生效
func CLIWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = DefaultCLIWait
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
