package ssh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCLIPort(t *testing.T) {
	// 固定端口交换机去掉 0/ 前缀
	assert.Equal(t, "5", CLIPort("0/5"))
	// 导向器端口保留 slot/port 形式
	assert.Equal(t, "3/14", CLIPort("3/14"))
	assert.Equal(t, "12", CLIPort("12"))
}

func TestCommandResultLines(t *testing.T) {
	r := &CommandResult{Output: "\r\nswitchshow\r\nswitchName: sw01\r\nswitchState: Online\r\n\r\n"}
	lines := r.Lines()
	assert.Equal(t, []string{"switchshow", "switchName: sw01", "switchState: Online"}, lines)

	// 空输出
	r = &CommandResult{Output: "\r\n\r\n"}
	assert.Empty(t, r.Lines())
}

func TestCLIWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CLIWait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
