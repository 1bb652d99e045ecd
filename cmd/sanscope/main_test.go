package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sanscope/sanscope/pkg/rest"
)

func TestParseFIDList(t *testing.T) {
	fids, err := parseFIDList("1,20-22,128")
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 20, 21, 22, 128}, fids)

	fids, err = parseFIDList("")
	assert.NoError(t, err)
	assert.Nil(t, fids)

	_, err = parseFIDList("0")
	assert.Error(t, err)

	_, err = parseFIDList("5-3")
	assert.Error(t, err)

	_, err = parseFIDList("abc")
	assert.Error(t, err)

	_, err = parseFIDList("1,200")
	assert.Error(t, err)
}

func TestLoginFeedbackMasksIP(t *testing.T) {
	flagIP, flagID, flagSec = "10.144.72.21", "admin", "self"
	defer func() { flagIP, flagID, flagSec = "", "", "self" }()

	lines := loginFeedback()
	assert.Equal(t, "IP, -ip:             xxx.xxx.xxx.21", lines[0])
	assert.Equal(t, "ID, -id:             admin", lines[1])
	assert.Equal(t, "Security, -s:        self", lines[2])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitInput, exitCode(inputErrorf("missing -f")))
	assert.Equal(t, exitAPIError, exitCode(&rest.Error{Status: 503, Reason: "Service Unavailable"}))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))

	// 包装后的分类错误仍按内层类型归类
	wrapped := inputErrorf("KPI list: %v", errors.New("open failed"))
	assert.Equal(t, exitInput, exitCode(wrapped))
}
