package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/sanscope/sanscope/internal/model"
	"github.com/sanscope/sanscope/pkg/rest"
)

// testDB 独立的临时任务库
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Dialector{
		DriverName: "sqlite",
		DSN:        filepath.Join(t.TempDir(), "tasks.db"),
	}, &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CaptureTask{}))
	return db
}

// newFosServer 最小的机箱假目标：登录、URI 发现、机箱与逻辑交换机查询
func newFosServer(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Custom_Basic session-key")
	})
	mux.HandleFunc("/rest/logout", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/rest/brocade-module-version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"brocade-module-version":{"module":[
			{"name":"brocade-chassis","version":"1.40.0","uri":"/rest/running/brocade-chassis",
			 "objects":{"object":["chassis"]}},
			{"name":"brocade-fibrechannel-logical-switch","version":"1.40.0","uri":"/rest/running/brocade-fibrechannel-logical-switch",
			 "objects":{"object":["fibrechannel-logical-switch"]}},
			{"name":"brocade-fibrechannel-switch","version":"1.40.0","uri":"/rest/running/brocade-fibrechannel-switch",
			 "objects":{"object":["fibrechannel-switch"]}}]}}`))
	})
	mux.HandleFunc("/rest/running/brocade-chassis/chassis", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chassis":{"chassis-wwn":"10:00:00:00:00:00:cc:01"}}`))
	})
	mux.HandleFunc("/rest/running/brocade-fibrechannel-logical-switch/fibrechannel-logical-switch", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fibrechannel-logical-switch":[{"fabric-id":128,"switch-wwn":"10:00:00:00:00:00:cc:02"}]}`))
	})
	mux.HandleFunc("/rest/running/brocade-fibrechannel-switch/fibrechannel-switch", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fibrechannel-switch":[{"name":"10:00:00:00:00:00:cc:02","user-friendly-name":"edge01"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestSubmitCapture(t *testing.T) {
	host := newFosServer(t)
	cfg := localConfig(t)
	cfg.Capture.Workers = 1
	db := testDB(t)

	svc := NewCaptureService(cfg, db)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	id, err := svc.Submit(&CaptureRequest{
		IPAddr:   host,
		UserID:   "admin",
		Password: "password",
		Security: rest.SecurityNone,
		Name:     "demo",
		NoCLI:    true,
		KPIs:     []string{"running/brocade-fibrechannel-switch/fibrechannel-switch"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var task model.CaptureTask
	require.Eventually(t, func() bool {
		if db.First(&task, "id = ?", id).Error != nil {
			return false
		}
		return task.Done()
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, model.TaskStatusSuccess, task.Status, task.Error)

	// 入库的管理地址已遮蔽
	assert.Equal(t, rest.MaskIPAddr(host, true), task.IPAddr)
	assert.True(t, strings.HasPrefix(task.IPAddr, "xxx.xxx.xxx."), task.IPAddr)

	// 归档落盘且内容可回读
	require.True(t, strings.HasPrefix(task.Output, "file://"), task.Output)
	proj, err := model.Load(strings.TrimPrefix(task.Output, "file://"))
	require.NoError(t, err)
	ch, ok := proj.Chassis["10:00:00:00:00:00:cc:01"]
	require.True(t, ok)
	sw, ok := ch.Switches["10:00:00:00:00:00:cc:02"]
	require.True(t, ok)
	assert.Equal(t, 128, sw.FID)
}

func TestSubmitNotRunning(t *testing.T) {
	svc := NewCaptureService(localConfig(t), testDB(t))
	_, err := svc.Submit(&CaptureRequest{IPAddr: "10.1.1.1", UserID: "admin", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}
