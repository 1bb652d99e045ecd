package rest

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSession 指向 httptest 服务器的已登录会话
func newTestSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Security = SecurityNone
	cfg.SvcUnavailWait = 10 * time.Millisecond
	cfg.FabricBusyWait = 10 * time.Millisecond
	s := NewSession(cfg)
	s.baseURL = srv.URL
	s.token = "Custom_Basic test-token"
	s.uriMap = defaultURIMap()
	return s, srv
}

func TestLogin(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Authorization", "Custom_Basic session-key")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/rest/brocade-module-version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"brocade-module-version":{"module":[
			{"name":"brocade-interface","version":"1.40.0","uri":"/rest/running/brocade-interface",
			 "objects":{"object":["fibrechannel","fibrechannel-statistics"]}}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Security = SecurityNone
	s := NewSession(cfg)

	// Security 为 none 时走 http，测试服务器地址直接当作交换机 ip
	host := strings.TrimPrefix(srv.URL, "http://")
	err := s.Login(context.Background(), host, "admin", "password")
	require.NoError(t, err)

	// 认证头为 Custom_Basic base64(user:pw:)
	wantCred := base64.StdEncoding.EncodeToString([]byte("admin:password:"))
	assert.Equal(t, "Custom_Basic "+wantCred, gotAuth)
	assert.Equal(t, "Custom_Basic session-key", s.token)

	// 登录后 URI 表已从 brocade-module-version 构建
	info, ok := s.LookupKPI("running/brocade-interface/fibrechannel-statistics")
	require.True(t, ok)
	assert.Equal(t, AreaPort, info.Area)
	assert.True(t, info.PerFID())
}

func TestLoginBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":{"error":[{"error-message":"Access denied"}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Security = SecurityNone
	s := NewSession(cfg)
	host := strings.TrimPrefix(srv.URL, "http://")
	err := s.Login(context.Background(), host, "admin", "wrong")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Messages, "Access denied")
}

func TestGetRetryOnUnavailable(t *testing.T) {
	// 前两次 503，第三次成功
	var calls int
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"fibrechannel-switch":[{"name":"10:00:00:00:00:00:00:01"}]}`))
	}))

	body, err := s.Get(context.Background(), "running/brocade-fibrechannel-switch/fibrechannel-switch", 128)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, body, "fibrechannel-switch")
}

func TestGetRetryFabricBusy(t *testing.T) {
	var calls int
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":{"error":[{"error-message":"The Fabric is busy"}]}}`))
			return
		}
		w.Write([]byte(`{"fabric-switch":[]}`))
	}))

	_, err := s.Get(context.Background(), "running/brocade-fabric/fabric-switch", 128)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetRetryExhausted(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}))

	_, err := s.Get(context.Background(), "running/brocade-fabric/fabric-switch", 128)
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, StatusUnavailable, apiErr.Status)
}

func TestGetEmptyListNormalization(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"errors":{"error":[{"error-message":"Not Found"}]}}`},
		{"fdmi empty", http.StatusBadRequest, `{"errors":{"error":[{"error-message":"No entries in the FDMI database"}]}}`},
		{"unsupported", http.StatusBadRequest, `{"errors":{"error":[{"error-message":"Not supported on this platform"}]}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			body, err := s.Get(context.Background(), "running/brocade-fdmi/hba", 128)
			require.NoError(t, err)
			// 归一化为空列表，键名取 URI 末段
			assert.Equal(t, map[string]interface{}{"hba": []interface{}{}}, body)
		})
	}
}

func TestPatchNoChange(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":{"error":[{"error-message":"No Change in Configuration"}]}}`))
	}))

	err := s.Patch(context.Background(), "running/brocade-fibrechannel-switch/fibrechannel-switch", 128,
		map[string]interface{}{"fibrechannel-switch": map[string]interface{}{"banner": "x"}})
	assert.NoError(t, err)
}

func TestFormatURI(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	s.baseURL = "https://10.1.1.1"

	// 交换机级对象带 vf-id
	uri := s.formatURI("running/brocade-zone/defined-configuration", 128)
	assert.Equal(t, "https://10.1.1.1/rest/running/brocade-zone/defined-configuration?vf-id=128", uri)

	// 机箱级对象不带 vf-id
	uri = s.formatURI("running/brocade-chassis/chassis", 128)
	assert.Equal(t, "https://10.1.1.1/rest/running/brocade-chassis/chassis", uri)

	// 未指定 FID 时一律不带
	uri = s.formatURI("running/brocade-zone/defined-configuration", 0)
	assert.Equal(t, "https://10.1.1.1/rest/running/brocade-zone/defined-configuration", uri)
}

func TestRecordReplay(t *testing.T) {
	dir := t.TempDir()

	// 记录模式：GET 响应写入目录
	recHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chassis":{"chassis-wwn":"10:00:00:00:00:00:00:aa"}}`))
	})
	s, _ := newTestSession(t, recHandler)
	s.cfg.RecordDir = dir
	body, err := s.Get(context.Background(), "running/brocade-chassis/chassis", 0)
	require.NoError(t, err)
	require.Contains(t, body, "chassis")

	// 回放模式：不发网络请求，从目录读回同样的响应
	cfg := DefaultConfig()
	cfg.ReplayDir = dir
	replay := NewSession(cfg)
	err = replay.Login(context.Background(), "10.1.1.1", "admin", "pw")
	require.NoError(t, err)

	got, err := replay.Get(context.Background(), "running/brocade-chassis/chassis", 0)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// 未记录过的 URI 回放为空列表
	got, err = replay.Get(context.Background(), "running/brocade-fdmi/port", 128)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"port": []interface{}{}}, got)
}

func TestOperationsPolling(t *testing.T) {
	var statusCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/operations/supportsave", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"show-status":{"message-id":20001,"status":"queued"}}`))
	})
	mux.HandleFunc("/rest/operations/show-status/message-id/20001", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		if statusCalls < 2 {
			w.Write([]byte(`{"show-status":{"message-id":20001,"status":"in-progress"}}`))
			return
		}
		w.Write([]byte(`{"show-status":{"message-id":20001,"status":"done"}}`))
	})
	s, _ := newTestSession(t, mux)

	body, err := s.Operations(context.Background(), "operations/supportsave", 0, map[string]interface{}{}, 10*time.Millisecond, 5)
	require.NoError(t, err)
	_, status := showStatus(body)
	assert.Equal(t, "done", status)
	assert.Equal(t, 2, statusCalls)
}

func TestMaskIPAddr(t *testing.T) {
	assert.Equal(t, "xxx.xxx.xxx.21", MaskIPAddr("10.144.72.21", true))
	assert.Equal(t, "xxx.xxx.xxx.xxx", MaskIPAddr("10.144.72.21", false))
	// 非 IPv4 形式原样返回
	assert.Equal(t, "switch01.lab", MaskIPAddr("switch01.lab", true))
}
