package zone

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanscope/sanscope/pkg/rest"
)

func TestParseScript(t *testing.T) {
	script := `
# 新主机上线
alicreate "ali_srv01", "10:00:00:90:fa:c7:e9:3a"
zonecreate "z_srv01", "ali_srv01; ali_stor01"
zonecreate --peerzone "pz_srv02" -principal "50:00:09:72:00:01:c9:99" -members "10:00:00:90:fa:c7:e9:3b; 10:00:00:90:fa:c7:e9:3c"
cfgadd "PROD_CFG", "z_srv01"
defzone --noaccess
cfgsave
cfgenable "PROD_CFG"
`
	ops, err := ParseFile(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, ops, 7)

	assert.Equal(t, "alicreate", ops[0].Cmd)
	assert.Equal(t, "ali_srv01", ops[0].Name)
	assert.Equal(t, []string{"10:00:00:90:fa:c7:e9:3a"}, ops[0].Members)

	assert.Equal(t, []string{"ali_srv01", "ali_stor01"}, ops[1].Members)

	pz := ops[2]
	assert.True(t, pz.Peer)
	assert.Equal(t, "pz_srv02", pz.Name)
	assert.Equal(t, []string{"50:00:09:72:00:01:c9:99"}, pz.Principals)
	assert.Len(t, pz.Members, 2)

	assert.Equal(t, "cfgadd", ops[3].Cmd)
	assert.Equal(t, "noaccess", ops[4].Name)
	assert.Equal(t, "cfgsave", ops[5].Cmd)
	assert.Equal(t, "PROD_CFG", ops[6].Name)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		script string
	}{
		{"unknown command", `portenable 5`},
		{"missing members", `alicreate "ali1"`},
		{"peer without principal", `zonecreate --peerzone "pz1" -members "m1"`},
		{"unterminated quote", `alicreate "ali1`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFile(strings.NewReader(tc.script))
			assert.Error(t, err)
		})
	}
}

// zoneServer 记录 zoning 请求的测试服务器
type zoneServer struct {
	mux      *http.ServeMux
	requests []string          // method + path
	bodies   map[string]string // method+path -> body
	failPost bool
}

func newZoneServer(t *testing.T) (*zoneServer, *rest.Session) {
	t.Helper()
	zs := &zoneServer{mux: http.NewServeMux(), bodies: make(map[string]string)}
	zs.mux.HandleFunc("/rest/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Custom_Basic key")
	})
	record := func(w http.ResponseWriter, r *http.Request) bool {
		key := r.Method + " " + r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		zs.requests = append(zs.requests, key)
		zs.bodies[key] = string(raw)
		return true
	}
	zs.mux.HandleFunc("/rest/running/brocade-zone/effective-configuration", func(w http.ResponseWriter, r *http.Request) {
		record(w, r)
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"effective-configuration":{"checksum":"abc123","cfg-name":"PROD_CFG"}}`))
		}
	})
	zs.mux.HandleFunc("/rest/running/brocade-zone/defined-configuration/", func(w http.ResponseWriter, r *http.Request) {
		record(w, r)
		if zs.failPost && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":{"error":[{"error-message":"Invalid zone member"}]}}`))
		}
	})

	srv := httptest.NewServer(zs.mux)
	t.Cleanup(srv.Close)

	cfg := rest.DefaultConfig()
	cfg.Security = rest.SecurityNone
	session := rest.NewSession(cfg)
	host := strings.TrimPrefix(srv.URL, "http://")
	require.NoError(t, session.Login(context.Background(), host, "admin", "pw"))
	return zs, session
}

func TestApplyTransaction(t *testing.T) {
	zs, session := newZoneServer(t)
	applier := NewApplier(session, 128)

	ops, err := ParseFile(strings.NewReader(`
alicreate "ali1", "10:00:00:00:00:00:00:01"
cfgsave
`))
	require.NoError(t, err)

	results, err := applier.Apply(context.Background(), ops)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Changed)
		assert.False(t, res.Fail)
		assert.True(t, res.IO)
	}

	// 别名创建带成员载荷
	body := zs.bodies["POST /rest/running/brocade-zone/defined-configuration/alias"]
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	alias := payload["alias"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "ali1", alias["alias-name"])

	// cfgsave 携带事务校验和
	save := zs.bodies["PATCH /rest/running/brocade-zone/effective-configuration"]
	require.NoError(t, json.Unmarshal([]byte(save), &payload))
	eff := payload["effective-configuration"].(map[string]interface{})
	assert.Equal(t, "abc123", eff["checksum"])
	assert.Equal(t, float64(cfgActionSave), eff["cfg-action"])
}

func TestApplyAbortsOnFailure(t *testing.T) {
	zs, session := newZoneServer(t)
	zs.failPost = true
	applier := NewApplier(session, 128)

	ops, err := ParseFile(strings.NewReader(`
zonecreate "z1", "ali1; ali2"
cfgsave
`))
	require.NoError(t, err)

	results, err := applier.Apply(context.Background(), ops)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")

	// 失败即停，cfgsave 不再执行
	require.Len(t, results, 1)
	assert.True(t, results[0].Fail)
	assert.Equal(t, rest.StatusBadRequest, results[0].Status)

	// 中止请求携带 cfg-action=4
	abort := zs.bodies["PATCH /rest/running/brocade-zone/effective-configuration"]
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(abort), &payload))
	eff := payload["effective-configuration"].(map[string]interface{})
	assert.Equal(t, float64(cfgActionAbort), eff["cfg-action"])
}

func TestApplyTestMode(t *testing.T) {
	zs, session := newZoneServer(t)
	applier := NewApplier(session, 128)
	applier.Test = true

	ops, err := ParseFile(strings.NewReader(`alicreate "ali1", "m1"`))
	require.NoError(t, err)
	results, err := applier.Apply(context.Background(), ops)
	require.NoError(t, err)
	assert.True(t, results[0].Changed)
	assert.False(t, results[0].IO)

	// 校验模式只读 checksum，不下发修改
	for _, req := range zs.requests {
		assert.NotContains(t, req, "POST")
	}
}

func TestEnableCfg(t *testing.T) {
	zs, session := newZoneServer(t)
	applier := NewApplier(session, 128)
	require.NoError(t, applier.EnableCfg(context.Background(), "PROD_CFG"))

	body := zs.bodies["PATCH /rest/running/brocade-zone/effective-configuration"]
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	eff := payload["effective-configuration"].(map[string]interface{})
	assert.Equal(t, "PROD_CFG", eff["cfg-name"])
	assert.Equal(t, "abc123", eff["checksum"])
}
