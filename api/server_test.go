package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/bmrs/internal/bmrs"
	"github.com/seenimoa/bmrs/internal/config"
	"github.com/seenimoa/bmrs/internal/planner"
)

// ── Test Helpers ──

// upstream serves a two-period B1770-style CSV for every settlement date,
// and a 500 for 2021-01-02.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("SettlementDate")
		if date == "2021-01-02" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "*\n*\n*\n*\n*Settlement Date,Settlement Period,Price\n%s,1,10\n%s,2,11\n<EOF>\n", date, date)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return newTestServer(t, zerolog.New(zerolog.NewTestWriter(t)))
}

// newTestServer builds a server against a fake upstream. Streaming tests
// pass a silent logger: hijacked connections can outlive the test.
func newTestServer(t *testing.T, log zerolog.Logger) *Server {
	t.Helper()
	up := upstream(t)

	p, err := planner.New(nil, nil)
	require.NoError(t, err)
	client := bmrs.New("secret-key-123456",
		bmrs.WithHTTPClient(up.Client()),
		bmrs.WithBaseURL(up.URL),
	)
	cfg := &config.Config{
		BMRS: config.BMRSConfig{APIKey: "secret-key-123456"},
	}
	return NewServer(cfg, bmrs.NewDownloader(p, client, log), log, "test")
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp), "failed to decode response")
	return resp
}

// ── Health ──

func TestHealth(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)

		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "test", data["version"])
		assert.NotZero(t, data["settlement_period"])
	}
}

// ── Reports ──

func TestListReports(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Len(t, resp.Data, 36)

	rec = get(t, srv, "/api/v1/reports?style=year_week")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeResponse(t, rec)
	list := resp.Data.([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "B0630", list[0].(map[string]interface{})["name"])
	assert.Equal(t, "year_week", list[0].(map[string]interface{})["style"])

	rec = get(t, srv, "/api/v1/reports?style=hourly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/b0640")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "B0640", data["name"])
	assert.Equal(t, "year_month", data["style"])

	rec = get(t, srv, "/api/v1/reports/B9999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeResponse(t, rec).Success)
}

func TestPlan(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/B0640/plan?start=2021-01-15&end=2021-03-02")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data PlanResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data.Windows, 3)
	assert.Equal(t, "2021-01", body.Data.Windows[0].From)
	assert.Equal(t, "Mar", body.Data.Windows[2].Params["Month"])
	assert.NotContains(t, body.Data.Windows[0].Params, "APIKey")
}

func TestPlanInvalidRange(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/B1630/plan?start=2021-02-01&end=2021-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec).Error, "end precedes start")

	rec = get(t, srv, "/api/v1/reports/B1630/plan?start=yesterday&end=2021-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDataCSV(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/B1770/data?start=2021-01-03&end=2021-01-04")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "SettlementDate,SettlementPeriod,Price,datetime", lines[0])
	assert.Equal(t, "2021-01-03,1,10,2021-01-03T00:00:00Z", lines[1])
}

func TestDataJSON(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/B1770/data?start=2021-01-03&end=2021-01-03&format=json")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data DataResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "B1770", body.Data.Report)
	assert.Equal(t, 1, body.Data.Windows)
	require.Len(t, body.Data.Rows, 2)
	assert.Equal(t, "11", body.Data.Rows[1]["Price"])
}

func TestDataUpstreamFailure(t *testing.T) {
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/reports/B1770/data?start=2021-01-01&end=2021-01-03")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "B1770[2021-01-02..2021-01-02]")
	assert.NotContains(t, resp.Error, "secret-key-123456")
}

// ── Config ──

func TestConfigEndpoints(t *testing.T) {
	t.Setenv("BMRS_API_KEY", "")
	srv := testServer(t)

	rec := get(t, srv, "/api/v1/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-key-123456")

	rec = get(t, srv, "/api/v1/config/keys")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []config.KeyStatus `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotEmpty(t, body.Data)
	assert.True(t, body.Data[0].IsSet)
	assert.Equal(t, "sec...456", body.Data[0].Masked)
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reports", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// ── WebSocket ──

type wsReply struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsReply
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketDownloadStream(t *testing.T) {
	hs := httptest.NewServer(newTestServer(t, zerolog.Nop()).Router())
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSRequest{Type: "ping", ID: "p1"}))
	msg := readReply(t, conn)
	assert.Equal(t, "pong", msg.Type)
	assert.Equal(t, "p1", msg.ID)

	require.NoError(t, conn.WriteJSON(WSRequest{Type: "download", ID: "d1", Report: "B1770", Start: "2021-01-03", End: "2021-01-05"}))
	for i := 0; i < 3; i++ {
		msg = readReply(t, conn)
		require.Equal(t, "window", msg.Type, msg.Error)
		var ev WindowEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, i, ev.Index)
		assert.Equal(t, 3, ev.Total)
		assert.Equal(t, 2, ev.Rows)
	}
	msg = readReply(t, conn)
	require.Equal(t, "done", msg.Type)
	var done DoneEvent
	require.NoError(t, json.Unmarshal(msg.Data, &done))
	assert.Equal(t, "B1770", done.Report)
	assert.Equal(t, 3, done.Windows)
	assert.Equal(t, 6, done.Rows)
	assert.NotEmpty(t, done.RunID)
}

func TestWebSocketDownloadFailure(t *testing.T) {
	hs := httptest.NewServer(newTestServer(t, zerolog.Nop()).Router())
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSRequest{Type: "download", ID: "d2", Report: "B1770", Start: "2021-01-01", End: "2021-01-02"}))
	msg := readReply(t, conn)
	assert.Equal(t, "window", msg.Type)

	msg = readReply(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "d2", msg.ID)
	assert.Contains(t, msg.Error, "B1770[2021-01-02..2021-01-02]")
	assert.NotContains(t, msg.Error, "secret-key-123456")

	require.NoError(t, conn.WriteJSON(WSRequest{Type: "subscribe"}))
	msg = readReply(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "unknown message type")
}
