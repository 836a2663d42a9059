package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videovault/internal/analyzer/ffprobe"
	"videovault/internal/config"
	"videovault/internal/database"
	"videovault/internal/pipeline"
)

type missingProber struct{}

func (missingProber) Probe(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{}, ffprobe.ErrUnavailable
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testApp struct {
	app    *App
	server *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		AppEnv:          "test",
		HTTPAddr:        "127.0.0.1:0",
		DatabaseURL:     ":memory:",
		JWTSecret:       "app-test-secret",
		JWTTTL:          time.Hour,
		StorageDir:      "/uploads",
		MaxUploadBytes:  32 << 20,
		FFProbeBinary:   "ffprobe-does-not-exist",
		StageDelay:      0,
		RunTimeout:      5 * time.Second,
		BroadcastBuffer: 64,
		ShutdownTimeout: 5 * time.Second,
	}

	log := zap.NewNop()
	db, err := database.Connect(cfg.DatabaseURL, log)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	a, err := New(cfg, db, log,
		WithFs(afero.NewMemMapFs()),
		WithProber(missingProber{}),
		WithClassifier(func(string, int) int { return 5 }),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return &testApp{app: a, server: srv}
}

func (ta *testApp) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := ta.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (ta *testApp) register(t *testing.T, username string) (string, int64) {
	t.Helper()
	payload := `{"username":"` + username + `","email":"` + username + `@example.com","password":"secret123"}`
	req, err := http.NewRequest(http.MethodPost, ta.server.URL+"/api/auth/register", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token, data.User.ID
}

func (ta *testApp) upload(t *testing.T, token string, content []byte) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Holiday"))
	part, err := mw.CreateFormFile("video", "holiday.mp4")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ta.server.URL+"/api/videos/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "processing", data["processingState"])
	assert.EqualValues(t, 0, data["processingProgress"])
	return data["id"].(string)
}

func (ta *testApp) record(t *testing.T, token, id string) map[string]any {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/api/videos/"+id, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func mp4(size int) []byte {
	out := make([]byte, size)
	copy(out, []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'})
	for i := 24; i < size; i++ {
		out[i] = byte(i % 251)
	}
	return out
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t)

	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/api/health", nil)
	require.NoError(t, err)
	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ok", data["status"])
	assert.Contains(t, data, "timestamp")
	assert.Contains(t, data, "uptime")
}

func TestMetricsEndpoint(t *testing.T) {
	ta := newTestApp(t)

	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/metrics", nil)
	require.NoError(t, err)
	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestUploadProcessAndStream(t *testing.T) {
	ta := newTestApp(t)
	token, userID := ta.register(t, "alice")

	wsURL := "ws" + strings.TrimPrefix(ta.server.URL, "http") + "/ws/progress?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "userId": userID}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ack map[string]any
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "joined", ack["type"])

	content := mp4(5000)
	id := ta.upload(t, token, content)

	var progress []float64
	var terminal map[string]any
	for terminal == nil {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		require.Equal(t, id, ev["recordId"])
		switch ev["type"] {
		case "progress":
			progress = append(progress, ev["progress"].(float64))
		case "completed", "failed":
			terminal = ev
		}
	}
	assert.Equal(t, []float64{20, 40, 60, 80}, progress)
	assert.Equal(t, "completed", terminal["type"])
	assert.Equal(t, "safe", terminal["sensitivityState"])
	assert.EqualValues(t, 100, terminal["progress"])

	rec := ta.record(t, token, id)
	assert.Equal(t, "completed", rec["processingState"])
	assert.EqualValues(t, 100, rec["processingProgress"])
	assert.Equal(t, "unknown", rec["resolution"])

	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/api/videos/"+id+"/stream?token="+token, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=0-999")
	resp, body := ta.do(t, req)
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-999/5000", resp.Header.Get("Content-Range"))
	assert.Equal(t, content[:1000], body)
}

func TestRecordsAreOwnerScoped(t *testing.T) {
	ta := newTestApp(t)
	aliceToken, _ := ta.register(t, "alice")
	bobToken, _ := ta.register(t, "bob")

	id := ta.upload(t, aliceToken, mp4(256))
	require.Eventually(t, func() bool {
		return ta.record(t, aliceToken, id)["processingState"] == "completed"
	}, 3*time.Second, 20*time.Millisecond)

	for _, path := range []string{"/api/videos/" + id, "/api/videos/" + id + "/stream"} {
		req, err := http.NewRequest(http.MethodGet, ta.server.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+bobToken)
		resp, body := ta.do(t, req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))
	}

	req, err := http.NewRequest(http.MethodGet, ta.server.URL+"/api/videos/does-not-exist", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bobToken)
	resp, _ := ta.do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShutdownRejectsNewProcessing(t *testing.T) {
	ta := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ta.app.Shutdown(ctx))

	_, err := ta.app.runner.Submit(pipeline.Job{RecordID: "late", OwnerID: 1, FilePath: "late.mp4"})
	assert.True(t, errors.Is(err, pipeline.ErrRunnerClosed))
}

func TestEditorUploadsTenMegabytes(t *testing.T) {
	ta := newTestApp(t)
	token, _ := ta.register(t, "carol")

	content := mp4(10 << 20)
	id := ta.upload(t, token, content)

	var rec map[string]any
	require.Eventually(t, func() bool {
		rec = ta.record(t, token, id)
		return rec["processingState"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	assert.EqualValues(t, 100, rec["processingProgress"])
	assert.Contains(t, []any{"safe", "flagged"}, rec["sensitivityState"])
	assert.EqualValues(t, len(content), rec["fileSize"])
	assert.NotNil(t, rec["processedAt"])
}
