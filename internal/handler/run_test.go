package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/peerspark/backend/config"
	"github.com/peerspark/backend/internal/eventbus"
	"github.com/peerspark/backend/internal/model"
	"github.com/peerspark/backend/internal/repository"
	"github.com/peerspark/backend/internal/service"
	"github.com/peerspark/backend/internal/service/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const outlineThreeUnits = `[
  {"title": "图的基本概念", "summary": "顶点与边", "objectives": ["理解图的定义"]},
  {"title": "图的遍历", "summary": "BFS 与 DFS"},
  {"title": "最短路径", "summary": "Dijkstra"}
]`

const detailOK = `{"content": "# 正文", "key_points": ["要点"]}`

type scriptedClient struct {
	mu      sync.Mutex
	replies []struct {
		content string
		err     error
	}
}

func (c *scriptedClient) push(content string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, struct {
		content string
		err     error
	}{content, err})
}

func (c *scriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.content, r.err
}

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceReference string) (string, error) {
	return "", nil
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []*orchestrator.Job
}

func (f *fakeScheduler) EnqueueJob(job *orchestrator.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

type testEnv struct {
	router *gin.Engine
	svc    *service.RunService
	client *scriptedClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.CourseRun{}, &model.CourseUnit{}))

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "release"},
		Generation: config.GenerationConfig{
			OutlineTimeout: time.Second,
			DetailTimeout:  2 * time.Second,
		},
	}

	client := &scriptedClient{}
	svc := service.NewRunService(
		cfg,
		repository.NewRunRepository(db),
		repository.NewUnitRepository(db),
		client,
		&fakeFetcher{},
		eventbus.NewRunEventBus(),
	)
	svc.SetScheduler(&fakeScheduler{})

	r := gin.New()
	api := r.Group("/api")
	runHandler := NewRunHandler(svc)
	runs := api.Group("/runs")
	runs.POST("", runHandler.Create)
	runs.GET("", runHandler.List)
	runs.GET("/:id", runHandler.Get)
	runs.POST("/:id/units/:index/retry", runHandler.RetryUnit)
	api.GET("/config", NewConfigHandler(cfg).Get)

	return &testEnv{router: r, svc: svc, client: client}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateRunMissingTitle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"source_reference": "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRunSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.client.push(outlineThreeUnits, nil)

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"title": "图论入门"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "generating", resp.Status)
	require.Len(t, resp.Units, 3)
	assert.False(t, resp.Units[0].Locked)
	assert.True(t, resp.Units[1].Locked)
	assert.Equal(t, []string{"理解图的定义"}, resp.Units[0].Objectives)
}

func TestCreateRunOutlineFailureReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.client.push("", errors.New("rate limit exceeded"))

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"title": "图论入门"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])
	assert.Equal(t, "error", resp["status"])

	// 失败运行仍可查询，快照为零单元 error 态
	w = env.do(t, http.MethodGet, "/api/runs/"+resp["run_id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "error", run.Status)
	assert.Empty(t, run.Units)
}

func TestGetRunNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRunSnapshotAfterGeneration(t *testing.T) {
	env := newTestEnv(t)
	env.client.push(outlineThreeUnits, nil)
	env.client.push(detailOK, nil)
	env.client.push("", errors.New("model overloaded"))
	env.client.push(detailOK, nil)

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"title": "图论入门"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	require.NoError(t, env.svc.GenerateUnits(context.Background(), created.RunID))

	w = env.do(t, http.MethodGet, "/api/runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 67, resp.Progress)
	assert.Equal(t, 1, resp.FailedUnits)
	require.Len(t, resp.Units, 3)

	assert.True(t, resp.Units[0].Generated)
	assert.NotEmpty(t, resp.Units[0].Detail)
	assert.False(t, resp.Units[1].Generated)
	assert.NotEmpty(t, resp.Units[1].ErrorMsg)
	assert.Empty(t, resp.Units[1].Detail)
	assert.True(t, resp.Units[2].Generated)
}

func TestListRuns(t *testing.T) {
	env := newTestEnv(t)
	env.client.push(outlineThreeUnits, nil)

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"title": "图论入门"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []RunListItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "图论入门", items[0].Title)
}

func TestRetryUnitValidation(t *testing.T) {
	env := newTestEnv(t)
	env.client.push(outlineThreeUnits, nil)
	env.client.push(detailOK, nil)
	env.client.push("", errors.New("model overloaded"))
	env.client.push(detailOK, nil)

	w := env.do(t, http.MethodPost, "/api/runs", map[string]string{"title": "图论入门"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// 运行仍在生成态，重试被拒
	w = env.do(t, http.MethodPost, "/api/runs/"+created.RunID+"/units/1/retry", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.NoError(t, env.svc.GenerateUnits(context.Background(), created.RunID))

	// 完成后失败单元可重试
	w = env.do(t, http.MethodPost, "/api/runs/"+created.RunID+"/units/1/retry", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	// 已生成单元不可重试
	w = env.do(t, http.MethodPost, "/api/runs/"+created.RunID+"/units/0/retry", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 越界索引
	w = env.do(t, http.MethodPost, "/api/runs/"+created.RunID+"/units/9/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 非法索引
	w = env.do(t, http.MethodPost, "/api/runs/"+created.RunID+"/units/abc/retry", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigEndpointHidesAPIKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	llm, ok := resp["llm"].(map[string]any)
	require.True(t, ok)
	_, exposed := llm["api_key"]
	assert.False(t, exposed)
}
