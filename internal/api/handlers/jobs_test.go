package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkup/printq/internal/api/handlers"
	"github.com/walkup/printq/internal/archive"
	"github.com/walkup/printq/internal/core"
	"github.com/walkup/printq/internal/db"
	"github.com/walkup/printq/internal/storage"
)

type testEnv struct {
	router *gin.Engine
	store  *storage.ArtifactStore
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, db.Init(db.Config{Path: filepath.Join(t.TempDir(), "test.db")}))
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewArtifactStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	require.NoError(t, db.Shops.Insert(context.Background(), &core.Shop{
		ID:                 "shop1",
		Name:               "Copy Corner",
		BWCostPerPage:      2,
		ColorCostPerPage:   10,
		IsAcceptingUploads: true,
	}))

	manager := core.NewManager(db.Jobs, db.Shops, store, nil, nil)
	builder := archive.NewBuilder(db.Jobs, store)

	router := gin.New()
	api := router.Group("/api")
	passAuth := func(c *gin.Context) { c.Next() }
	handlers.NewJobHandler(manager, builder).RegisterRoutes(api, passAuth)
	handlers.NewShopHandler(manager).RegisterRoutes(api, passAuth)
	router.GET("/health", handlers.HealthHandler)

	return &testEnv{router: router, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	full, err := e.store.Resolve(path)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func (e *testEnv) createJob(t *testing.T, token string, files ...string) core.PrintJob {
	t.Helper()
	reqFiles := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		e.writeArtifact(t, f, "content of "+f)
		reqFiles = append(reqFiles, map[string]interface{}{
			"file_name": filepath.Base(f),
			"file_path": f,
			"file_size": int64(len("content of " + f)),
		})
	}
	w := e.do(t, "POST", "/api/jobs", map[string]interface{}{
		"shop_id":      "shop1",
		"token_number": token,
		"print_type":   "bw",
		"print_side":   "single",
		"copies":       1,
		"files":        reqFiles,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job core.PrintJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	return job
}

func TestCreateJobEndpoint(t *testing.T) {
	env := setupEnv(t)

	job := env.createJob(t, "", "shop1/essay.pdf")
	assert.Len(t, job.TokenNumber, 6)
	assert.Equal(t, core.JobStatusPending, job.Status)
}

func TestCreateJobInvalidPrintType(t *testing.T) {
	env := setupEnv(t)
	env.writeArtifact(t, "shop1/a.pdf", "x")

	w := env.do(t, "POST", "/api/jobs", map[string]interface{}{
		"shop_id":    "shop1",
		"print_type": "sepia",
		"print_side": "single",
		"files":      []map[string]interface{}{{"file_name": "a.pdf", "file_path": "shop1/a.pdf"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateJobUnknownShop(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, "POST", "/api/jobs", map[string]interface{}{
		"shop_id":    "ghost",
		"print_type": "bw",
		"print_side": "single",
		"files":      []map[string]interface{}{{"file_name": "a.pdf", "file_path": "shop1/a.pdf"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobShopClosed(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, "PUT", "/api/shops/shop1/toggle-uploads", map[string]interface{}{"is_accepting_uploads": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "POST", "/api/jobs", map[string]interface{}{
		"shop_id":    "shop1",
		"print_type": "bw",
		"print_side": "single",
		"files":      []map[string]interface{}{{"file_name": "a.pdf", "file_path": "shop1/a.pdf"}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetJobStatusEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "TK1234", "shop1/a.pdf", "shop1/b.pdf")

	w := env.do(t, "GET", "/api/jobs/status/TK1234", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status core.TokenStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, core.JobStatusPending, status.Status)
	assert.Len(t, status.FileNames, 2)

	w = env.do(t, "GET", "/api/jobs/status/NOPE00", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJobStatusAfterDelete(t *testing.T) {
	env := setupEnv(t)
	job := env.createJob(t, "DL0001", "shop1/a.pdf")

	w := env.do(t, "DELETE", "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Deletion scrubs the artifact but keeps the record; the status
	// endpoint still answers for the token.
	w = env.do(t, "GET", "/api/jobs/status/DL0001", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status core.TokenStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, core.JobStatusDeleted, status.Status)
	assert.Len(t, status.FileNames, 1)
}

func TestUpdateJobStatusEndpoint(t *testing.T) {
	env := setupEnv(t)
	job := env.createJob(t, "TK1234", "shop1/a.pdf")

	w := env.do(t, "PUT", "/api/jobs/"+job.ID+"/status", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated core.PrintJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, core.JobStatusCompleted, updated.Status)
	assert.False(t, env.store.Exists("shop1/a.pdf"))

	// Completed to deleted is a conflict, not a silent overwrite.
	w = env.do(t, "PUT", "/api/jobs/"+job.ID+"/status", map[string]string{"status": "deleted"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteJobEndpoint(t *testing.T) {
	env := setupEnv(t)
	job := env.createJob(t, "TK1234", "shop1/a.pdf")

	w := env.do(t, "DELETE", "/api/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, env.store.Exists("shop1/a.pdf"))

	w = env.do(t, "DELETE", "/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchStatusEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "BT0001", "shop1/a.pdf")
	env.createJob(t, "BT0001", "shop1/b.pdf")

	w := env.do(t, "PUT", "/api/batches/BT0001/status", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	var result handlers.BatchResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Count)
	assert.False(t, env.store.Exists("shop1/a.pdf"))
	assert.False(t, env.store.Exists("shop1/b.pdf"))

	w = env.do(t, "PUT", "/api/batches/NOPE00/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "PUT", "/api/batches/BT0001/status", map[string]string{"status": "expired"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteBatchEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "BT0002", "shop1/a.pdf")
	env.createJob(t, "BT0002", "shop1/b.pdf")

	w := env.do(t, "DELETE", "/api/batches/BT0002", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result handlers.BatchResultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Count)
}

func TestDownloadBatchZip(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "T7K2M9", "shop1/essay.pdf", "shop1/slides.pdf")

	w := env.do(t, "GET", "/api/batches/T7K2M9/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "printjob-T7K2M9.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}

func TestDownloadBatchSingleFile(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "SG0001", "shop1/only.pdf")

	w := env.do(t, "GET", "/api/batches/SG0001/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "only.pdf")
	assert.Equal(t, "content of shop1/only.pdf", w.Body.String())
}

func TestDownloadBatchSingleFileContentLengthFromDisk(t *testing.T) {
	env := setupEnv(t)
	body := "the file on disk is longer than recorded"
	env.writeArtifact(t, "shop1/grown.pdf", body)

	// Record a size that no longer matches the artifact. The response must
	// advertise what it actually streams.
	w := env.do(t, "POST", "/api/jobs", map[string]interface{}{
		"shop_id":      "shop1",
		"token_number": "SZ0002",
		"print_type":   "bw",
		"print_side":   "single",
		"copies":       1,
		"files": []map[string]interface{}{{
			"file_name": "grown.pdf",
			"file_path": "shop1/grown.pdf",
			"file_size": 5,
		}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, "GET", "/api/batches/SZ0002/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprintf("%d", len(body)), w.Header().Get("Content-Length"))
	assert.Equal(t, body, w.Body.String())
}

func TestDownloadBatchAfterDelete(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "GONE01", "shop1/a.pdf")

	w := env.do(t, "DELETE", "/api/batches/GONE01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/batches/GONE01/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTodayEndpoint(t *testing.T) {
	env := setupEnv(t)
	job := env.createJob(t, "TD0001", "shop1/a.pdf")
	deleted := env.createJob(t, "TD0002", "shop1/b.pdf")

	w := env.do(t, "DELETE", "/api/jobs/"+deleted.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/jobs/shop/shop1/today", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Jobs  []core.PrintJob `json:"jobs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, job.ID, resp.Jobs[0].ID)
}

func TestGetShopEndpoint(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, "GET", "/api/shops/shop1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var shop core.Shop
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shop))
	assert.Equal(t, "Copy Corner", shop.Name)
	assert.Equal(t, float64(10), shop.ColorCostPerPage)

	w = env.do(t, "GET", "/api/shops/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestBatchDeleteIsIdempotentOverHTTP(t *testing.T) {
	env := setupEnv(t)
	env.createJob(t, "RE0001", "shop1/a.pdf")

	for i := 0; i < 2; i++ {
		w := env.do(t, "DELETE", "/api/batches/RE0001", nil)
		require.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("pass %d", i))

		var result handlers.BatchResultResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Count)
	}
}
