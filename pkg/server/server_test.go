package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/server"
	"github.com/m-mizutani/sribot/pkg/usecase/chat"
)

type mockChatter struct {
	input  chat.ChatInput
	result *model.ChatResult
}

func (m *mockChatter) Chat(ctx context.Context, input chat.ChatInput) *model.ChatResult {
	m.input = input
	return m.result
}

type mockMemories struct {
	memories []*model.Memory
}

func (m *mockMemories) ListAll(ctx context.Context, ns model.Namespace) ([]*model.Memory, error) {
	if ns.UserID != "widya" {
		return nil, nil
	}
	return m.memories, nil
}

type testEnv struct {
	handler   http.Handler
	chatter   *mockChatter
	catalog   *catalog.SQLite
	uploadDir string
	metrics   *server.Metrics
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := catalog.NewSQLite(":memory:")
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seed, err := catalog.LoadSeed("../catalog/testdata/seed.yaml")
	gt.NoError(t, err)
	gt.NoError(t, db.Seed(context.Background(), seed.UMKM, seed.Products))

	root := t.TempDir()
	storage, err := adapter.NewFileStorage(root)
	gt.NoError(t, err)

	chatter := &mockChatter{result: &model.ChatResult{Reply: "Halo! -SriBot", Images: []string{}}}
	metrics := server.NewMetrics()
	srv := server.New(chatter, db, storage,
		server.WithBaseURL("https://sribot.example.com"),
		server.WithMetrics(metrics),
		server.WithMemories(&mockMemories{memories: []*model.Memory{
			{ID: "m-1", Text: "Nama: Widya", CreatedAt: time.Date(2024, 8, 17, 10, 0, 0, 0, time.UTC)},
		}}),
		server.WithClock(func() time.Time { return time.Unix(1723860000, 0) }),
	)

	return &testEnv{
		handler:   srv.Handler(),
		chatter:   chatter,
		catalog:   db,
		uploadDir: filepath.Join(root, "uploads"),
		metrics:   metrics,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func encodeImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 30, B: 30, A: 255})

	var buf bytes.Buffer
	switch format {
	case "png":
		gt.NoError(t, png.Encode(&buf, img))
	case "jpeg":
		gt.NoError(t, jpeg.Encode(&buf, img, nil))
	case "gif":
		gt.NoError(t, gif.Encode(&buf, img, nil))
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, id, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if id != "" {
		gt.NoError(t, mw.WriteField("id", id))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		gt.NoError(t, err)
		_, err = fw.Write(data)
		gt.NoError(t, err)
	}
	gt.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	gt.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHealth(t *testing.T) {
	env := setup(t)
	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, body["status"], any("ok"))
}

func TestChat(t *testing.T) {
	env := setup(t)

	t.Run("valid request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"Hai","user_id":"widya"}`))
		w, body := env.do(t, req)
		gt.Equal(t, w.Code, http.StatusOK)
		gt.Equal(t, body["reply"], any("Halo! -SriBot"))
		gt.Equal(t, env.chatter.input.UserID, "widya")
		gt.Equal(t, env.chatter.input.Message, "Hai")
		gt.Equal(t, env.chatter.input.ThreadID, "")
	})

	t.Run("missing user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"Hai"}`))
		w, _ := env.do(t, req)
		gt.Equal(t, w.Code, http.StatusBadRequest)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":`))
		w, _ := env.do(t, req)
		gt.Equal(t, w.Code, http.StatusBadRequest)
	})
}

func TestUploadRejectsOversizedFileBeforeWriting(t *testing.T) {
	env := setup(t)

	data := append(encodeImage(t, "png"), make([]byte, 6*1024*1024)...)
	w, body := env.do(t, uploadRequest(t, "/upload-umkm", "1", "big.png", data))

	gt.Equal(t, w.Code, http.StatusBadRequest)
	gt.S(t, body["error"].(string)).Contains("terlalu besar")
	gt.A(t, uploadedFiles(t, env.uploadDir)).Length(0)

	u, err := env.catalog.GetUMKM(context.Background(), 1)
	gt.NoError(t, err)
	gt.Equal(t, u.Image, "umkm_1.jpg")
}

func TestUploadValidation(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		id       string
		filename string
		data     func(t *testing.T) []byte
		status   int
		contains string
	}{
		{
			name:     "gif with png extension",
			path:     "/upload-umkm",
			id:       "1",
			filename: "fake.png",
			data:     func(t *testing.T) []byte { return encodeImage(t, "gif") },
			status:   http.StatusBadRequest,
			contains: "Format file tidak didukung",
		},
		{
			name:     "gif with gif extension",
			path:     "/upload-product",
			id:       "10",
			filename: "anim.gif",
			data:     func(t *testing.T) []byte { return encodeImage(t, "gif") },
			status:   http.StatusBadRequest,
			contains: "Format file tidak didukung",
		},
		{
			name:     "png with jpg extension",
			path:     "/upload-umkm",
			id:       "1",
			filename: "photo.jpg",
			data:     func(t *testing.T) []byte { return encodeImage(t, "png") },
			status:   http.StatusBadRequest,
			contains: "Ekstensi file",
		},
		{
			name:     "empty file",
			path:     "/upload-umkm",
			id:       "1",
			filename: "empty.png",
			data:     func(t *testing.T) []byte { return nil },
			status:   http.StatusBadRequest,
			contains: "File kosong",
		},
		{
			name:     "truncated png",
			path:     "/upload-umkm",
			id:       "1",
			filename: "broken.png",
			data:     func(t *testing.T) []byte { return encodeImage(t, "png")[:20] },
			status:   http.StatusBadRequest,
			contains: "bukan gambar",
		},
		{
			name:   "missing file",
			path:   "/upload-umkm",
			id:     "1",
			data:   func(t *testing.T) []byte { return nil },
			status: http.StatusBadRequest,
		},
		{
			name:     "invalid id",
			path:     "/upload-umkm",
			id:       "abc",
			filename: "ok.png",
			data:     func(t *testing.T) []byte { return encodeImage(t, "png") },
			status:   http.StatusBadRequest,
		},
		{
			name:     "unknown umkm",
			path:     "/upload-umkm",
			id:       "99",
			filename: "ok.png",
			data:     func(t *testing.T) []byte { return encodeImage(t, "png") },
			status:   http.StatusNotFound,
			contains: "UMKM dengan ID 99 tidak ditemukan",
		},
		{
			name:     "unknown product",
			path:     "/upload-product",
			id:       "99",
			filename: "ok.jpg",
			data:     func(t *testing.T) []byte { return encodeImage(t, "jpeg") },
			status:   http.StatusNotFound,
			contains: "Produk dengan ID 99",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setup(t)
			w, body := env.do(t, uploadRequest(t, tc.path, tc.id, tc.filename, tc.data(t)))
			gt.Equal(t, w.Code, tc.status)
			if tc.contains != "" {
				gt.S(t, body["error"].(string)).Contains(tc.contains)
			}
			gt.A(t, uploadedFiles(t, env.uploadDir)).Length(0)
		})
	}
}

func TestUploadStoresImageAndUpdatesCatalog(t *testing.T) {
	env := setup(t)
	data := encodeImage(t, "jpeg")

	w, body := env.do(t, uploadRequest(t, "/upload-product", "10", "Songket.JPEG", data))
	gt.Equal(t, w.Code, http.StatusOK)

	filename := body["filename"].(string)
	gt.S(t, filename).Contains("product_10_1723860000_")
	gt.True(t, strings.HasSuffix(filename, ".jpeg"))
	gt.Equal(t, len(filename), len("product_10_1723860000_")+8+len(".jpeg"))
	gt.Equal(t, body["url"], any("https://sribot.example.com/uploads/"+filename))
	gt.S(t, body["message"].(string)).Contains("Songket Lepus Emas")

	gt.Equal(t, uploadedFiles(t, env.uploadDir), []string{filename})

	p, err := env.catalog.GetProduct(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, p.Image, filename)

	// the stored file is served back with its sniffed type
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/"+filename, nil))
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, w.Header().Get("Content-Type"), "image/jpeg")
	gt.Equal(t, w.Body.Bytes(), data)
}

func TestUploadAcceptsLegacyFieldName(t *testing.T) {
	env := setup(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	gt.NoError(t, mw.WriteField("umkm_id", "2"))
	fw, err := mw.CreateFormFile("file", "logo.png")
	gt.NoError(t, err)
	_, err = fw.Write(encodeImage(t, "png"))
	gt.NoError(t, err)
	gt.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-umkm", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, resp := env.do(t, req)
	gt.Equal(t, w.Code, http.StatusOK)
	gt.S(t, resp["filename"].(string)).Contains("umkm_2_")
}

func TestGetCatalogEntities(t *testing.T) {
	env := setup(t)

	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/umkm/1", nil))
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, body["umkm_name"], any("Songket Cek Ipah"))
	gt.Equal(t, body["umkm_image"], any("https://sribot.example.com/uploads/umkm_1.jpg"))

	w, body = env.do(t, httptest.NewRequest(http.MethodGet, "/product/10", nil))
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, body["product_image"], any("https://sribot.example.com/uploads/product_10.png"))

	w, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/umkm/99", nil))
	gt.Equal(t, w.Code, http.StatusNotFound)

	w, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/product/abc", nil))
	gt.Equal(t, w.Code, http.StatusBadRequest)

	w, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	gt.Equal(t, w.Code, http.StatusNotFound)
}

func TestMemoryDebugEndpoint(t *testing.T) {
	env := setup(t)

	w, body := env.do(t, httptest.NewRequest(http.MethodGet, "/memory/widya", nil))
	gt.Equal(t, w.Code, http.StatusOK)
	gt.Equal(t, body["user_id"], any("widya"))
	gt.Equal(t, body["count"], any(float64(1)))

	memories := body["memories"].([]any)
	gt.A(t, memories).Length(1)
	entry := memories[0].(map[string]any)
	gt.Equal(t, entry["text"], any("Nama: Widya"))
	gt.Equal(t, entry["created_at"], any("2024-08-17T10:00:00Z"))

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/memory/someone", nil))
	gt.Equal(t, body["count"], any(float64(0)))
}

func TestMetricsEndpoint(t *testing.T) {
	env := setup(t)
	env.do(t, httptest.NewRequest(http.MethodGet, "/umkm/1", nil))
	env.metrics.ToolCalls().WithLabelValues("get_user_context", "ok").Inc()

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	gt.Equal(t, w.Code, http.StatusOK)

	out, err := io.ReadAll(w.Body)
	gt.NoError(t, err)
	gt.S(t, string(out)).Contains(`sribot_http_requests_total{method="GET",route="/umkm/{id}",status="200"} 1`)
	gt.S(t, string(out)).Contains(`sribot_tool_calls_total{result="ok",tool="get_user_context"} 1`)
	gt.S(t, string(out)).Contains("sribot_http_request_duration_seconds")
}

func TestCORS(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://frontend.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	gt.Equal(t, w.Header().Get("Access-Control-Allow-Origin"), "*")
}
