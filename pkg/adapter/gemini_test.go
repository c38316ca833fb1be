package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"google.golang.org/genai"
)

func newTestGemini(t *testing.T) *adapter.GeminiClient {
	t.Helper()
	ctx := context.Background()

	if apiKey := os.Getenv("TEST_GEMINI_API_KEY"); apiKey != "" {
		client, err := adapter.NewGemini(ctx, adapter.WithAPIKey(apiKey))
		gt.NoError(t, err)
		return client
	}
	if projectID := os.Getenv("TEST_GEMINI_PROJECT_ID"); projectID != "" {
		client, err := adapter.NewGemini(ctx, adapter.WithVertexAI(projectID, "us-central1"))
		gt.NoError(t, err)
		return client
	}

	t.Skip("TEST_GEMINI_API_KEY or TEST_GEMINI_PROJECT_ID is not set")
	return nil
}

func TestNewGeminiRequiresBackend(t *testing.T) {
	_, err := adapter.NewGemini(context.Background())
	gt.Error(t, err)
}

func TestGenerateContent(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	contents := []*genai.Content{
		genai.NewContentFromText("Apa ibu kota Sumatera Selatan? Jawab satu kata.", genai.RoleUser),
	}

	resp, err := client.GenerateContent(ctx, contents, nil)
	gt.NoError(t, err)
	gt.A(t, resp.Candidates).Longer(0)
	gt.S(t, resp.Text()).Contains("Palembang")
}

func TestEmbedding(t *testing.T) {
	client := newTestGemini(t)
	ctx := context.Background()

	values, err := client.Embedding(ctx, "kain songket Palembang", 768)
	gt.NoError(t, err)
	gt.A(t, values).Length(768)
}
