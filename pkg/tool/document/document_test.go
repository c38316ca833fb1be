package document_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/m-mizutani/sribot/pkg/tool/document"
	"google.golang.org/genai"
)

type mockSearcher struct {
	chunks []*model.DocumentChunk
	err    error
	gotK   int
}

func (m *mockSearcher) Search(ctx context.Context, query string, k int) ([]*model.DocumentChunk, error) {
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	if len(m.chunks) > k {
		return m.chunks[:k], nil
	}
	return m.chunks, nil
}

func run(t *testing.T, s *mockSearcher, args map[string]any) *genai.FunctionResponse {
	t.Helper()
	reg, err := tool.New([]tool.Tool{document.New(s)})
	gt.NoError(t, err)
	return reg.Execute(context.Background(), genai.FunctionCall{Name: document.SearchDocuments, Args: args})
}

func TestSearchDocumentsFormat(t *testing.T) {
	s := &mockSearcher{chunks: []*model.DocumentChunk{
		{Content: strings.Repeat("x", 600), DocType: "sejarah", Source: "sejarah.md", Page: "3"},
	}}

	resp := run(t, s, map[string]any{"query": "sejarah songket"})
	out := resp.Response["output"].(string)
	gt.Equal(t, s.gotK, 5)
	gt.S(t, out).Contains("**Query:** sejarah songket")
	gt.S(t, out).Contains("**Dokumen:** sejarah")
	gt.S(t, out).Contains("**Sumber:** sejarah.md")
	gt.S(t, out).Contains("**Halaman:** 3")
	gt.S(t, out).Contains(strings.Repeat("x", 500) + "...")
	gt.S(t, out).NotContains(strings.Repeat("x", 501))
}

func TestSearchDocumentsTopKBounds(t *testing.T) {
	s := &mockSearcher{}
	resp := run(t, s, map[string]any{"query": "q", "top_k": float64(11)})
	_, isErr := resp.Response["error"]
	gt.True(t, isErr)

	resp = run(t, s, map[string]any{"query": "q", "top_k": float64(10)})
	gt.S(t, resp.Response["output"].(string)).Contains("Tidak ditemukan dokumen")
	gt.Equal(t, s.gotK, 10)
}

func TestSearchDocumentsFailure(t *testing.T) {
	resp := run(t, &mockSearcher{err: errors.New("index closed")}, map[string]any{"query": "q"})
	out := resp.Response["output"].(string)
	gt.S(t, out).Contains("Error saat mencari dokumen")
	gt.S(t, out).NotContains("index closed")
}
