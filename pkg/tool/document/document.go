package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

const (
	SearchDocuments = "search_documents"

	maxContentRunes = 500
	defaultTopK     = 5
	maxTopK         = 10
)

// Searcher is the document index
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]*model.DocumentChunk, error)
}

// Tool searches indexed reference documents
type Tool struct {
	index Searcher
}

var _ tool.Tool = (*Tool)(nil)

func New(index Searcher) *Tool {
	return &Tool{index: index}
}

func (t *Tool) Specs() []*tool.Spec {
	return []*tool.Spec{
		{
			Name: SearchDocuments,
			Description: "Mencari informasi dalam koleksi dokumen yang telah diindeks (sejarah, motif, edukasi songket). " +
				"Gunakan tool ini ketika pengguna bertanya tentang informasi spesifik yang mungkin ada dalam dokumen.",
			Parameters: tool.Object(map[string]*jsonschema.Schema{
				"query": tool.String("Kata kunci atau pertanyaan pencarian", 1),
				"top_k": tool.Integer("Jumlah hasil maksimum", tool.Min(1), tool.Max(maxTopK), tool.Default(defaultTopK)),
			}, "query"),
		},
	}
}

func (t *Tool) Prompt(ctx context.Context) string {
	return ""
}

func (t *Tool) Run(ctx context.Context, name string, args map[string]any) (any, error) {
	if name != SearchDocuments {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "unknown document function", goerr.V("name", name))
	}

	var input struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := tool.Decode(args, &input); err != nil {
		return nil, err
	}
	if input.TopK <= 0 {
		input.TopK = defaultTopK
	}

	chunks, err := t.index.Search(ctx, input.Query, min(input.TopK, maxTopK))
	if err != nil {
		logging.From(ctx).Error("document search failed", logging.ErrAttr(err))
		return "Error saat mencari dokumen. Silakan coba lagi.", nil
	}
	if len(chunks) == 0 {
		return fmt.Sprintf("Tidak ditemukan dokumen yang relevan untuk query: '%s'", input.Query), nil
	}

	return format(input.Query, chunks), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func format(query string, chunks []*model.DocumentChunk) string {
	var b strings.Builder
	b.WriteString("**Pencarian Dokumen Berhasil**\n")
	fmt.Fprintf(&b, "**Query:** %s\n", query)
	fmt.Fprintf(&b, "**Ditemukan:** %d hasil relevan\n\n", len(chunks))

	for i, c := range chunks {
		fmt.Fprintf(&b, "**Hasil %d:**\n", i+1)
		fmt.Fprintf(&b, "**Dokumen:** %s\n", orDefault(c.DocType, "Unknown"))
		fmt.Fprintf(&b, "**Sumber:** %s\n", orDefault(c.Source, "Unknown"))
		fmt.Fprintf(&b, "**Halaman:** %s\n", orDefault(c.Page, "N/A"))
		fmt.Fprintf(&b, "**Konten:**\n%s\n\n", truncate(strings.TrimSpace(c.Content), maxContentRunes))
	}
	return strings.TrimRight(b.String(), "\n")
}
