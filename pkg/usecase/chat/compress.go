package chat

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"google.golang.org/genai"
)

const (
	compressionRatio = 0.7 // Compress first 70% by byte size

	summaryHeader = "=== Ringkasan percakapan sebelumnya ===\n\n"
	summaryAck    = "Baik, saya akan melanjutkan percakapan berdasarkan ringkasan tersebut."
)

//go:embed prompt/summarize.md
var summarizePromptRaw string

var ErrNothingToCompress = goerr.New("insufficient content to compress")

// contentSize calculates the byte size of a content by JSON marshaling
func contentSize(content *genai.Content) int {
	data, err := json.Marshal(content)
	if err != nil {
		return 0
	}
	return len(data)
}

// isUserMessage reports whether content is a user text turn. History may
// only be cut right before such a turn so that no function response is
// separated from its call.
func isUserMessage(content *genai.Content) bool {
	if content == nil || content.Role != genai.RoleUser {
		return false
	}
	hasText := false
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionResponse != nil {
			return false
		}
		if part.Text != "" {
			hasText = true
		}
	}
	return hasText
}

// compressHistory replaces the oldest ~70% of the history (by byte size)
// with a model-written summary and returns the new history
func compressHistory(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) ([]*genai.Content, error) {
	if len(contents) == 0 {
		return nil, goerr.New("history is empty")
	}

	totalBytes := 0
	byteSizes := make([]int, len(contents))
	for i, content := range contents {
		byteSizes[i] = contentSize(content)
		totalBytes += byteSizes[i]
	}

	threshold := int(float64(totalBytes) * compressionRatio)
	cumulative := 0
	compressIndex := 0
	for i, size := range byteSizes {
		cumulative += size
		if cumulative >= threshold {
			compressIndex = i + 1
			break
		}
	}

	for compressIndex > 0 && compressIndex < len(contents) && !isUserMessage(contents[compressIndex]) {
		compressIndex++
	}
	if compressIndex == 0 || compressIndex >= len(contents) {
		return nil, goerr.Wrap(ErrNothingToCompress, "cannot split history",
			goerr.V("contents", len(contents)), goerr.V("bytes", totalBytes))
	}

	summary, err := summarizeContents(ctx, gemini, contents[:compressIndex])
	if err != nil {
		return nil, goerr.Wrap(err, "failed to summarize contents")
	}

	compressed := make([]*genai.Content, 0, len(contents)-compressIndex+2)
	compressed = append(compressed,
		genai.NewContentFromText(summaryHeader+summary, genai.RoleUser),
		genai.NewContentFromText(summaryAck, genai.RoleModel),
	)
	compressed = append(compressed, contents[compressIndex:]...)
	return compressed, nil
}

// summarizeContents asks the model to summarize the given turns
func summarizeContents(ctx context.Context, gemini adapter.Gemini, contents []*genai.Content) (string, error) {
	request := make([]*genai.Content, 0, len(contents)+1)
	request = append(request, contents...)
	request = append(request, genai.NewContentFromText(summarizePromptRaw, genai.RoleUser))

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText("Anda merangkum percakapan asisten songket SriBot.", ""),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	resp, err := gemini.GenerateContent(ctx, request, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate summary")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", goerr.New("no summary generated")
	}

	var summary strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			summary.WriteString(part.Text)
		}
	}
	if summary.Len() == 0 {
		return "", goerr.New("empty summary generated")
	}
	return summary.String(), nil
}
