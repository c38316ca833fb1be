package chat

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/m-mizutani/sribot/pkg/model"
	"google.golang.org/genai"
)

var imageKeys = map[string]struct{}{
	"product_image": {},
	"umkm_image":    {},
}

var (
	urlPattern       = regexp.MustCompile(`https?://[^\s"'<>()\[\]]+`)
	imagePathPattern = regexp.MustCompile(`(?i)\.(?:jpe?g|png)$`)
)

// Extract builds the chat result from the history. Structured payloads
// come from {status, data} envelopes or bare JSON arrays in any turn; the
// latest one wins. Image references are collected from payloads, or from
// URLs in text that is not JSON.
func Extract(contents []*genai.Content) *model.ChatResult {
	result := &model.ChatResult{Images: []string{}}
	seen := make(map[string]struct{})
	addImage := func(img string) {
		if img == "" {
			return
		}
		if _, ok := seen[img]; ok {
			return
		}
		seen[img] = struct{}{}
		result.Images = append(result.Images, img)
	}

	for _, text := range textsOf(contents) {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		result.Reply = text

		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			for _, url := range imageURLs(text) {
				addImage(url)
			}
			continue
		}

		switch v := parsed.(type) {
		case map[string]any:
			_, hasStatus := v["status"]
			data, hasData := v["data"]
			if hasStatus && hasData {
				result.Data = data
				collectImages(data, addImage)
			}
		case []any:
			result.Data = map[string]any{"status": "success", "data": v, "count": len(v)}
			collectImages(v, addImage)
		}
	}

	return result
}

// textsOf flattens every turn into its textual contents: the joined text
// parts of a turn, then the output of each function response
func textsOf(contents []*genai.Content) []string {
	var texts []string
	for _, content := range contents {
		if content == nil {
			continue
		}

		var text strings.Builder
		var outputs []string
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if part.FunctionResponse != nil {
				if out, ok := part.FunctionResponse.Response["output"].(string); ok {
					outputs = append(outputs, out)
				}
			}
		}

		if text.Len() > 0 {
			texts = append(texts, text.String())
		}
		texts = append(texts, outputs...)
	}
	return texts
}

func collectImages(v any, add func(string)) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for key := range x {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := x[key]
			if _, ok := imageKeys[key]; ok {
				if s, ok := value.(string); ok {
					add(s)
					continue
				}
			}
			collectImages(value, add)
		}
	case []any:
		for _, item := range x {
			collectImages(item, add)
		}
	}
}

// imageURLs returns the http(s) URLs in text whose path ends with an image
// extension
func imageURLs(text string) []string {
	var urls []string
	for _, raw := range urlPattern.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		path := raw
		if i := strings.IndexAny(path, "?#"); i >= 0 {
			path = path[:i]
		}
		if imagePathPattern.MatchString(path) {
			urls = append(urls, raw)
		}
	}
	return urls
}
