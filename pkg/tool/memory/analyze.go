package memory

import (
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/analyze.md
var analyzePromptRaw string

var analyzePrompt = template.Must(template.New("analyze").Parse(analyzePromptRaw))

const analyzerInstruction = "Anda adalah AI analyzer yang bertugas mengekstrak informasi penting dari pesan user."

// analyzeAndSave asks the model whether the message carries personal facts
// and stores the extracted text when it does
func (t *Tool) analyzeAndSave(ctx context.Context, ns model.Namespace, message string) (string, error) {
	var prompt strings.Builder
	if err := analyzePrompt.Execute(&prompt, map[string]string{"Message": message}); err != nil {
		return "", goerr.Wrap(err, "failed to render analyze prompt")
	}

	var temperature float32
	resp, err := t.gemini.GenerateContent(ctx,
		[]*genai.Content{genai.NewContentFromText(prompt.String(), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(analyzerInstruction, genai.RoleUser),
			Temperature:       &temperature,
		},
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to analyze message")
	}

	info, ok := ParseAnalysis(resp.Text())
	if !ok {
		return "Tidak ada informasi penting yang perlu disimpan dari pesan ini.", nil
	}

	if _, err := t.svc.Add(ctx, ns, info); err != nil {
		return "", err
	}
	return "✓ Terdeteksi dan disimpan informasi penting: " + info, nil
}

// ParseAnalysis extracts the fact from an "INFO: ..." reply. Any other
// reply, including "NONE", yields ok == false.
func ParseAnalysis(reply string) (info string, ok bool) {
	reply = strings.Trim(strings.TrimSpace(reply), "\"")
	if !strings.HasPrefix(reply, "INFO:") {
		return "", false
	}
	info = strings.TrimSpace(strings.TrimPrefix(reply, "INFO:"))
	return info, info != ""
}
