package chat

import (
	"bytes"
	"context"
	_ "embed"
	"runtime/debug"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/adapter"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/policy"
	"github.com/m-mizutani/sribot/pkg/tool"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

const (
	// ApologyMessage is returned when a request fails for any reason
	ApologyMessage = "Maaf, terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi."
	// RoundCapMessage ends a conversation turn that used up all rounds
	RoundCapMessage = "Maaf, saya belum bisa menyelesaikan permintaan ini. Silakan coba dengan pertanyaan yang lebih spesifik."

	defaultMaxRounds    = 10
	defaultRoundTimeout = 60 * time.Second
	defaultToolTimeout  = 30 * time.Second

	// maxCompressions bounds history compression retries per inference
	maxCompressions = 2
)

var ErrEmptyCandidate = goerr.New("model returned no candidate")

// Policy decides whether a requested tool call may run
type Policy interface {
	Check(ctx context.Context, input policy.Input) ([]string, error)
}

// ChatInput is one user message in a thread
type ChatInput struct {
	ThreadID string
	UserID   string
	Message  string
}

// Agent runs the tool-augmented reasoning loop
type Agent struct {
	gemini   adapter.Gemini
	registry *tool.Registry
	sessions SessionStore
	policy   Policy

	maxRounds    int
	roundTimeout time.Duration
	toolTimeout  time.Duration
}

type Option func(*Agent)

func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

func WithRoundTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.roundTimeout = d
		}
	}
}

func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.toolTimeout = d
		}
	}
}

// WithPolicy rejects tool calls denied by p before they run
func WithPolicy(p Policy) Option {
	return func(a *Agent) {
		a.policy = p
	}
}

func New(gemini adapter.Gemini, registry *tool.Registry, sessions SessionStore, opts ...Option) *Agent {
	a := &Agent{
		gemini:       gemini,
		registry:     registry,
		sessions:     sessions,
		maxRounds:    defaultMaxRounds,
		roundTimeout: defaultRoundTimeout,
		toolTimeout:  defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func apology() *model.ChatResult {
	return &model.ChatResult{Reply: ApologyMessage, Images: []string{}}
}

// Chat answers one message. Failures are logged and answered with an
// apology; the thread is only checkpointed when the loop completes.
func (a *Agent) Chat(ctx context.Context, input ChatInput) (result *model.ChatResult) {
	if input.ThreadID == "" {
		input.ThreadID = input.UserID
	}

	logger := logging.From(ctx).With("thread_id", input.ThreadID, "user_id", input.UserID)
	ctx = logging.With(ctx, logger)
	ctx = tool.WithUserID(ctx, input.UserID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("chat panicked", "panic", rec, "stack", string(debug.Stack()))
			result = apology()
		}
	}()

	contents, err := a.run(ctx, input)
	if err != nil {
		logger.Error("failed to process chat", logging.ErrAttr(err))
		return apology()
	}

	return Extract(contents)
}

func (a *Agent) run(ctx context.Context, input ChatInput) ([]*genai.Content, error) {
	contents, err := a.sessions.Load(ctx, input.ThreadID)
	if err != nil {
		return nil, err
	}
	contents = append(contents, genai.NewContentFromText(input.Message, genai.RoleUser))

	systemPrompt, err := a.systemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Tools:             a.registry.Specs(),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
	}

	var called []string
	finished := false
	for round := 1; round <= a.maxRounds; round++ {
		content, next, err := a.inferCompressing(ctx, contents, config)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to infer", goerr.V("round", round))
		}
		contents = append(next, content)

		calls := functionCalls(content)
		if len(calls) == 0 {
			finished = true
			break
		}

		for _, fc := range calls {
			called = append(called, fc.Name)
		}
		contents = append(contents, a.act(ctx, round, called, calls))
	}

	if !finished {
		logging.From(ctx).Warn("round cap reached", "max_rounds", a.maxRounds)
		contents = append(contents, genai.NewContentFromText(RoundCapMessage, genai.RoleModel))
	}

	if err := a.sessions.Save(ctx, input.ThreadID, contents); err != nil {
		return nil, err
	}
	return contents, nil
}

func (a *Agent) systemPrompt(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Tools": a.registry.Prompts(ctx),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return buf.String(), nil
}

// inferCompressing runs infer and, when the history is over the model's
// token limit, replaces the older part of it with a summary and retries.
// It returns the history the reply belongs to.
func (a *Agent) inferCompressing(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.Content, []*genai.Content, error) {
	for attempt := 0; ; attempt++ {
		content, err := a.infer(ctx, contents, config)
		if err == nil {
			return content, contents, nil
		}
		if !adapter.IsTokenLimitError(err) || attempt >= maxCompressions {
			return nil, nil, err
		}

		logging.From(ctx).Warn("history exceeds token limit, compressing",
			"contents", len(contents), "attempt", attempt+1)

		compressed, cerr := a.compress(ctx, contents)
		if cerr != nil {
			return nil, nil, goerr.Wrap(cerr, "failed to compress history", goerr.V("cause", err.Error()))
		}
		contents = compressed
	}
}

func (a *Agent) compress(ctx context.Context, contents []*genai.Content) ([]*genai.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, a.roundTimeout)
	defer cancel()
	return compressHistory(ctx, a.gemini, contents)
}

func (a *Agent) infer(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, a.roundTimeout)
	defer cancel()

	resp, err := a.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyCandidate
	}

	content := resp.Candidates[0].Content
	if content.Role == "" {
		content.Role = genai.RoleModel
	}
	return content, nil
}

func functionCalls(content *genai.Content) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, part := range content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}

// act runs all calls of a round concurrently and returns their responses,
// in request order, as one user turn
func (a *Agent) act(ctx context.Context, round int, called []string, calls []genai.FunctionCall) *genai.Content {
	parts := make([]*genai.Part, len(calls))

	var eg errgroup.Group
	for i, fc := range calls {
		eg.Go(func() error {
			parts[i] = &genai.Part{FunctionResponse: a.call(ctx, round, called, fc)}
			return nil
		})
	}
	_ = eg.Wait()

	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}

func (a *Agent) call(ctx context.Context, round int, called []string, fc genai.FunctionCall) *genai.FunctionResponse {
	logger := logging.From(ctx).With("tool", fc.Name, "round", round)

	if a.policy != nil {
		denied, err := a.policy.Check(ctx, policy.Input{
			Tool:   fc.Name,
			Round:  round,
			Called: called,
			UserID: tool.UserID(ctx),
		})
		if err != nil {
			logger.Error("failed to evaluate tool policy", logging.ErrAttr(err))
			return tool.ErrorResponse(fc, "tool policy evaluation failed")
		}
		if len(denied) > 0 {
			logger.Info("tool call denied by policy", "reasons", denied)
			return tool.ErrorResponse(fc, strings.Join(denied, "; "))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	done := make(chan *genai.FunctionResponse, 1)
	go func() {
		done <- a.registry.Execute(ctx, fc)
	}()

	select {
	case resp := <-done:
		logger.Debug("tool called", "args", fc.Args)
		return resp
	case <-ctx.Done():
		logger.Warn("tool call timed out", "timeout", a.toolTimeout)
		return tool.ErrorResponse(fc, "tool "+fc.Name+" timed out")
	}
}
