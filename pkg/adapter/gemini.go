package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the language model used by the agent and the embedder used by
// memory and document search.
type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error)
}

var ErrEmptyEmbedding = goerr.New("embedding response has no values")

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
	embeddingModel  string

	apiKey   string
	project  string
	location string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithAPIKey switches the client to the Gemini API backend
func WithAPIKey(apiKey string) GeminiOption {
	return func(g *GeminiClient) {
		g.apiKey = apiKey
	}
}

// WithVertexAI switches the client to the Vertex AI backend
func WithVertexAI(project, location string) GeminiOption {
	return func(g *GeminiClient) {
		g.project = project
		g.location = location
	}
}

// NewGemini creates a genai client. Either WithAPIKey or WithVertexAI is required.
func NewGemini(ctx context.Context, opts ...GeminiOption) (*GeminiClient, error) {
	g := &GeminiClient{
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}
	for _, opt := range opts {
		opt(g)
	}

	var cfg *genai.ClientConfig
	switch {
	case g.apiKey != "":
		cfg = &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		}
	case g.project != "":
		cfg = &genai.ClientConfig{
			Project:  g.project,
			Location: g.location,
			Backend:  genai.BackendVertexAI,
		}
	default:
		return nil, goerr.New("either gemini api key or gemini project is required")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	g.client = client

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}

func (g *GeminiClient) Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if dimensionality > 0 {
		dim := int32(dimensionality)
		cfg.OutputDimensionality = &dim
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "no embedding returned", goerr.V("model", g.embeddingModel))
	}

	return resp.Embeddings[0].Values, nil
}
