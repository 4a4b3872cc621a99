package ai

import "context"

// ClientEmbedder binds the OpenAI-compatible client to one embedding config,
// satisfying the pipeline's embedder interface.
type ClientEmbedder struct {
	Client *OpenAICompatibleClient
	Config EmbeddingConfig
}

func (e *ClientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.Client.Embed(ctx, e.Config, text)
}

func (e *ClientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.Client.EmbedBatch(ctx, e.Config, texts)
}

// ClientGenerator binds the client to one chat config, satisfying the
// pipeline's generator interface.
type ClientGenerator struct {
	Client *OpenAICompatibleClient
	Config ChatConfig
}

func (g *ClientGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return g.Client.Complete(ctx, g.Config, []ChatMessage{
		{Role: "user", Content: prompt},
	})
}
