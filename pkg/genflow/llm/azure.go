package llm

import (
	"context"
	stderrors "errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flowmarket/genflow/pkg/genflow/errors"
)

// DefaultAPIVersion is the Azure OpenAI API version used unless overridden.
const DefaultAPIVersion = "2025-01-01-preview"

// AzureClient implements Client against an Azure OpenAI deployment.
type AzureClient struct {
	client     *openai.Client
	deployment string
	timeout    time.Duration
}

// AzureOption configures AzureClient.
type AzureOption func(*azureConfig)

type azureConfig struct {
	apiVersion string
	timeout    time.Duration
	httpClient openai.HTTPDoer
}

// WithAPIVersion sets the Azure OpenAI API version.
func WithAPIVersion(v string) AzureOption {
	return func(c *azureConfig) { c.apiVersion = v }
}

// WithRequestTimeout bounds each completion call.
// A zero duration disables the client-side bound; callers may still
// pass a context with a deadline.
func WithRequestTimeout(d time.Duration) AzureOption {
	return func(c *azureConfig) { c.timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
// Useful for tests pointing at a local server.
func WithHTTPClient(hc openai.HTTPDoer) AzureOption {
	return func(c *azureConfig) { c.httpClient = hc }
}

// NewAzureClient creates a client for an Azure OpenAI deployment.
// The endpoint is the resource URL (https://<resource>.openai.azure.com)
// and deployment names the model deployment to route requests to.
func NewAzureClient(endpoint, apiKey, deployment string, opts ...AzureOption) *AzureClient {
	cfg := azureConfig{
		apiVersion: DefaultAPIVersion,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultAzureConfig(apiKey, endpoint)
	clientCfg.APIVersion = cfg.apiVersion
	clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	if cfg.httpClient != nil {
		clientCfg.HTTPClient = cfg.httpClient
	}

	return &AzureClient{
		client:     openai.NewClientWithConfig(clientCfg),
		deployment: deployment,
		timeout:    cfg.timeout,
	}
}

// Complete implements Client.
func (c *AzureClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	model := c.deployment
	if req.Model != "" {
		model = req.Model
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, c.wrapError(ctx, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &errors.EmptyResponseError{Deployment: c.deployment}
	}
	choice := resp.Choices[0]

	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// wrapError converts transport failures into the pipeline's error taxonomy.
func (c *AzureClient) wrapError(ctx context.Context, err error) error {
	// Deadline and cancellation first: the SDK wraps context errors.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return &errors.ProviderError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Deployment: c.deployment,
		}
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return &errors.ProviderError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Deployment: c.deployment,
		}
	}

	// Network-level failures are retryable.
	return errors.Transient(err, "complete")
}
