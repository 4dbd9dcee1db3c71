package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatClient drives any OpenAI-compatible chat endpoint through
// go-openai (OpenAI itself, vLLM, LM Studio, OpenRouter).
type OpenAICompatClient struct {
	client  *openai.Client
	baseURL string
}

// NewOpenAICompatClient builds a client for baseURL; "" means OpenRouter.
func NewOpenAICompatClient(apiKey, baseURL string, httpTimeout time.Duration) *OpenAICompatClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if httpTimeout <= 0 {
		httpTimeout = 180 * time.Second
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	config.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAICompatClient{
		client:  openai.NewClientWithConfig(config),
		baseURL: baseURL,
	}
}

func (c *OpenAICompatClient) buildRequest(req GenerateRequest, stream bool) (openai.ChatCompletionRequest, error) {
	if req.Model == "" {
		return openai.ChatCompletionRequest{}, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, errors.New("messages cannot be empty")
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}, nil
}

// Generate performs one non-streaming completion.
func (c *OpenAICompatClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	creq, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, c.mapError(err)
	}
	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.Header().Get("X-Request-Id"),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

// GenerateStream forwards each non-empty delta until the stream ends.
func (c *OpenAICompatClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	creq, err := c.buildRequest(req, true)
	if err != nil {
		return err
	}
	stream, err := c.client.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return c.mapError(err)
	}
	defer stream.Close()
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.mapError(err)
		}
		if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
			onDelta(response.Choices[0].Delta.Content)
		}
	}
}

// mapError converts go-openai errors into this package's typed errors.
func (c *OpenAICompatClient) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		if apiErr.Code != nil {
			e.Code = fmt.Sprint(apiErr.Code)
		}
		return classifyAPIError(e, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := &APIError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			e.Message = reqErr.Err.Error()
		}
		return classifyAPIError(e, nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnreachableError{Host: c.baseURL, Err: err}
}
