package ai

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// DefaultTemperature applies when a caller passes a temperature <= 0.
const DefaultTemperature = 0.7

const (
	// ErrorPrefix starts every failure fragment yielded by Service.
	ErrorPrefix = "❌ "

	missingKeyMessage = ErrorPrefix + "Error: OpenRouter API key not found. Please set OPENROUTER_API_KEY environment variable."
	failurePrefix     = ErrorPrefix + "Error generating report: "
)

var errEmptyPrompts = errors.New("System and user prompts are required") //nolint:stylecheck

// Service turns a system and user prompt into report text. Failures never
// surface as Go errors: they become a final "❌ ..." fragment so callers
// can render them inline like any other output.
type Service struct {
	Runtime     Runtime
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
	RequiresKey bool
	Logger      *zap.Logger
	// OnError, when set, receives the runtime error behind a failure fragment
	// before the fragment is sent.
	OnError func(error)
}

// NewService wraps rt with the default model and temperature.
func NewService(rt Runtime, apiKey string, requiresKey bool, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Runtime:     rt,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		APIKey:      apiKey,
		RequiresKey: requiresKey,
		Logger:      logger,
	}
}

// IsErrorFragment reports whether s is a failure fragment.
func IsErrorFragment(s string) bool { return strings.HasPrefix(s, ErrorPrefix) }

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) reportError(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

func (s *Service) request(system, user, model string, temperature float64) GenerateRequest {
	if model == "" {
		model = s.Model
	}
	if model == "" {
		model = DefaultModel
	}
	if temperature <= 0 {
		temperature = s.Temperature
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return GenerateRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   s.MaxTokens,
		Temperature: temperature,
	}
}

// Stream yields report text in generation order and closes the channel
// when done. An empty model or a temperature <= 0 selects the defaults.
func (s *Service) Stream(ctx context.Context, system, user, model string, temperature float64) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		send := func(frag string) bool {
			select {
			case out <- frag:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if s.RequiresKey && s.APIKey == "" {
			send(missingKeyMessage)
			return
		}
		if system == "" || user == "" {
			send(failurePrefix + errEmptyPrompts.Error())
			return
		}
		req := s.request(system, user, model, temperature)
		log := s.logger().With(zap.String("model", req.Model), zap.Float64("temperature", req.Temperature))
		log.Debug("report generation started", zap.Int("prompt_chars", len(system)+len(user)))

		var err error
		sent := 0
		if sr, ok := s.Runtime.(StreamRuntime); ok {
			err = sr.GenerateStream(ctx, req, func(d string) {
				if send(d) {
					sent++
				}
			})
		} else {
			var resp *GenerateResponse
			resp, err = s.Runtime.Generate(ctx, req)
			if err == nil {
				if text := resp.Text(); text != "" {
					send(text)
					sent++
				}
			}
		}
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			log.Error("report generation failed", zap.Error(err), zap.Int("fragments", sent))
			s.reportError(err)
			send(failurePrefix + err.Error())
			return
		}
		log.Debug("report generation finished", zap.Int("fragments", sent))
	}()
	return out
}

// Sync returns the whole report at once, following the Stream contract for
// failures.
func (s *Service) Sync(ctx context.Context, system, user, model string, temperature float64) string {
	if s.RequiresKey && s.APIKey == "" {
		return missingKeyMessage
	}
	if system == "" || user == "" {
		return failurePrefix + errEmptyPrompts.Error()
	}
	req := s.request(system, user, model, temperature)
	resp, err := s.Runtime.Generate(ctx, req)
	if err != nil {
		s.logger().Error("sync report generation failed", zap.String("model", req.Model), zap.Error(err))
		s.reportError(err)
		return failurePrefix + err.Error()
	}
	return resp.Text()
}

// ValidateKey sends a one-token request to confirm the key is accepted.
func (s *Service) ValidateKey(ctx context.Context) error {
	if s.RequiresKey && s.APIKey == "" {
		return errors.New("OpenRouter API key not found")
	}
	req := s.request("ping", "Hello", "", 0)
	req.MaxTokens = 1
	_, err := s.Runtime.Generate(ctx, req)
	return err
}
