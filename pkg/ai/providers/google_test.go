package providers

import (
	"context"
	"errors"
	"iter"
	"math"
	"strings"
	"testing"
	"time"

	"nightshade/pkg/ai"
	"nightshade/pkg/config"

	"google.golang.org/genai"
)

type stubGoogleModelsClient struct {
	streamSeq iter.Seq2[*genai.GenerateContentResponse, error]

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	gotCtx      context.Context
}

func (s *stubGoogleModelsClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	s.gotCtx = ctx
	s.gotModel = model
	s.gotContents = contents
	s.gotConfig = cfg
	if s.streamSeq != nil {
		return s.streamSeq
	}
	return func(yield func(*genai.GenerateContentResponse, error) bool) {}
}

func googleTextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role: genai.RoleModel,
					Parts: []*genai.Part{
						{Text: text},
					},
				},
			},
		},
	}
}

func googleSeq(texts ...string) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, text := range texts {
			if !yield(googleTextResponse(text), nil) {
				return
			}
		}
	}
}

func collect(t *testing.T, stream ai.ChatStream) string {
	t.Helper()
	defer stream.Close()

	var output strings.Builder
	for stream.Next() {
		output.WriteString(stream.Content())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	return output.String()
}

func TestNewGoogleProvider_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Providers.Google.APIKey = ""

	_, err := NewGoogleProvider(ai.ProviderConfig{
		Type:   ai.ProviderGoogle,
		Config: cfg,
	})
	if err == nil {
		t.Fatal("Expected error when Google API key is missing")
	}
}

func TestNewGoogleProvider_DefaultFallbacks(t *testing.T) {
	origNewClient := newGoogleClient
	defer func() {
		newGoogleClient = origNewClient
	}()

	var gotClientCfg *genai.ClientConfig
	newGoogleClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
		gotClientCfg = cfg
		return &genai.Client{}, nil
	}

	cfg := config.Default()
	cfg.Server.Providers.Google.APIKey = "test-google-key"
	cfg.Server.Providers.Google.Model = ""
	cfg.Server.Providers.Google.Temperature = 0.55
	cfg.Server.Providers.Google.MaxTokens = 2048
	cfg.Server.Providers.Google.APITimeoutSeconds = 0

	provider, err := NewGoogleProvider(ai.ProviderConfig{
		Type:   ai.ProviderGoogle,
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("NewGoogleProvider() error: %v", err)
	}

	googleProvider, ok := provider.(*GoogleProvider)
	if !ok {
		t.Fatalf("Expected *GoogleProvider, got %T", provider)
	}
	if gotClientCfg == nil {
		t.Fatal("Expected Google client config to be captured")
	}
	if gotClientCfg.APIKey != "test-google-key" {
		t.Fatalf("Expected API key to be forwarded, got %q", gotClientCfg.APIKey)
	}
	if gotClientCfg.Backend != genai.BackendGeminiAPI {
		t.Fatalf("Expected BackendGeminiAPI, got %q", gotClientCfg.Backend)
	}
	if googleProvider.defaultModel != googleDefaultModel {
		t.Fatalf("Expected default model %q, got %q", googleDefaultModel, googleProvider.defaultModel)
	}
	if googleProvider.defaultTimeout != 60*time.Second {
		t.Fatalf("Expected default timeout 60s, got %s", googleProvider.defaultTimeout)
	}
	if googleProvider.defaultTemperature != 0.55 {
		t.Fatalf("Expected default temperature 0.55, got %f", googleProvider.defaultTemperature)
	}
	if googleProvider.defaultMaxTokens != 2048 {
		t.Fatalf("Expected default max tokens 2048, got %d", googleProvider.defaultMaxTokens)
	}
}

func TestNewGoogleProvider_ClientError(t *testing.T) {
	origNewClient := newGoogleClient
	defer func() {
		newGoogleClient = origNewClient
	}()
	newGoogleClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
		return nil, errors.New("boom")
	}

	cfg := config.Default()
	cfg.Server.Providers.Google.APIKey = "key"

	if _, err := NewGoogleProvider(ai.ProviderConfig{Type: ai.ProviderGoogle, Config: cfg}); err == nil {
		t.Fatal("Expected client construction error to be returned")
	}
}

func TestGoogleProvider_MapsMessages(t *testing.T) {
	stub := &stubGoogleModelsClient{streamSeq: googleSeq("ok")}
	provider := &GoogleProvider{
		models:             stub,
		defaultModel:       "google-default",
		defaultTemperature: 0.7,
		defaultMaxTokens:   1024,
	}

	temp := 0.2
	maxTokens := 42
	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{
			{Role: "system", Content: "system prompt"},
			{Role: "assistant", Content: "Hi, how can I be of assistance?"},
			{Role: "user", Content: "hello"},
			{Role: "model", Content: "Hi!"},
			{Role: "tool", Content: "unknown role maps to user"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	if got := collect(t, stream); got != "ok" {
		t.Fatalf("Expected output %q, got %q", "ok", got)
	}

	if stub.gotModel != "google-default" {
		t.Fatalf("Expected default model to be used, got %q", stub.gotModel)
	}
	// The leading greeting is dropped.
	wantRoles := []string{"user", "model", "user"}
	if len(stub.gotContents) != len(wantRoles) {
		t.Fatalf("Expected %d non-system messages, got %d", len(wantRoles), len(stub.gotContents))
	}
	for i, want := range wantRoles {
		if string(stub.gotContents[i].Role) != want {
			t.Errorf("content[%d] role = %q, want %q", i, stub.gotContents[i].Role, want)
		}
	}
	if stub.gotConfig == nil || stub.gotConfig.SystemInstruction == nil {
		t.Fatal("Expected system instruction to be set")
	}
	if got := stub.gotConfig.SystemInstruction.Parts[0].Text; got != "system prompt" {
		t.Fatalf("Expected system prompt, got %q", got)
	}
	if stub.gotConfig.ThinkingConfig == nil || stub.gotConfig.ThinkingConfig.ThinkingBudget == nil {
		t.Fatal("Expected thinking budget to be set")
	}
	if *stub.gotConfig.ThinkingConfig.ThinkingBudget != 0 {
		t.Fatalf("Expected ThinkingBudget=0, got %d", *stub.gotConfig.ThinkingConfig.ThinkingBudget)
	}
	if math.Abs(float64(*stub.gotConfig.Temperature)-0.2) > 0.0001 {
		t.Fatalf("Expected temperature override 0.2, got %f", *stub.gotConfig.Temperature)
	}
	if stub.gotConfig.MaxOutputTokens != 42 {
		t.Fatalf("Expected max output tokens 42, got %d", stub.gotConfig.MaxOutputTokens)
	}
}

func TestGoogleProvider_NormalizesNonPositiveMaxTokens(t *testing.T) {
	stub := &stubGoogleModelsClient{}
	provider := &GoogleProvider{
		models:           stub,
		defaultModel:     "google-default",
		defaultMaxTokens: 1024,
	}

	zero := 0
	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages:  []ai.Message{{Role: "user", Content: "hello"}},
		MaxTokens: &zero,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	collect(t, stream)

	if stub.gotConfig.MaxOutputTokens != 0 {
		t.Fatalf("Expected max output tokens to be unset (0), got %d", stub.gotConfig.MaxOutputTokens)
	}
}

func TestGoogleProvider_ValidationErrors(t *testing.T) {
	provider := &GoogleProvider{
		models:       &stubGoogleModelsClient{},
		defaultModel: "google-default",
	}

	tests := []struct {
		name string
		req  ai.ChatRequest
	}{
		{"no messages", ai.ChatRequest{}},
		{"system only", ai.ChatRequest{Messages: []ai.Message{{Role: "system", Content: "x"}}}},
		{"model only", ai.ChatRequest{Messages: []ai.Message{{Role: "assistant", Content: "Hi"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := provider.CreateChatCompletionStream(context.Background(), tt.req); err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestGoogleProvider_Stream(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{"incremental", []string{"Hello", " world"}, "Hello world"},
		{"cumulative", []string{"Hello", "Hello world"}, "Hello world"},
		{"empty chunks skipped", []string{"", "Hi", "", "!"}, "Hi!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &GoogleProvider{
				models:       &stubGoogleModelsClient{streamSeq: googleSeq(tt.chunks...)},
				defaultModel: "google-default",
			}
			stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
				Messages: []ai.Message{{Role: "user", Content: "stream"}},
			})
			if err != nil {
				t.Fatalf("CreateChatCompletionStream() error: %v", err)
			}
			if got := collect(t, stream); got != tt.want {
				t.Fatalf("Expected stream output %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGoogleProvider_Stream_FiltersThoughtParts(t *testing.T) {
	stub := &stubGoogleModelsClient{
		streamSeq: func(yield func(*genai.GenerateContentResponse, error) bool) {
			yield(&genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{
						Content: &genai.Content{
							Role: genai.RoleModel,
							Parts: []*genai.Part{
								{Text: "internal", Thought: true},
								{Text: "visible answer"},
							},
						},
					},
				},
			}, nil)
		},
	}
	provider := &GoogleProvider{models: stub, defaultModel: "google-default"}

	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	if got := collect(t, stream); got != "visible answer" {
		t.Fatalf("Expected thought parts to be filtered, got %q", got)
	}
}

func TestGoogleProvider_Stream_Error(t *testing.T) {
	streamErr := errors.New("stream failed")
	stub := &stubGoogleModelsClient{
		streamSeq: func(yield func(*genai.GenerateContentResponse, error) bool) {
			if !yield(googleTextResponse("partial"), nil) {
				return
			}
			yield(nil, streamErr)
		},
	}
	provider := &GoogleProvider{models: stub, defaultModel: "google-default"}

	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: "user", Content: "stream"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	defer stream.Close()

	if !stream.Next() || stream.Content() != "partial" {
		t.Fatal("Expected the chunk before the error to be delivered")
	}
	if stream.Next() {
		t.Fatal("Expected Next() to return false when stream emits an error")
	}
	if !errors.Is(stream.Err(), streamErr) {
		t.Fatalf("Expected stream error to be reported, got %v", stream.Err())
	}
}

func TestGoogleProvider_AppliesDefaultTimeout(t *testing.T) {
	stub := &stubGoogleModelsClient{}
	provider := &GoogleProvider{
		models:         stub,
		defaultModel:   "google-default",
		defaultTimeout: time.Minute,
	}

	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	if _, ok := stub.gotCtx.Deadline(); !ok {
		t.Fatal("Expected request context to carry the default timeout")
	}
	stream.Close()
	if stub.gotCtx.Err() == nil {
		t.Fatal("Expected Close to cancel the request context")
	}
}
