package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nightshade/pkg/ai"
)

// echoDelay paces the echoed words so the client visibly streams.
var echoDelay = 40 * time.Millisecond

func init() {
	ai.RegisterProvider(ai.ProviderInfo{
		Type:        ai.ProviderEcho,
		Name:        "Echo",
		Description: "Offline provider that streams the message back",
		RequiresKey: false,
	}, NewEchoProvider)
}

// EchoProvider replies with the last user message, one word per chunk.
type EchoProvider struct {
	delay time.Duration
}

// NewEchoProvider creates an echo provider. It needs no configuration.
func NewEchoProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	return &EchoProvider{delay: echoDelay}, nil
}

// CreateChatCompletionStream returns a stream of the words of the last user
// message. Whitespace is kept, so the chunks concatenate to the message.
func (p *EchoProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	msg := req.LastUserMessage()
	if strings.TrimSpace(msg) == "" {
		return nil, fmt.Errorf("a user message is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	words := strings.SplitAfter(msg, " ")
	if words[len(words)-1] == "" {
		words = words[:len(words)-1]
	}
	return &echoStream{
		ctx:   ctx,
		words: words,
		delay: p.delay,
		pos:   -1,
	}, nil
}

type echoStream struct {
	ctx   context.Context
	words []string
	delay time.Duration
	pos   int
	err   error
}

func (s *echoStream) Next() bool {
	if s.err != nil || s.pos+1 >= len(s.words) {
		return false
	}
	if s.pos >= 0 && s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		case <-timer.C:
		}
	} else if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.pos++
	return true
}

func (s *echoStream) Content() string {
	if s.pos < 0 || s.pos >= len(s.words) {
		return ""
	}
	return s.words[s.pos]
}

func (s *echoStream) Err() error {
	return s.err
}

func (s *echoStream) Close() error {
	return nil
}

var _ ai.Provider = (*EchoProvider)(nil)
