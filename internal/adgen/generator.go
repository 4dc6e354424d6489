package adgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/linnemanlabs/go-core/log"
)

const (
	headlineTokens      = 400
	bodyTokens          = 300
	headlineTemperature = 0.7
	bodyTemperature     = 0.6
)

// ErrNoProvider is returned by the placeholder provider used when no LLM
// backend is configured.
var ErrNoProvider = errors.New("no llm provider configured")

// Hooks are optional callbacks fired by the generator. Nil fields are skipped.
type Hooks struct {
	OnLLMCall  func(kind string, inputTokens, outputTokens int, duration float64, failed bool)
	OnComplete func(provider string, ok bool, duration float64)
}

// Generator produces ad copy from alert and business details.
type Generator struct {
	providers map[string]Provider
	fallback  Provider
	logger    log.Logger
	hooks     Hooks
	clock     clockwork.Clock
}

// Option configures a Generator.
type Option func(*Generator)

// WithProvider routes requests naming provider to p instead of the default.
func WithProvider(name string, p Provider) Option {
	return func(g *Generator) { g.providers[name] = p }
}

// WithHooks sets the generator hooks.
func WithHooks(h Hooks) Option {
	return func(g *Generator) { g.hooks = h }
}

// WithClock sets the clock used for timings.
func WithClock(c clockwork.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// NewGenerator creates a Generator whose default provider serves every
// accepted provider name without a dedicated backend. A nil provider makes
// every call fall back to placeholder content.
func NewGenerator(provider Provider, logger log.Logger, opts ...Option) *Generator {
	if provider == nil {
		provider = unconfigured{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	g := &Generator{
		providers: make(map[string]Provider),
		fallback:  provider,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate validates req and produces ad copy. Validation failures wrap
// ErrInvalidRequest and happen before any provider call. If the provider
// fails, Generate still returns a complete Result built from placeholders,
// together with a *GenerationError.
func (g *Generator) Generate(ctx context.Context, req *Request) (*Result, error) {
	norm, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	start := g.clock.Now()
	p := g.provider(norm.Provider)
	business := norm.UserSettings.BusinessName()
	L := g.logger.With("provider", norm.Provider, "event", norm.AlertDetails.Event)

	var errs []error

	headlines, err := g.headlines(ctx, p, &norm)
	if err != nil {
		L.Error(ctx, err, "headline generation failed")
		errs = append(errs, fmt.Errorf("headlines: %w", err))
	}

	body, err := g.body(ctx, p, &norm)
	if err != nil {
		L.Error(ctx, err, "body generation failed")
		errs = append(errs, fmt.Errorf("body: %w", err))
		body = placeholderBody
	}

	res := &Result{
		Headlines: fitHeadlines(headlines, placeholderHeadlines(business)),
		Body:      truncate(body, MaxBodyLen),
		ImageURL:  ImageURL(norm.AlertDetails.Event),
	}

	dur := g.clock.Since(start).Seconds()
	if g.hooks.OnComplete != nil {
		g.hooks.OnComplete(norm.Provider, len(errs) == 0, dur)
	}

	if len(errs) > 0 {
		return res, &GenerationError{Cause: errors.Join(errs...)}
	}
	L.Info(ctx, "ad content generated", "duration", dur)
	return res, nil
}

func (g *Generator) provider(name string) Provider {
	if p, ok := g.providers[name]; ok {
		return p
	}
	return g.fallback
}

func (g *Generator) headlines(ctx context.Context, p Provider, req *Request) ([]string, error) {
	text, err := g.call(ctx, p, "headlines", &LLMRequest{
		MaxTokens:   headlineTokens,
		Temperature: headlineTemperature,
		System:      systemPrompt,
		Messages:    UserText(buildHeadlinePrompt(req)),
	})
	if err != nil {
		return nil, err
	}
	hs := parseHeadlines(text)
	if len(hs) == 0 {
		return nil, errors.New("no headlines in model output")
	}
	return hs, nil
}

func (g *Generator) body(ctx context.Context, p Provider, req *Request) (string, error) {
	text, err := g.call(ctx, p, "body", &LLMRequest{
		MaxTokens:   bodyTokens,
		Temperature: bodyTemperature,
		System:      systemPrompt,
		Messages:    UserText(buildBodyPrompt(req)),
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(stripFences(text))
	if text == "" {
		return "", errors.New("empty body in model output")
	}
	return text, nil
}

func (g *Generator) call(ctx context.Context, p Provider, kind string, req *LLMRequest) (string, error) {
	start := g.clock.Now()
	resp, err := p.Send(ctx, req)
	dur := g.clock.Since(start).Seconds()

	if g.hooks.OnLLMCall != nil {
		var in, out int
		if resp != nil {
			in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
		}
		g.hooks.OnLLMCall(kind, in, out, dur, err != nil)
	}
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

type unconfigured struct{}

func (unconfigured) Send(context.Context, *LLMRequest) (*LLMResponse, error) {
	return nil, ErrNoProvider
}
