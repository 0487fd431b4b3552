package scorer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/models"
	"venue-discovery/internal/prompts"
	"venue-discovery/pkg/cache"
	"venue-discovery/pkg/circuit"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
)

// Enhancer enriches venues with model-written descriptions and relevance
// scores. Implementations must return one venue per input, same names.
type Enhancer interface {
	Enhance(ctx context.Context, venues []*models.Venue, req models.RequestContext) ([]*models.Venue, error)
}

// ChatClient is the subset of *openai.Client the enhancer uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type EnhancerOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
	BatchSize   int
	CacheTTL    time.Duration
	Prompts     *prompts.Manager
	Logger      *logging.ComponentLogger
}

// aiSignalWeight is the number of confidence points a 100 relevance score adds.
const aiSignalWeight = 5.0

// EnhancedVenue is one entry of the model's JSON answer.
type EnhancedVenue struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Score       float64  `json:"score"`
	Tags        []string `json:"tags"`
	PriceRange  string   `json:"price_range"`
}

type enhanceResponse struct {
	Venues []EnhancedVenue `json:"venues"`
}

// OpenAIEnhancer asks a chat model about batches of venues. Answers are
// cached per destination and venue so repeated requests cost nothing.
type OpenAIEnhancer struct {
	client  ChatClient
	opts    EnhancerOptions
	pm      *prompts.Manager
	breaker *circuit.Breaker
	cache   *cache.Cache[EnhancedVenue]
	costs   *CostTracker
	log     *logging.ComponentLogger
}

func NewOpenAIEnhancer(apiKey string, opts EnhancerOptions) (*OpenAIEnhancer, error) {
	return NewOpenAIEnhancerWithClient(openai.NewClient(apiKey), opts)
}

func NewOpenAIEnhancerWithClient(client ChatClient, opts EnhancerOptions) (*OpenAIEnhancer, error) {
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1200
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 15
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	pm := opts.Prompts
	if pm == nil {
		var err error
		if pm, err = prompts.NewManager(""); err != nil {
			return nil, err
		}
	}

	cfg := circuit.DefaultConfig("openai")
	cfg.OperationTimeout = constants.OpenAIOperationTimeout
	cfg.OpenFor = constants.OpenAIOpenFor
	cfg.FailureRate = constants.OpenAICircuitFailureRate

	return &OpenAIEnhancer{
		client:  client,
		opts:    opts,
		pm:      pm,
		breaker: circuit.New(cfg, opts.Logger.With(logging.String("breaker", cfg.Name))),
		cache: cache.New[EnhancedVenue](cache.Options{
			Name:       "enhancements",
			MaxSize:    2000,
			DefaultTTL: opts.CacheTTL,
			Logger:     opts.Logger,
		}),
		costs: NewCostTracker(),
		log:   opts.Logger,
	}, nil
}

func (e *OpenAIEnhancer) Breaker() *circuit.Breaker { return e.breaker }

func (e *OpenAIEnhancer) Costs() CostStats { return e.costs.Stats() }

// Enhance returns clones of venues with the model's answers applied. The
// result is built from the model's list, so a model that drops, adds or
// renames venues produces a list that fails the identity check.
func (e *OpenAIEnhancer) Enhance(ctx context.Context, venues []*models.Venue, req models.RequestContext) ([]*models.Venue, error) {
	answers := make(map[string]EnhancedVenue, len(venues))
	var extra []EnhancedVenue
	var pending []*models.Venue
	for _, v := range venues {
		if a, ok := e.cache.Get(cacheKey(req.Destination, v)); ok {
			answers[identityKey(v.Name)] = a
			continue
		}
		pending = append(pending, v)
	}

	for start := 0; start < len(pending); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(pending))
		batch := pending[start:end]
		got, err := e.ask(ctx, batch, req)
		if err != nil {
			return nil, err
		}
		byKey := make(map[string]*models.Venue, len(batch))
		for _, v := range batch {
			byKey[identityKey(v.Name)] = v
		}
		for _, a := range got {
			k := identityKey(a.Name)
			v, ok := byKey[k]
			if !ok {
				extra = append(extra, a)
				continue
			}
			if _, dup := answers[k]; dup {
				extra = append(extra, a)
				continue
			}
			answers[k] = a
			e.cache.Set(cacheKey(req.Destination, v), a, cache.SetOptions{Tags: []string{strings.ToLower(req.Destination)}})
		}
	}

	out := make([]*models.Venue, 0, len(venues))
	for _, v := range venues {
		a, ok := answers[identityKey(v.Name)]
		if !ok {
			continue
		}
		out = append(out, apply(v, a))
	}
	for _, a := range extra {
		out = append(out, models.NewVenue(a.Name, models.CategoryAttraction))
	}
	e.log.Debug("enhanced venues",
		logging.Int("input", len(venues)),
		logging.Int("requested", len(pending)),
		logging.Int("output", len(out)))
	return out, nil
}

func (e *OpenAIEnhancer) ask(ctx context.Context, batch []*models.Venue, req models.RequestContext) ([]EnhancedVenue, error) {
	system, err := e.pm.Render(prompts.EnhanceSystem, nil)
	if err != nil {
		return nil, err
	}
	user, err := e.pm.Render(prompts.EnhanceUser, map[string]any{
		"Destination": req.Destination,
		"Budget":      string(req.Budget),
		"Days":        req.TripDays(),
		"Venues":      batch,
	})
	if err != nil {
		return nil, err
	}

	resp, err := circuit.Execute(ctx, e.breaker, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		return e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.opts.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature:    e.opts.Temperature,
			MaxTokens:      e.opts.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
	})
	if err != nil {
		return nil, errs.NewExternal("scorer.Enhance", "openai", "chat completion", err)
	}
	e.costs.AddUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return nil, errs.NewExternal("scorer.Enhance", "openai", "empty response", errs.ErrEmptyResult)
	}
	return parseResponse(resp.Choices[0].Message.Content)
}

func parseResponse(content string) ([]EnhancedVenue, error) {
	// Clean response (remove markdown code blocks if present)
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var r enhanceResponse
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, errs.NewExternal("scorer.parseResponse", "openai", "invalid JSON answer", err)
	}
	return r.Venues, nil
}

// apply returns a clone of v carrying the answer.
func apply(v *models.Venue, a EnhancedVenue) *models.Venue {
	c := v.Clone()
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if d := strings.TrimSpace(a.Description); d != "" && c.Description == "" {
		c.Description = d
	}
	if c.PriceRange == "" && models.PriceLevel(a.PriceRange) > 0 && strings.Trim(a.PriceRange, "$") == "" {
		c.PriceRange = a.PriceRange
	}
	score := models.Clamp(a.Score, 0, 100)
	if score > c.AnalysisScore {
		c.AnalysisScore = score
	}
	if len(a.Tags) > 0 {
		c.Metadata["ai_tags"] = append([]string(nil), a.Tags...)
	}
	c.AddSource(models.VenueSource{Type: models.SourceAI, RawData: map[string]any{"score": score}})
	c.UpdateSignals(func(qs *models.QualitySignals) {
		qs.SetCustom("ai_relevance", score/100, aiSignalWeight)
	})
	return c
}

func cacheKey(destination string, v *models.Venue) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s", strings.ToLower(destination), identityKey(v.Name), v.Category)))
	return hex.EncodeToString(sum[:])
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
