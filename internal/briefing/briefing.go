package briefing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/airaware/internal/dashboard"
	"github.com/lox/airaware/internal/htmlutil"
)

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = errors.New("briefing disabled: no OpenAI API key configured")

const DefaultModel = string(openai.ChatModelGPT4oMini)

const systemPrompt = `You write short air quality briefings for residents of Indian cities.
Reply with exactly two plain sentences and no markdown. The first sentence summarises
the coming days' air quality. The second gives one practical health precaution.`

// Completer sends a system and user prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type openAICompleter struct {
	client openai.Client
	model  string
}

func (c *openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generator writes forecast briefings.
type Generator struct {
	completer Completer
	cache     *Cache
	mu        sync.Mutex // serialises generation so concurrent requests don't duplicate API calls
}

// NewGenerator creates a generator backed by OpenAI. An empty apiKey yields
// a disabled generator.
func NewGenerator(apiKey, model string, cache *Cache) *Generator {
	if apiKey == "" {
		return &Generator{cache: cache}
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		completer: &openAICompleter{
			client: openai.NewClient(option.WithAPIKey(apiKey)),
			model:  model,
		},
		cache: cache,
	}
}

// NewGeneratorWithCompleter creates a generator around an arbitrary model.
func NewGeneratorWithCompleter(c Completer, cache *Cache) *Generator {
	return &Generator{completer: c, cache: cache}
}

// Enabled reports whether briefings can be generated.
func (g *Generator) Enabled() bool {
	return g != nil && g.completer != nil
}

// Brief returns a two-sentence briefing for report, generated at most once
// per city and date.
func (g *Generator) Brief(ctx context.Context, report *dashboard.ForecastReport, date time.Time) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}
	key := CacheKey(report.City.Name, date)

	if g.cache != nil {
		if text, ok := g.cache.Get(key); ok {
			return text, nil
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cache != nil {
		if text, ok := g.cache.Get(key); ok {
			return text, nil
		}
	}

	log.Printf("briefing: generating for %s", key)
	raw, err := g.completer.Complete(ctx, systemPrompt, Prompt(report))
	if err != nil {
		return "", err
	}
	text := htmlutil.Plain(raw)
	if text == "" {
		return "", errors.New("empty briefing returned")
	}

	if g.cache != nil {
		if err := g.cache.Set(key, text); err != nil {
			log.Printf("briefing: cache %s: %v", key, err)
		}
	}
	return text, nil
}

// Prompt renders the forecast as the user message.
func Prompt(report *dashboard.ForecastReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "City: %s", report.City.Name)
	if report.City.State != "" {
		fmt.Fprintf(&b, ", %s", report.City.State)
	}
	b.WriteString("\nForecast:\n")
	for _, d := range report.Days {
		fmt.Fprintf(&b, "- %s (%s): AQI %d %s, %s, %d-%d°C\n",
			d.DayLabel, d.Date, d.AQI, d.Band.Label, d.Condition, d.TempMin, d.TempMax)
	}
	return b.String()
}
