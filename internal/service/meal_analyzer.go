package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/config"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// OfflineCoachReply is answered when no provider could produce a reply
const OfflineCoachReply = "Keep pushing! System is in offline mode."

// minImageBase64 shortest base64 payload accepted as an image
const minImageBase64 = 100

var aiRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "ai_provider_requests_total",
		Help:      "Generative-AI provider calls by provider, task and result",
	},
	[]string{"provider", "task", "result"},
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

type guardedProvider struct {
	provider aiProvider
	breaker  *gobreaker.CircuitBreaker[string]
}

// MealAnalyzer estimates nutrition from meal photos and answers coach
// questions, trying each configured provider in order.
type MealAnalyzer struct {
	providers []guardedProvider
	now       func() time.Time
}

// NewMealAnalyzer builds the provider chain Gemini, OpenRouter, Groq.
// Providers without an API key are left out.
func NewMealAnalyzer(cfg config.AIConfig) *MealAnalyzer {
	client := newAIHTTPClient(cfg.TimeoutSeconds)

	var providers []aiProvider
	if cfg.GeminiKey != "" {
		providers = append(providers, newGeminiProvider(geminiBaseURL, cfg.GeminiKey, cfg.GeminiModel, client))
	}
	if cfg.OpenRouterKey != "" {
		p := newOpenAIProvider("OpenRouter", openRouterBaseURL, cfg.OpenRouterKey, cfg.OpenRouterVisionModel, cfg.OpenRouterChatModel, client)
		p.headers["X-Title"] = "Gym Smart AI"
		providers = append(providers, p)
	}
	if cfg.GroqKey != "" {
		providers = append(providers, newOpenAIProvider("Groq", groqBaseURL, cfg.GroqKey, cfg.GroqVisionModel, cfg.GroqChatModel, client))
	}
	return newMealAnalyzer(providers...)
}

func newMealAnalyzer(providers ...aiProvider) *MealAnalyzer {
	a := &MealAnalyzer{now: time.Now}
	for _, p := range providers {
		a.providers = append(a.providers, guardedProvider{provider: p, breaker: newProviderBreaker(p.Name())})
	}
	return a
}

func newProviderBreaker(name string) *gobreaker.CircuitBreaker[string] {
	log := pkglogger.Component("ai")
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// Providers returns the names of the configured providers in call order
func (a *MealAnalyzer) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.provider.Name()
	}
	return names
}

// Analyze returns the nutrition estimate of the first provider whose
// answer parses. When every provider fails the last error is wrapped in
// ErrAllProvidersFailed.
func (a *MealAnalyzer) Analyze(ctx context.Context, req *domain.AnalyzeMealRequest) (*domain.MealAnalysis, error) {
	image := strings.TrimSpace(req.ImageBase64)
	if idx := strings.Index(image, ";base64,"); strings.HasPrefix(image, "data:") && idx >= 0 {
		image = image[idx+len(";base64,"):]
	}
	if len(image) < minImageBase64 {
		return nil, fmt.Errorf("%w: image data too short", common.ErrInvalidInput)
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	log := pkglogger.Component("ai")
	lastErr := errors.New("no AI provider configured")
	for _, gp := range a.providers {
		name := gp.provider.Name()
		text, err := gp.breaker.Execute(func() (string, error) {
			return gp.provider.Vision(ctx, mealPrompt, mimeType, image)
		})
		if err == nil {
			var analysis *domain.MealAnalysis
			analysis, err = parseMealAnalysis(text)
			if err == nil {
				analysis.Provider = name
				analysis.AnalyzedAt = a.now()
				aiRequestsTotal.WithLabelValues(name, "meal", "ok").Inc()
				log.Info().Str("provider", name).Str("food", analysis.FoodName).Msg("meal analyzed")
				return analysis, nil
			}
		}

		aiRequestsTotal.WithLabelValues(name, "meal", resultLabel(err)).Inc()
		log.Warn().Err(err).Str("provider", name).Msg("meal analysis failed")
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", common.ErrAllProvidersFailed, lastErr)
}

// CoachReply asks the providers in order for a coaching answer and falls
// back to a fixed offline reply
func (a *MealAnalyzer) CoachReply(ctx context.Context, req *domain.CoachReplyRequest) *domain.CoachReplyResponse {
	prompt := strings.TrimSpace(req.Message)
	if c := strings.TrimSpace(req.Context); c != "" {
		prompt = c + "\n\nUser: " + prompt
	}

	log := pkglogger.Component("ai")
	for _, gp := range a.providers {
		name := gp.provider.Name()
		text, err := gp.breaker.Execute(func() (string, error) {
			return gp.provider.Chat(ctx, prompt)
		})
		if err == nil && strings.TrimSpace(text) != "" {
			aiRequestsTotal.WithLabelValues(name, "chat", "ok").Inc()
			return &domain.CoachReplyResponse{Reply: strings.TrimSpace(text), Provider: name}
		}
		if err == nil {
			err = fmt.Errorf("%w: empty reply", common.ErrMalformedResponse)
		}
		aiRequestsTotal.WithLabelValues(name, "chat", resultLabel(err)).Inc()
		log.Warn().Err(err).Str("provider", name).Msg("coach reply failed")
		if ctx.Err() != nil {
			break
		}
	}
	return &domain.CoachReplyResponse{Reply: OfflineCoachReply}
}

func resultLabel(err error) string {
	switch {
	case isQuotaError(err):
		return "quota"
	case errors.Is(err, common.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	default:
		return "error"
	}
}

// rawMealAnalysis pointer fields tell missing values from zeros
type rawMealAnalysis struct {
	FoodName    *string  `json:"foodName"`
	Ingredients []string `json:"ingredients"`
	PortionSize string   `json:"portionSize"`
	Weight      *float64 `json:"weight"`
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fats        *float64 `json:"fats"`
	Fiber       *float64 `json:"fiber"`
	Sugar       *float64 `json:"sugar"`
	HealthScore *float64 `json:"healthScore"`
	Advice      string   `json:"advice"`
}

// extractObject cuts the outermost JSON object out of a model answer and
// drops trailing commas
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return trailingComma.ReplaceAllString(text[start:end+1], "$1"), true
}

// parseMealAnalysis strictly decodes a provider answer. Anything that does
// not carry a food name and every numeric field is ErrMalformedResponse.
func parseMealAnalysis(text string) (*domain.MealAnalysis, error) {
	obj, ok := extractObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", common.ErrMalformedResponse)
	}

	var raw rawMealAnalysis
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if raw.FoodName == nil || strings.TrimSpace(*raw.FoodName) == "" {
		return nil, fmt.Errorf("%w: missing foodName", common.ErrMalformedResponse)
	}

	numbers := map[string]*float64{
		"weight": raw.Weight, "calories": raw.Calories, "protein": raw.Protein, "carbs": raw.Carbs,
		"fats": raw.Fats, "fiber": raw.Fiber, "sugar": raw.Sugar, "healthScore": raw.HealthScore,
	}
	for field, v := range numbers {
		if v == nil {
			return nil, fmt.Errorf("%w: missing %s", common.ErrMalformedResponse, field)
		}
		if *v < 0 {
			return nil, fmt.Errorf("%w: negative %s", common.ErrMalformedResponse, field)
		}
	}
	if *raw.HealthScore > 100 {
		return nil, fmt.Errorf("%w: healthScore %.0f out of range", common.ErrMalformedResponse, *raw.HealthScore)
	}

	ingredients := raw.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	return &domain.MealAnalysis{
		FoodName:    strings.TrimSpace(*raw.FoodName),
		Ingredients: ingredients,
		PortionSize: raw.PortionSize,
		Weight:      *raw.Weight,
		Calories:    *raw.Calories,
		Protein:     *raw.Protein,
		Carbs:       *raw.Carbs,
		Fats:        *raw.Fats,
		Fiber:       *raw.Fiber,
		Sugar:       *raw.Sugar,
		HealthScore: int(*raw.HealthScore + 0.5),
		Advice:      raw.Advice,
	}, nil
}
