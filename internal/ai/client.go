package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// Client turns photo or text input into a validated nutrition estimate using
// whichever provider was configured. It is the single analysis entry point for
// the job queue.
type Client struct {
	provider models.AIProvider
	timeout  time.Duration
	now      func() time.Time
}

// NewClient creates a new Client.
func NewClient(provider models.AIProvider, timeout time.Duration) *Client {
	return &Client{provider: provider, timeout: timeout, now: time.Now}
}

// Analyze performs one request/response round trip. Configuration problems
// (missing consent, malformed photo) are reported before any network call.
func (c *Client) Analyze(ctx context.Context, in models.AnalysisInput) (models.AnalysisResult, error) {
	if c.provider.Cloud() && !in.CloudConsent {
		return models.AnalysisResult{}, ErrConsentRequired
	}

	req, source, err := buildRequest(in)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	analysisCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	raw, err := c.provider.Complete(analysisCtx, req)
	if err != nil {
		if errors.Is(analysisCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
			err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return models.AnalysisResult{}, err
	}

	result, err := ParseResult(raw)
	if err != nil {
		slog.Warn("unparseable analysis reply",
			"provider", c.provider.Name(),
			"error", err,
			"reply", truncateString(raw, 300),
		)
		return models.AnalysisResult{}, err
	}

	result.Provenance = models.Provenance{
		Provider:   c.provider.Name(),
		Model:      c.provider.Model(),
		Source:     source,
		AnalyzedAt: c.now().UTC(),
	}
	slog.Info("analysis complete",
		"provider", c.provider.Name(),
		"source", source,
		"items", len(result.Items),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return result, nil
}

func buildRequest(in models.AnalysisInput) (models.CompletionRequest, models.AnalysisSource, error) {
	switch {
	case in.PhotoDataURI != "":
		img, err := ParseDataURI(in.PhotoDataURI)
		if err != nil {
			return models.CompletionRequest{}, "", err
		}
		return models.CompletionRequest{
			System: systemPrompt,
			Prompt: photoPrompt(in.Description),
			Image:  img,
		}, models.SourcePhoto, nil
	case strings.TrimSpace(in.Text) != "":
		return models.CompletionRequest{
			System: systemPrompt,
			Prompt: textPrompt(in.Text),
		}, models.SourceText, nil
	default:
		return models.CompletionRequest{}, "", ErrMissingInput
	}
}

type wireItem struct {
	Name     string   `json:"name"`
	Quantity any      `json:"quantity"`
	Calories *float64 `json:"calories"`
	ProteinG float64  `json:"protein_g"`
	CarbsG   float64  `json:"carbs_g"`
	FatG     float64  `json:"fat_g"`
}

type wireResult struct {
	Items  *[]wireItem    `json:"items"`
	Totals *models.Totals `json:"totals"`
}

// ParseResult extracts the JSON object from a provider reply and validates it.
// Markdown code fences and prose around the object are tolerated; missing
// required fields are not.
func ParseResult(raw string) (models.AnalysisResult, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return models.AnalysisResult{}, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if w.Items == nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: missing items", ErrInvalidResponse)
	}
	if len(*w.Items) == 0 {
		return models.AnalysisResult{}, ErrEmptyResult
	}

	items := make([]models.FoodItem, 0, len(*w.Items))
	for i, it := range *w.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return models.AnalysisResult{}, fmt.Errorf("%w: item %d has no name", ErrInvalidResponse, i)
		}
		if it.Calories == nil {
			return models.AnalysisResult{}, fmt.Errorf("%w: item %q has no calories", ErrInvalidResponse, name)
		}
		if *it.Calories < 0 || it.ProteinG < 0 || it.CarbsG < 0 || it.FatG < 0 {
			return models.AnalysisResult{}, fmt.Errorf("%w: item %q has negative values", ErrInvalidResponse, name)
		}
		items = append(items, models.FoodItem{
			Name:     name,
			Quantity: quantityString(it.Quantity),
			Calories: *it.Calories,
			ProteinG: it.ProteinG,
			CarbsG:   it.CarbsG,
			FatG:     it.FatG,
		})
	}

	totals := models.SumItems(items)
	if w.Totals != nil && w.Totals.Calories > 0 {
		totals = *w.Totals
	}

	return models.AnalysisResult{Items: items, Totals: totals}, nil
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = strings.TrimPrefix(rest, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func quantityString(v any) string {
	switch q := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(q)
	default:
		return fmt.Sprint(q)
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
