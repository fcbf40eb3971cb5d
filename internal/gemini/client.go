// Package gemini talks to the Gemini generateContent REST endpoint and
// implements the planner and document parser capabilities on top of it.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "planningsprite/internal/log"
	"planningsprite/internal/plan"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.5-flash"
)

// ErrNoAPIKey is returned when the client is used without credentials.
var ErrNoAPIKey = errors.New("gemini: API key is not configured")

// Client calls one Gemini model. It satisfies plan.Planner and plan.Parser.
type Client struct {
	APIKey   string
	Model    string
	Endpoint string
	HTTP     *http.Client

	// Location is used for timestamps the model returns without an offset.
	Location *time.Location
	// Now supplies the current year for document prompts.
	Now func() time.Time
}

// NewClient returns a client for model at the default endpoint.
func NewClient(apiKey, model string, loc *time.Location) *Client {
	if model == "" {
		model = DefaultModel
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		APIKey:   apiKey,
		Model:    model,
		Endpoint: DefaultEndpoint,
		HTTP:     &http.Client{Timeout: 90 * time.Second},
		Location: loc,
		Now:      time.Now,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// generate sends parts with a JSON response schema and returns the raw JSON
// text of the first candidate.
func (c *Client) generate(ctx context.Context, parts []part, out *schema) ([]byte, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   out,
		},
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.Endpoint, "/") + "/models/" + c.Model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read: %w", err)
	}

	var gr generateResponse
	decodeErr := json.Unmarshal(respBody, &gr)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && gr.Error != nil {
			msg = gr.Error.Message
		}
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrMalformedResponse, decodeErr)
	}

	appLog.Debug("gemini response", "model", c.Model, "elapsed", time.Since(started).Round(time.Millisecond))

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates", plan.ErrMalformedResponse)
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, fmt.Errorf("%w: empty candidate text", plan.ErrMalformedResponse)
	}
	return []byte(text), nil
}

type rawScheduledEvent struct {
	TaskID    string `json:"taskId"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Title     string `json:"title"`
	Reasoning string `json:"reasoning"`
}

type rawPlan struct {
	StrategyName    string              `json:"strategyName"`
	Description     string              `json:"description"`
	Tags            []string            `json:"tags"`
	ScheduledEvents []rawScheduledEvent `json:"scheduledEvents"`
}

type rawPlans struct {
	Plans []rawPlan `json:"plans"`
}

// GeneratePlans asks the model for plan.PlanCount strategies. Shape errors
// wrap plan.ErrMalformedResponse; count and uniqueness are checked by
// plan.ToGeneratedPlans.
func (c *Client) GeneratePlans(ctx context.Context, req plan.Request) ([]plan.Candidate, error) {
	prompt, err := planningPrompt(req)
	if err != nil {
		return nil, err
	}
	text, err := c.generate(ctx, []part{{Text: prompt}}, multiPlanSchema)
	if err != nil {
		return nil, err
	}

	var raw rawPlans
	if err := json.Unmarshal(text, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrMalformedResponse, err)
	}
	if raw.Plans == nil {
		return nil, fmt.Errorf("%w: missing plans array", plan.ErrMalformedResponse)
	}

	out := make([]plan.Candidate, 0, len(raw.Plans))
	for i, rp := range raw.Plans {
		cand := plan.Candidate{
			StrategyName:    rp.StrategyName,
			Description:     rp.Description,
			Tags:            rp.Tags,
			ScheduledEvents: make([]plan.ScheduledEvent, 0, len(rp.ScheduledEvents)),
		}
		for j, se := range rp.ScheduledEvents {
			start, err := parseTime(se.Start, c.Location)
			if err != nil {
				return nil, fmt.Errorf("%w: plan %d event %d start: %v", plan.ErrMalformedResponse, i, j, err)
			}
			end, err := parseTime(se.End, c.Location)
			if err != nil {
				return nil, fmt.Errorf("%w: plan %d event %d end: %v", plan.ErrMalformedResponse, i, j, err)
			}
			cand.ScheduledEvents = append(cand.ScheduledEvents, plan.ScheduledEvent{
				TaskID:    se.TaskID,
				Start:     start,
				End:       end,
				Title:     se.Title,
				Reasoning: se.Reasoning,
			})
		}
		out = append(out, cand)
	}
	appLog.Info("gemini plans generated", "plans", len(out), "tasks", len(req.Tasks))
	return out, nil
}

type rawParsedEvent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsRecurring bool   `json:"isRecurring"`
}

type rawImport struct {
	Events  []rawParsedEvent `json:"events"`
	Summary string           `json:"summary"`
}

// ParseDocument sends the document inline and extracts its events.
func (c *Client) ParseDocument(ctx context.Context, data []byte, mediaType string) (plan.ParsedDocument, error) {
	if len(data) == 0 {
		return plan.ParsedDocument{}, errors.New("gemini: empty document")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	parts := []part{
		{InlineData: &inlineData{MimeType: mediaType, Data: base64.StdEncoding.EncodeToString(data)}},
		{Text: importPrompt(now().Year())},
	}
	text, err := c.generate(ctx, parts, importSchema)
	if err != nil {
		return plan.ParsedDocument{}, err
	}

	var raw rawImport
	if err := json.Unmarshal(text, &raw); err != nil {
		return plan.ParsedDocument{}, fmt.Errorf("%w: %v", plan.ErrMalformedResponse, err)
	}

	doc := plan.ParsedDocument{Summary: raw.Summary, Events: make([]plan.ParsedEvent, 0, len(raw.Events))}
	for i, re := range raw.Events {
		start, err := parseTime(re.Start, c.Location)
		if err != nil {
			return plan.ParsedDocument{}, fmt.Errorf("%w: event %d start: %v", plan.ErrMalformedResponse, i, err)
		}
		end, err := parseTime(re.End, c.Location)
		if err != nil {
			return plan.ParsedDocument{}, fmt.Errorf("%w: event %d end: %v", plan.ErrMalformedResponse, i, err)
		}
		doc.Events = append(doc.Events, plan.ParsedEvent{
			Title:       re.Title,
			Description: re.Description,
			Start:       start,
			End:         end,
			IsRecurring: re.IsRecurring,
		})
	}
	if doc.Summary == "" {
		doc.Summary = fmt.Sprintf("Imported %d events.", len(doc.Events))
	}
	appLog.Info("gemini document parsed", "media_type", mediaType, "events", len(doc.Events))
	return doc, nil
}

var timeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime accepts ISO 8601 timestamps with or without an offset. Values
// without one are read in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
