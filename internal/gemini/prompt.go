package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"planningsprite/internal/plan"
)

// schema is the OpenAPI subset accepted as responseSchema.
type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

func str(desc string) *schema { return &schema{Type: "STRING", Description: desc} }

var importSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"events": {
			Type: "ARRAY",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"title":       str(""),
					"description": str(""),
					"start":       str("ISO 8601 date string"),
					"end":         str("ISO 8601 date string"),
					"isRecurring": {Type: "BOOLEAN"},
				},
				Required: []string{"title", "start", "end"},
			},
		},
		"summary": str(""),
	},
}

var multiPlanSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"plans": {
			Type:        "ARRAY",
			Description: "Exactly 3 distinct planning strategies",
			Items: &schema{
				Type: "OBJECT",
				Properties: map[string]*schema{
					"strategyName": str("Name of the strategy (e.g., Interleaved)"),
					"description":  str("Explanation of why this strategy helps"),
					"tags":         {Type: "ARRAY", Items: str("")},
					"scheduledEvents": {
						Type: "ARRAY",
						Items: &schema{
							Type: "OBJECT",
							Properties: map[string]*schema{
								"taskId":    str(""),
								"start":     str("ISO 8601 date string"),
								"end":       str("ISO 8601 date string"),
								"title":     str(""),
								"reasoning": str(""),
							},
							Required: []string{"start", "end", "title"},
						},
					},
				},
				Required: []string{"strategyName", "scheduledEvents"},
			},
		},
	},
}

func importPrompt(year int) string {
	return fmt.Sprintf(`You are a schedule parsing assistant.
Analyze the attached document (calendar PDF, spreadsheet export or image) and extract every planned event.
If the year is missing, assume %d.
Return each event with exact ISO 8601 start and end times. If no time zone is given, use local time.
Mark events that repeat as isRecurring.
Put a one-sentence import summary in "summary".`, year)
}

// windowLines renders one whitelist line per date.
func windowLines(dcs []plan.DateConstraint) string {
	var sb strings.Builder
	for _, dc := range dcs {
		if dc.Forbidden || len(dc.Allowed) == 0 {
			fmt.Fprintf(&sb, "- %s (%s): FORBIDDEN all day\n", dc.Date, dc.Weekday)
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s): only within [%s], at most %.1f hours\n",
			dc.Date, dc.Weekday, strings.Join(dc.Allowed, ", "), dc.MaxHours)
	}
	return sb.String()
}

func planningPrompt(req plan.Request) (string, error) {
	tasksJSON, err := json.Marshal(req.Tasks)
	if err != nil {
		return "", err
	}
	eventsJSON, err := json.Marshal(req.Events)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are "Planning Sprite", an expert study planner.
Produce THREE clearly different scheduling strategies for the user's tasks.

Step 1: analyze the tasks. Identify subjects, cognitive load (memorization, concepts, practice) and chapter order.

Step 2: produce these strategies, each with a complete schedule:
1. Interleaved Scheduling: alternate tasks of different subjects.
2. Sequential Focus: keep tasks of one subject together, finish a topic before switching.
3. Cognitive Load Aware: put demanding tasks in the earliest available slots of each day and lighter review later, weighting deadlines.

Hard rules for every strategy:
1. Never place work outside the allowed windows below.
2. Never overlap an existing calendar event.
3. Every event needs explicit ISO 8601 start and end times.
4. Set taskId to the id of the task the event works on.

Reference date: %s

Allowed windows:
%s
Tasks to schedule:
%s

Existing events (avoid these times):
%s

Return JSON with a "plans" array holding exactly %d strategy objects with distinct strategyName values.`,
		req.ReferenceDate, windowLines(req.Constraints), tasksJSON, eventsJSON, plan.PlanCount), nil
}
