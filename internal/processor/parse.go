package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// rawTicket is the ticket shape the model is asked to emit.
type rawTicket struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	ExpectedWorkHours float64 `json:"expectedWorkHours"`
	Seniority         string  `json:"seniority"`
	Role              string  `json:"role"`
}

// parseTickets decodes model output into raw tickets. Markdown fences are
// stripped and comments or trailing commas are tolerated; anything else
// that is not a JSON ticket array, or an object with a "tickets" array,
// fails.
func parseTickets(content string) ([]rawTicket, error) {
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}
	data := bytes.TrimSpace(jsonc.ToJSON([]byte(cleaned)))

	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Tickets *[]rawTicket `json:"tickets"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnparsable, err)
		}
		if wrapped.Tickets == nil {
			return nil, fmt.Errorf("%w: object without tickets array", ErrUnparsable)
		}
		return *wrapped.Tickets, nil
	}

	var out []rawTicket
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparsable, err)
	}
	return out, nil
}

// stripMarkdown removes the ```json ... ``` fence some models wrap their
// output in.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
