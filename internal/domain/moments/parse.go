package moments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/forPelevin/shortsbot/internal/types"
)

// ErrNoClips is returned when the model answered with valid JSON but no clips.
var ErrNoClips = errors.New("moments: response has no clips")

type response struct {
	Clips []clip `json:"clips"`
}

type clip struct {
	Start       seconds  `json:"start"`
	End         seconds  `json:"end"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Hook        string   `json:"hook"`
	ViralReason string   `json:"viral_reason"`
}

// seconds accepts both 12.5 and "12.5".
type seconds float64

func (s *seconds) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("moments: invalid seconds value %s", string(b))
	}
	*s = seconds(v)
	return nil
}

// Parse decodes the model's answer into moments, keeping the model's order.
// Overlapping or out-of-range moments are returned as is.
func Parse(text string) ([]types.Moment, error) {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}
	var r response
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return nil, fmt.Errorf("moments: decode response: %w", err)
	}
	if len(r.Clips) == 0 {
		return nil, ErrNoClips
	}

	out := make([]types.Moment, 0, len(r.Clips))
	for _, c := range r.Clips {
		out = append(out, types.Moment{
			Start:       float64(c.Start),
			End:         float64(c.End),
			Title:       strings.TrimSpace(c.Title),
			Description: strings.TrimSpace(c.Description),
			Tags:        cleanTags(c.Tags),
			Hook:        strings.TrimSpace(c.Hook),
			ViralReason: strings.TrimSpace(c.ViralReason),
		})
	}
	return out, nil
}

func cleanTags(tags []string) []string {
	return lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimSpace(t)
	}))
}

// ExtractJSONObject strips markdown code fences and any chatter around the
// outermost JSON object.
func ExtractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("moments: empty response")
	}

	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		} else {
			t = strings.TrimPrefix(strings.TrimPrefix(t, "```json"), "```")
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}
	return "", fmt.Errorf("moments: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
