package narrative

import (
	"strings"

	"chickmaster/internal/event"
	"chickmaster/internal/metric"
	"chickmaster/internal/story"
)

// MetricChange is the net effect of a turn on one metric. Multiplier
// changes carry the combined factor minus one.
type MetricChange struct {
	Metric       metric.Metric `json:"metric"`
	Value        float64       `json:"value"`
	IsMultiplier bool          `json:"is_multiplier"`
}

// Aggregate sums additive changes per metric and composes multipliers,
// returning additive entries before multiplier entries in metric order.
func Aggregate(changes []MetricChange) []MetricChange {
	add := make(map[metric.Metric]float64)
	mul := make(map[metric.Metric]float64)
	for _, c := range changes {
		if c.IsMultiplier {
			f, ok := mul[c.Metric]
			if !ok {
				f = 1
			}
			mul[c.Metric] = f * (1 + c.Value)
			continue
		}
		add[c.Metric] += c.Value
	}

	var out []MetricChange
	for _, m := range metric.All() {
		if v, ok := add[m]; ok {
			out = append(out, MetricChange{Metric: m, Value: v})
		}
		if f, ok := mul[m]; ok {
			out = append(out, MetricChange{Metric: m, Value: f - 1, IsMultiplier: true})
		}
	}
	return out
}

type SuggestedEvent struct {
	EventID     string         `json:"event_id"`
	Name        event.Text     `json:"name"`
	Severity    event.Severity `json:"severity"`
	Probability float64        `json:"probability"`
	Tags        []string       `json:"tags,omitempty"`
}

type PatternRef struct {
	ID       string         `json:"id"`
	Name     event.Text     `json:"name"`
	Category story.Category `json:"category"`
	Severity float64        `json:"severity"`
	Level    string         `json:"level"`
}

// Response is the narrative output of one turn.
type Response struct {
	Narrative      event.Text      `json:"narrative"`
	SuggestedEvent *SuggestedEvent `json:"suggested_event,omitempty"`
	StoryPattern   *PatternRef     `json:"story_pattern,omitempty"`
	MetricChanges  []MetricChange  `json:"metric_changes"`
	Severity       float64         `json:"severity"`
	Level          string          `json:"level"`
}

func (r Response) Text(lang string) string { return r.Narrative.Get(lang) }

// Fired is one event, or chosen option, that took effect this turn.
type Fired struct {
	ID       string
	Severity event.Severity
	Effects  []event.Effect
}

var quietDay = event.Text{
	"ko": "오늘은 별일 없이 지나갔습니다.",
	"en": "The day passed without incident.",
}

// Builder composes responses. Levels classifies a [0,1] severity.
type Builder struct {
	Levels    func(float64) string
	Languages []string
}

func (b Builder) languages() []string {
	if len(b.Languages) == 0 {
		return []string{"ko", "en"}
	}
	return b.Languages
}

func (b Builder) Build(fired []Fired, hit *story.Hit, suggested *SuggestedEvent) Response {
	var changes []MetricChange
	parts := make(map[string][]string)
	langs := b.languages()
	severity := 0.0

	for _, f := range fired {
		if w := f.Severity.Weight(); w > severity {
			severity = w
		}
		for _, eff := range f.Effects {
			if v, mult, err := eff.Change(); err == nil {
				changes = append(changes, MetricChange{Metric: eff.Metric, Value: v, IsMultiplier: mult})
			}
			for _, lang := range langs {
				if msg, ok := eff.Message[lang]; ok && msg != "" {
					parts[lang] = append(parts[lang], msg)
				}
			}
		}
	}

	r := Response{SuggestedEvent: suggested}
	if hit != nil {
		p := hit.Pattern
		if p.Severity > severity {
			severity = p.Severity
		}
		for _, pe := range p.Effects {
			if v, mult, err := pe.Effect().Change(); err == nil {
				changes = append(changes, MetricChange{Metric: pe.Metric, Value: v, IsMultiplier: mult})
			}
		}
		for _, lang := range langs {
			if d := p.Description.Get(lang); d != "" {
				parts[lang] = append(parts[lang], d)
			}
		}
		r.StoryPattern = &PatternRef{ID: p.ID, Name: p.Name.Clone(), Category: p.Category, Severity: p.Severity, Level: hit.Level}
	}

	r.Narrative = make(event.Text, len(langs))
	for _, lang := range langs {
		if len(parts[lang]) == 0 {
			r.Narrative[lang] = quietDay.Get(lang)
			continue
		}
		r.Narrative[lang] = strings.Join(parts[lang], " ")
	}
	r.MetricChanges = Aggregate(changes)
	if r.MetricChanges == nil {
		r.MetricChanges = []MetricChange{}
	}
	r.Severity = severity
	if b.Levels != nil {
		r.Level = b.Levels(severity)
	}
	return r
}
