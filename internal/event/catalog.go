package event

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"chickmaster/internal/metric"
)

//go:embed event.schema.json
var eventSchema string

// Catalog is a validated set of events, sorted by id.
type Catalog struct {
	Events []Event
	Digest string
}

func (c Catalog) ByID(id string) (Event, bool) {
	i := sort.Search(len(c.Events), func(i int) bool { return c.Events[i].ID >= id })
	if i < len(c.Events) && c.Events[i].ID == id {
		return c.Events[i], true
	}
	return Event{}, false
}

// Loader decodes authored event JSON into canonical events.
type Loader struct {
	// DefaultCooldown fills cooldown_days when an event omits it.
	DefaultCooldown int
	schema          *jsonschema.Schema
}

func NewLoader(defaultCooldown int) (*Loader, error) {
	s, err := jsonschema.CompileString("event.schema.json", eventSchema)
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	return &Loader{DefaultCooldown: defaultCooldown, schema: s}, nil
}

// LoadDir reads every *.json file under dir.
func (l *Loader) LoadDir(dir string) (Catalog, error) {
	if _, err := os.Stat(dir); err != nil {
		return Catalog{}, err
	}
	return l.LoadFS(os.DirFS(dir), ".")
}

// LoadFS reads every *.json file under root in fsys, in path order.
func (l *Loader) LoadFS(fsys fs.FS, root string) (Catalog, error) {
	var files []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Catalog{}, err
	}
	sort.Strings(files)

	var concat bytes.Buffer
	byID := make(map[string]Event)
	for _, p := range files {
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return Catalog{}, err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		evs, err := l.Decode(b)
		if err != nil {
			return Catalog{}, fmt.Errorf("events %s: %w", path.Base(p), err)
		}
		for _, ev := range evs {
			if _, dup := byID[ev.ID]; dup {
				return Catalog{}, fmt.Errorf("events %s: duplicate id %s", path.Base(p), ev.ID)
			}
			byID[ev.ID] = ev
		}
	}
	return newCatalog(byID, concat.Bytes()), nil
}

func newCatalog(byID map[string]Event, raw []byte) Catalog {
	c := Catalog{Events: make([]Event, 0, len(byID))}
	for _, ev := range byID {
		c.Events = append(c.Events, ev)
	}
	sort.Slice(c.Events, func(i, j int) bool { return c.Events[i].ID < c.Events[j].ID })
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c
}

// Decode validates one authored file (either {"events": [...]} or a single
// event object) and returns its events in file order.
func (l *Loader) Decode(raw []byte) ([]Event, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := l.schema.Validate(doc); err != nil {
		return nil, err
	}

	var file struct {
		Events []authoredEvent `json:"events"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Events == nil {
		var single authoredEvent
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		file.Events = []authoredEvent{single}
	}

	out := make([]Event, 0, len(file.Events))
	for _, a := range file.Events {
		ev, err := l.normalize(a)
		if err != nil {
			return nil, err
		}
		if err := ev.Validate(); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

type authoredEvent struct {
	ID            string           `json:"id"`
	Type          Type             `json:"type"`
	Names         Text             `json:"names"`
	Descriptions  Text             `json:"descriptions"`
	Severity      Severity         `json:"severity"`
	Probability   *float64         `json:"probability"`
	Conditions    []string         `json:"conditions"`
	Triggers      []Trigger        `json:"triggers"`
	Trigger       *Trigger         `json:"trigger"`
	Effects       []authoredEffect `json:"effects"`
	Choices       []authoredChoice `json:"choices"`
	CascadeEvents []authoredEvent  `json:"cascade_events"`
	CooldownDays  *int             `json:"cooldown_days"`
	Tags          []string         `json:"tags"`
}

type authoredChoice struct {
	ID            string           `json:"id"`
	Text          Text             `json:"text"`
	TextKO        string           `json:"text_ko"`
	TextEN        string           `json:"text_en"`
	Effects       []authoredEffect `json:"effects"`
	CascadeEvents []authoredEvent  `json:"cascade_events"`
}

type authoredEffect struct {
	Metric       string             `json:"metric"`
	Value        float64            `json:"value"`
	IsMultiplier bool               `json:"is_multiplier"`
	IsPercentage bool               `json:"is_percentage"`
	Formula      string             `json:"formula"`
	Message      Text               `json:"message"`
	MessageKO    string             `json:"message_ko"`
	MessageEN    string             `json:"message_en"`
	Immediate    map[string]float64 `json:"immediate"`
	Delayed      map[string]float64 `json:"delayed"`
}

func (l *Loader) normalize(a authoredEvent) (Event, error) {
	ev := Event{
		ID:          a.ID,
		Type:        a.Type,
		Name:        a.Names,
		Description: a.Descriptions,
		Severity:    a.Severity,
		Probability: 1.0,
		Tags:        a.Tags,
	}
	if a.Probability != nil {
		ev.Probability = *a.Probability
	}
	ev.CooldownDays = l.DefaultCooldown
	if a.CooldownDays != nil {
		ev.CooldownDays = *a.CooldownDays
	}

	for _, t := range a.Triggers {
		t.Metric = subject(t.Metric)
		ev.Triggers = append(ev.Triggers, t)
	}
	for _, c := range a.Conditions {
		ev.Triggers = append(ev.Triggers, TriggerFor(c, a.ID))
	}
	if a.Trigger != nil {
		t := *a.Trigger
		t.Metric = subject(t.Metric)
		ev.Threshold = &t
	}
	if ev.Type == TypeThreshold {
		switch {
		case ev.Threshold == nil && len(a.Conditions) > 0:
			t := TriggerFor(a.Conditions[0], a.ID)
			ev.Threshold = &t
		case ev.Threshold != nil && len(a.Conditions) == 0 && len(a.Triggers) == 0:
			ev.Triggers = append(ev.Triggers, *ev.Threshold)
		}
	}

	var err error
	if ev.Effects, err = normalizeEffects(a.ID, a.Effects); err != nil {
		return Event{}, err
	}

	for _, ac := range a.Choices {
		c := Choice{ID: ac.ID, Text: ac.Text.Clone()}
		if ac.TextKO != "" || ac.TextEN != "" {
			if c.Text == nil {
				c.Text = Text{}
			}
			setIf(c.Text, "ko", ac.TextKO)
			setIf(c.Text, "en", ac.TextEN)
		}
		if c.Effects, err = normalizeEffects(a.ID+"/"+ac.ID, ac.Effects); err != nil {
			return Event{}, err
		}
		for _, child := range ac.CascadeEvents {
			ce, err := l.normalize(child)
			if err != nil {
				return Event{}, err
			}
			c.CascadeEvents = append(c.CascadeEvents, ce)
		}
		ev.Choices = append(ev.Choices, c)
	}

	for _, child := range a.CascadeEvents {
		ce, err := l.normalize(child)
		if err != nil {
			return Event{}, err
		}
		ev.CascadeEvents = append(ev.CascadeEvents, ce)
	}
	return ev, nil
}

func setIf(t Text, lang, s string) {
	if s != "" {
		t[lang] = s
	}
}

func normalizeEffects(owner string, in []authoredEffect) ([]Effect, error) {
	var out []Effect
	for _, a := range in {
		if a.Immediate != nil || a.Delayed != nil {
			out = append(out, legacyEffects(a.Immediate)...)
			out = append(out, legacyEffects(a.Delayed)...)
			continue
		}
		m, err := metric.Parse(a.Metric)
		if err != nil {
			return nil, fmt.Errorf("event %s: effect: %w", owner, err)
		}
		e := Effect{
			Metric:       m,
			Value:        a.Value,
			IsMultiplier: a.IsMultiplier || a.IsPercentage,
			Formula:      a.Formula,
			Message:      a.Message.Clone(),
		}
		if a.MessageKO != "" || a.MessageEN != "" {
			if e.Message == nil {
				e.Message = Text{}
			}
			setIf(e.Message, "ko", a.MessageKO)
			setIf(e.Message, "en", a.MessageEN)
		}
		out = append(out, e)
	}
	return out, nil
}

// legacyEffects expands {"METRIC": n} maps into formula effects with the
// default increase/decrease messages. Unknown metric keys are dropped.
func legacyEffects(kv map[string]float64) []Effect {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Effect, 0, len(keys))
	for _, k := range keys {
		m, err := metric.Parse(k)
		if err != nil {
			slog.Warn("legacy effect dropped", "metric", k, "error", err)
			continue
		}
		v := kv[k]
		ko, en := "증가", "increased"
		if v < 0 {
			ko, en = "감소", "decreased"
		}
		out = append(out, Effect{
			Metric:  m,
			Formula: FormulaFor(v),
			Message: Text{
				"ko": k + "이(가) " + ko + "했습니다.",
				"en": k + " " + en + ".",
			},
		})
	}
	return out
}
