package game

import (
	"encoding/json"
	"fmt"

	"chickmaster/internal/config"
	"chickmaster/internal/metric"
)

// SaveBlob is the persisted shape of a run. Every field is optional;
// unknown keys are ignored on decode.
type SaveBlob struct {
	config.Settings
	EventsHistory []string `json:"events_history,omitempty"`
}

func DecodeSaveBlob(raw []byte) (SaveBlob, error) {
	var b SaveBlob
	if err := json.Unmarshal(raw, &b); err != nil {
		return SaveBlob{}, fmt.Errorf("%w: save blob: %v", config.ErrConfig, err)
	}
	return b, nil
}

// SaveBlobFromMap accepts a loosely typed mapping, e.g. a decoded request body.
func SaveBlobFromMap(m map[string]any) (SaveBlob, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return SaveBlob{}, fmt.Errorf("%w: save blob: %v", config.ErrConfig, err)
	}
	return DecodeSaveBlob(raw)
}

// BlobOf captures every field of s.
func BlobOf(s State) SaveBlob {
	vals := make(map[metric.Metric]*float64, metric.Count)
	for _, m := range metric.All() {
		v := s.Value(m)
		vals[m] = &v
	}
	day := s.CurrentDay()
	return SaveBlob{
		Settings: config.Settings{
			Money:        vals[metric.Money],
			Reputation:   vals[metric.Reputation],
			Happiness:    vals[metric.Happiness],
			Suffering:    vals[metric.Suffering],
			Inventory:    vals[metric.Inventory],
			StaffFatigue: vals[metric.StaffFatigue],
			Facility:     vals[metric.Facility],
			Demand:       vals[metric.Demand],
			CurrentDay:   &day,
		},
		EventsHistory: s.History(),
	}
}

func (b SaveBlob) Encode() ([]byte, error) {
	return json.Marshal(b)
}
