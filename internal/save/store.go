// Package save persists runs in named slots.
package save

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"chickmaster/internal/game"
)

var (
	ErrNotFound    = errors.New("save slot not found")
	ErrInvalidSlot = errors.New("invalid save slot name")
)

var slotRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Record is one saved run. Digest identifies the content catalog the run
// was played against.
type Record struct {
	Slot    string        `json:"slot"`
	RunID   string        `json:"run_id"`
	Digest  string        `json:"catalog_digest,omitempty"`
	Day     int           `json:"day"`
	SavedAt time.Time     `json:"saved_at"`
	Blob    game.SaveBlob `json:"blob"`
}

// NewRecord captures s into slot under a fresh run id.
func NewRecord(slot string, s game.State, digest string) Record {
	return Record{
		Slot:    slot,
		RunID:   uuid.NewString(),
		Digest:  digest,
		Day:     s.CurrentDay(),
		SavedAt: s.LastUpdated(),
		Blob:    game.BlobOf(s),
	}
}

type Store interface {
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, slot string) (Record, error)
	// List returns every record sorted by slot.
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, slot string) error
}

func checkSlot(slot string) error {
	if !slotRe.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

// prepare validates r and fills a missing run id.
func prepare(r Record) (Record, error) {
	if err := checkSlot(r.Slot); err != nil {
		return Record{}, err
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	} else if _, err := uuid.Parse(r.RunID); err != nil {
		return Record{}, fmt.Errorf("save %s: run id: %w", r.Slot, err)
	}
	return r, nil
}

// clone deep-copies r through the blob's wire form.
func clone(r Record) (Record, error) {
	raw, err := r.Blob.Encode()
	if err != nil {
		return Record{}, err
	}
	b, err := game.DecodeSaveBlob(raw)
	if err != nil {
		return Record{}, err
	}
	r.Blob = b
	return r, nil
}
