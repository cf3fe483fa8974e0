package domain

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

const (
	// DefaultRating is the value every rating starts from in a new form.
	DefaultRating = 3
	MinRating     = 1
	MaxRating     = 5

	// MaxDescriptionLength is counted in characters, not bytes.
	MaxDescriptionLength = 150
)

// Bench is a stored public bench.
type Bench struct {
	ID                  string    `json:"id"`
	Lat                 float64   `json:"lat"`
	Lng                 float64   `json:"lng"`
	AmbienteRating      int       `json:"ambiente_rating"`
	ViewRating          int       `json:"view_rating"`
	AccessibilityRating int       `json:"accessibility_rating"`
	Fireplace           bool      `json:"fireplace"`
	PhotoURL1           *string   `json:"photo_url"`
	PhotoURL2           *string   `json:"photo_url_2"`
	Description         string    `json:"description"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Distance            *float64  `json:"distance,omitempty"` // meters, set by nearby queries
}

// Position returns the bench location.
func (b Bench) Position() GeoPoint {
	return GeoPoint{Lat: b.Lat, Lng: b.Lng}
}

// PhotoURLs returns the non-nil photo URLs in slot order.
func (b Bench) PhotoURLs() []string {
	var urls []string
	for _, u := range []*string{b.PhotoURL1, b.PhotoURL2} {
		if u != nil && *u != "" {
			urls = append(urls, *u)
		}
	}
	return urls
}

// Validate checks a stored or imported bench against the same invariants as
// the form payload.
func (b Bench) Validate() error {
	return PendingBench{
		Position:            b.Position(),
		AmbienteRating:      b.AmbienteRating,
		ViewRating:          b.ViewRating,
		AccessibilityRating: b.AccessibilityRating,
		Description:         b.Description,
	}.Validate()
}

// PhotoFile is a user-selected image waiting to be uploaded.
type PhotoFile struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// PendingBench is the payload of the create/edit form.
type PendingBench struct {
	Position            GeoPoint
	AmbienteRating      int
	ViewRating          int
	AccessibilityRating int
	Fireplace           bool
	Photo1              *PhotoFile
	Photo2              *PhotoFile
	Description         string
}

// NewPendingBench returns a form payload with default field values.
func NewPendingBench(pos GeoPoint) PendingBench {
	return PendingBench{
		Position:            pos,
		AmbienteRating:      DefaultRating,
		ViewRating:          DefaultRating,
		AccessibilityRating: DefaultRating,
	}
}

// Validate reports the first field that violates the bench invariants.
func (p PendingBench) Validate() error {
	if err := p.Position.Validate(); err != nil {
		return err
	}
	if err := ValidateRating("ambiente_rating", p.AmbienteRating); err != nil {
		return err
	}
	if err := ValidateRating("view_rating", p.ViewRating); err != nil {
		return err
	}
	if err := ValidateRating("accessibility_rating", p.AccessibilityRating); err != nil {
		return err
	}
	return ValidateDescription(p.Description)
}

// ValidateRating checks that v lies within [MinRating, MaxRating].
func ValidateRating(field string, v int) error {
	if v < MinRating || v > MaxRating {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d, got %d", MinRating, MaxRating, v)}
	}
	return nil
}

// ValidateDescription checks the description length in characters.
func ValidateDescription(s string) error {
	if n := utf8.RuneCountInString(s); n > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters, got %d", MaxDescriptionLength, n)}
	}
	return nil
}

// BenchEventType names a mutation kind.
type BenchEventType string

const (
	BenchCreated  BenchEventType = "created"
	BenchUpdated  BenchEventType = "updated"
	BenchDeleted  BenchEventType = "deleted"
	BenchImported BenchEventType = "imported"
)

// BenchEvent is published after every successful mutation.
type BenchEvent struct {
	Type    BenchEventType `json:"type"`
	BenchID string         `json:"bench_id,omitempty"`
	Count   int            `json:"count,omitempty"`
	At      time.Time      `json:"at"`
}

// StoredObject describes an object in the photo bucket.
type StoredObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
