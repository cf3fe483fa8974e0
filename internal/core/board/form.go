package board

import "github.com/samirrijal/baenkli/internal/core/domain"

// State is the create/edit form state.
type State int

const (
	Idle State = iota
	PositionPicked
	FormOpen
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PositionPicked:
		return "position_picked"
	case FormOpen:
		return "form_open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Form is the create/edit form. EditID is empty while creating.
type Form struct {
	Position            *domain.GeoPoint
	AmbienteRating      int
	ViewRating          int
	AccessibilityRating int
	Fireplace           bool
	Photo1              *Photo
	Photo2              *Photo
	Description         string
	EditID              string
}

func defaultForm() Form {
	return Form{
		AmbienteRating:      domain.DefaultRating,
		ViewRating:          domain.DefaultRating,
		AccessibilityRating: domain.DefaultRating,
	}
}

// IsDefault reports whether every field holds its default value.
func (f Form) IsDefault() bool {
	return f.Position == nil &&
		f.AmbienteRating == domain.DefaultRating &&
		f.ViewRating == domain.DefaultRating &&
		f.AccessibilityRating == domain.DefaultRating &&
		!f.Fireplace &&
		f.Photo1 == nil && f.Photo2 == nil &&
		f.Description == "" &&
		f.EditID == ""
}

func (f Form) clone() Form {
	if f.Position != nil {
		p := *f.Position
		f.Position = &p
	}
	return f
}

func (f Form) pending() domain.PendingBench {
	p := domain.PendingBench{
		AmbienteRating:      f.AmbienteRating,
		ViewRating:          f.ViewRating,
		AccessibilityRating: f.AccessibilityRating,
		Fireplace:           f.Fireplace,
		Photo1:              f.Photo1.file(),
		Photo2:              f.Photo2.file(),
		Description:         f.Description,
	}
	if f.Position != nil {
		p.Position = *f.Position
	}
	return p
}
