package board

import "github.com/samirrijal/baenkli/internal/core/domain"

// View is a serialisable snapshot of the board.
type View struct {
	State        State            `json:"state"`
	Form         FormView         `json:"form"`
	Benches      []domain.Bench   `json:"benches"`
	Total        int              `json:"total"`
	Filter       domain.Filter    `json:"filter"`
	UserLocation *domain.GeoPoint `json:"user_location,omitempty"`
	Map          domain.MapView   `json:"map"`
	Notice       string           `json:"notice,omitempty"`
	Submitting   bool             `json:"submitting"`
}

// FormView is the form without photo contents.
type FormView struct {
	Visible             bool             `json:"visible"`
	Position            *domain.GeoPoint `json:"position,omitempty"`
	AmbienteRating      int              `json:"ambiente_rating"`
	ViewRating          int              `json:"view_rating"`
	AccessibilityRating int              `json:"accessibility_rating"`
	Fireplace           bool             `json:"fireplace"`
	Photo1              string           `json:"photo1,omitempty"`
	Photo2              string           `json:"photo2,omitempty"`
	Description         string           `json:"description"`
	EditID              string           `json:"edit_id,omitempty"`
}

// Snapshot captures the board for rendering.
func (b *Board) Snapshot() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := b.form.clone()
	v := View{
		State: b.state,
		Form: FormView{
			Visible:             b.state == FormOpen,
			Position:            f.Position,
			AmbienteRating:      f.AmbienteRating,
			ViewRating:          f.ViewRating,
			AccessibilityRating: f.AccessibilityRating,
			Fireplace:           f.Fireplace,
			Description:         f.Description,
			EditID:              f.EditID,
		},
		Benches:    b.filter.Apply(append([]domain.Bench(nil), b.benches...)),
		Total:      len(b.benches),
		Filter:     b.filter,
		Map:        b.view,
		Notice:     b.notice,
		Submitting: b.submitting,
	}
	if f.Photo1 != nil {
		v.Form.Photo1 = f.Photo1.Name
	}
	if f.Photo2 != nil {
		v.Form.Photo2 = f.Photo2.Name
	}
	if b.user != nil {
		p := *b.user
		v.UserLocation = &p
	}
	if v.Benches == nil {
		v.Benches = []domain.Bench{}
	}
	return v
}
