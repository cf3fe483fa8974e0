// Package board holds the per-session state of the bench map: the cached
// bench collection, the create/edit form, the active filter and the user's
// location marker.
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/core/ports"
)

const (
	DeletePrompt      = "Bänkli löschen?"
	NoticeUnsupported = "Standortbestimmung nicht unterstützt"
	NoticeUnavailable = "Standort konnte nicht ermittelt werden."
)

var (
	// ErrInvalidTransition is returned for actions the current form state does not allow.
	ErrInvalidTransition = errors.New("action not allowed in current form state")
	// ErrBusy is returned for form actions while a submit is still in flight.
	ErrBusy = errors.New("a submission is already in progress")
)

// Backend is the bench store the board talks to.
type Backend interface {
	List(ctx context.Context) ([]domain.Bench, error)
	Create(ctx context.Context, p domain.PendingBench) (*domain.Bench, error)
	Update(ctx context.Context, id string, p domain.PendingBench) (*domain.Bench, error)
	Delete(ctx context.Context, id string, photoURL1, photoURL2 *string) error
}

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(prompt string) bool

// Board is safe for concurrent use. It never holds its lock across backend calls.
type Board struct {
	backend Backend
	logger  *slog.Logger

	mu         sync.Mutex
	benches    []domain.Bench
	state      State
	form       Form
	filter     domain.Filter
	user       *domain.GeoPoint
	view       domain.MapView
	notice     string
	submitting bool

	// refreshSeq numbers started fetches, appliedSeq the newest one whose
	// result is in benches.
	refreshSeq uint64
	appliedSeq uint64
}

// New returns an idle board with an empty collection.
func New(backend Backend, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		backend: backend,
		logger:  logger,
		form:    defaultForm(),
		view:    domain.DefaultMapView,
	}
}

// Refresh replaces the cached collection with a fresh fetch. On failure the
// previous collection stays in place. A fetch that finishes after a later
// started one has already been applied is dropped.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	b.refreshSeq++
	seq := b.refreshSeq
	b.mu.Unlock()

	benches, err := b.backend.List(ctx)
	if err != nil {
		b.logger.WarnContext(ctx, "bench refresh failed, keeping cached collection", "error", err)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq < b.appliedSeq {
		b.logger.DebugContext(ctx, "dropping superseded bench refresh", "seq", seq, "applied", b.appliedSeq)
		return nil
	}
	b.benches = benches
	b.appliedSeq = seq
	return nil
}

// Benches returns the whole cached collection.
func (b *Board) Benches() []domain.Bench {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Bench(nil), b.benches...)
}

// Visible returns the cached benches passing the active filter.
func (b *Board) Visible() []domain.Bench {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter.Apply(append([]domain.Bench(nil), b.benches...))
}

// SetFilter replaces the active filter.
func (b *Board) SetFilter(f domain.Filter) {
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
}

// ResetFilter clears all four filters.
func (b *Board) ResetFilter() {
	b.SetFilter(domain.Filter{})
}

// Filter returns the active filter.
func (b *Board) Filter() domain.Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// State returns the current form state.
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Form returns a copy of the form fields.
func (b *Board) Form() Form {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.form.clone()
}

// PickPosition records a map click. The form is hidden until the position is
// confirmed. A pending edit keeps its id, so submitting relocates that bench.
func (b *Board) PickPosition(p domain.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitting {
		return ErrBusy
	}
	b.form.Position = &p
	b.state = PositionPicked
	return nil
}

// ConfirmPosition opens the form for the picked position.
func (b *Board) ConfirmPosition() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitting {
		return ErrBusy
	}
	if b.state != PositionPicked || b.form.Position == nil {
		return fmt.Errorf("confirm position in state %s: %w", b.state, ErrInvalidTransition)
	}
	b.state = FormOpen
	return nil
}

// StartEditing opens the form pre-populated with the cached bench id.
func (b *Board) StartEditing(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitting {
		return ErrBusy
	}
	bench, ok := b.findLocked(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, domain.ErrBenchNotFound)
	}
	pos := bench.Position()
	b.form = Form{
		Position:            &pos,
		AmbienteRating:      bench.AmbienteRating,
		ViewRating:          bench.ViewRating,
		AccessibilityRating: bench.AccessibilityRating,
		Fireplace:           bench.Fireplace,
		Description:         bench.Description,
		EditID:              bench.ID,
	}
	b.state = FormOpen
	return nil
}

func (b *Board) SetAmbiente(v int) error {
	return b.setRating("ambiente_rating", v, func(f *Form) { f.AmbienteRating = v })
}

func (b *Board) SetView(v int) error {
	return b.setRating("view_rating", v, func(f *Form) { f.ViewRating = v })
}

func (b *Board) SetAccessibility(v int) error {
	return b.setRating("accessibility_rating", v, func(f *Form) { f.AccessibilityRating = v })
}

func (b *Board) setRating(field string, v int, apply func(*Form)) error {
	if err := domain.ValidateRating(field, v); err != nil {
		return err
	}
	return b.editForm(func(f *Form) error {
		apply(f)
		return nil
	})
}

func (b *Board) SetFireplace(v bool) error {
	return b.editForm(func(f *Form) error {
		f.Fireplace = v
		return nil
	})
}

func (b *Board) SetDescription(s string) error {
	if err := domain.ValidateDescription(s); err != nil {
		return err
	}
	return b.editForm(func(f *Form) error {
		f.Description = s
		return nil
	})
}

// SetPhoto selects a file for slot 1 or 2. A nil photo clears the slot.
func (b *Board) SetPhoto(slot int, p *Photo) error {
	return b.editForm(func(f *Form) error {
		switch slot {
		case 1:
			f.Photo1 = p
		case 2:
			f.Photo2 = p
		default:
			return &domain.ValidationError{Field: "slot", Message: fmt.Sprintf("must be 1 or 2, got %d", slot)}
		}
		return nil
	})
}

func (b *Board) editForm(fn func(*Form) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.submitting {
		return ErrBusy
	}
	if b.state != FormOpen {
		return fmt.Errorf("edit form in state %s: %w", b.state, ErrInvalidTransition)
	}
	return fn(&b.form)
}

// Submit creates a bench, or updates the one being edited. On success the
// form is reset; on failure it is kept for a retry. The collection is
// refreshed either way. Form actions fail with ErrBusy until it returns.
func (b *Board) Submit(ctx context.Context) (*domain.Bench, error) {
	b.mu.Lock()
	if b.state != FormOpen || b.form.Position == nil {
		state := b.state
		b.mu.Unlock()
		return nil, fmt.Errorf("submit in state %s: %w", state, ErrInvalidTransition)
	}
	if b.submitting {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	pending := b.form.pending()
	editID := b.form.EditID
	b.submitting = true
	b.mu.Unlock()

	var saved *domain.Bench
	var err error
	if editID == "" {
		saved, err = b.backend.Create(ctx, pending)
	} else {
		saved, err = b.backend.Update(ctx, editID, pending)
	}

	b.mu.Lock()
	b.submitting = false
	if err == nil {
		b.resetLocked()
	}
	b.mu.Unlock()

	_ = b.Refresh(ctx)

	if err != nil {
		b.logger.WarnContext(ctx, "bench submit failed", "edit_id", editID, "error", err)
		return nil, fmt.Errorf("submit bench: %w", err)
	}
	return saved, nil
}

// Cancel abandons the form.
func (b *Board) Cancel() {
	b.Reset()
}

// Reset restores every form field to its default and returns to Idle.
func (b *Board) Reset() {
	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()
}

func (b *Board) resetLocked() {
	b.form = defaultForm()
	b.state = Idle
}

// Delete asks confirm with DeletePrompt and, when accepted, deletes the
// cached bench id together with its photos. It reports whether a delete was
// attempted and succeeded.
func (b *Board) Delete(ctx context.Context, id string, confirm ConfirmFunc) (bool, error) {
	if confirm == nil || !confirm(DeletePrompt) {
		return false, nil
	}

	b.mu.Lock()
	bench, ok := b.findLocked(id)
	b.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("delete %s: %w", id, domain.ErrBenchNotFound)
	}

	err := b.backend.Delete(ctx, bench.ID, bench.PhotoURL1, bench.PhotoURL2)

	if err == nil {
		b.mu.Lock()
		if b.form.EditID == id {
			b.resetLocked()
		}
		b.mu.Unlock()
	}

	_ = b.Refresh(ctx)

	if err != nil {
		b.logger.WarnContext(ctx, "bench delete failed", "bench_id", id, "error", err)
		return false, fmt.Errorf("delete bench: %w", err)
	}
	return true, nil
}

// Locate asks loc for the device position and moves the map there. Failures
// only set a notice.
func (b *Board) Locate(ctx context.Context, loc ports.Locator) error {
	if loc == nil {
		b.setNotice(NoticeUnsupported)
		return domain.ErrGeolocationUnsupported
	}
	p, err := loc.CurrentPosition(ctx)
	if err == nil {
		err = p.Validate()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.user = &p
		b.view = domain.MapView{Center: p, Zoom: domain.LocatedZoom}
		b.notice = ""
	case errors.Is(err, domain.ErrGeolocationUnsupported):
		b.notice = NoticeUnsupported
	default:
		b.notice = NoticeUnavailable
	}
	return err
}

func (b *Board) setNotice(n string) {
	b.mu.Lock()
	b.notice = n
	b.mu.Unlock()
}

// DismissNotice clears the current notice.
func (b *Board) DismissNotice() {
	b.setNotice("")
}

// UserLocation returns the last known user position, if any.
func (b *Board) UserLocation() *domain.GeoPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.user == nil {
		return nil
	}
	p := *b.user
	return &p
}

func (b *Board) findLocked(id string) (domain.Bench, bool) {
	for _, bench := range b.benches {
		if bench.ID == id {
			return bench, true
		}
	}
	return domain.Bench{}, false
}

// Photo is a selected image kept in memory so a failed submit can be retried.
type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

func (p *Photo) file() *domain.PhotoFile {
	if p == nil {
		return nil
	}
	return &domain.PhotoFile{
		Name:        p.Name,
		ContentType: p.ContentType,
		Size:        int64(len(p.Data)),
		Body:        bytes.NewReader(p.Data),
	}
}
