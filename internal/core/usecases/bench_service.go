package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/core/ports"
	"github.com/samirrijal/baenkli/internal/pkg/geospatial"
	"github.com/samirrijal/baenkli/internal/pkg/metrics"
)

const (
	benchListCacheKey = "benches:all"
	benchListTTL      = 300 // seconds

	// benchListGenKey names the current cache generation. The collection is
	// stored under benchListCacheKey + ":" + generation, so a fill computed
	// before a mutation lands under a generation nobody reads any more.
	benchListGenKey = "benches:gen"
	benchListGenTTL = 7 * 24 * 3600 // seconds, must outlive benchListTTL
)

var tracer = otel.Tracer("github.com/samirrijal/baenkli/internal/core/usecases")

// BenchService handles bench business logic: the collection fetch, photo
// uploads and the three mutations.
type BenchService struct {
	benches ports.BenchRepository
	photos  ports.PhotoStore
	cache   ports.CacheService
	events  ports.EventPublisher

	now    func() time.Time
	suffix func() string
}

// NewBenchService creates a new BenchService. cache and events may be nil.
func NewBenchService(benches ports.BenchRepository, photos ports.PhotoStore, cache ports.CacheService, events ports.EventPublisher) *BenchService {
	return &BenchService{
		benches: benches,
		photos:  photos,
		cache:   cache,
		events:  events,
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

// List returns the full bench collection.
func (s *BenchService) List(ctx context.Context) ([]domain.Bench, error) {
	ctx, span := tracer.Start(ctx, "BenchService.List")
	defer span.End()

	var dataKey string
	if s.cache != nil {
		dataKey = benchListKey(s.cacheGeneration(ctx))
		if data, err := s.cache.Get(ctx, dataKey); err == nil {
			var benches []domain.Bench
			if err := json.Unmarshal(data, &benches); err == nil {
				metrics.CacheHits.WithLabelValues("benches_list").Inc()
				return benches, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("benches_list").Inc()
	}

	benches, err := s.benches.List(ctx)
	if err != nil {
		endSpan(span, err)
		return nil, fmt.Errorf("list benches: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(benches); err == nil {
			_ = s.cache.Set(ctx, dataKey, data, benchListTTL)
		}
	}

	span.SetAttributes(attribute.Int("benches.count", len(benches)))
	return benches, nil
}

// Get returns a single bench. Missing benches yield domain.ErrBenchNotFound.
func (s *BenchService) Get(ctx context.Context, id string) (*domain.Bench, error) {
	b, err := s.benches.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get bench %s: %w", id, err)
	}
	return b, nil
}

// Nearby returns benches within radiusMeters of the point, closest first.
func (s *BenchService) Nearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Bench, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	box := geospatial.BoundingBox(lat, lng, radiusMeters)
	var out []domain.Bench
	for _, b := range all {
		if !box.Contains(b.Lat, b.Lng) {
			continue
		}
		d := geospatial.Haversine(lat, lng, b.Lat, b.Lng)
		if d > radiusMeters {
			continue
		}
		b.Distance = &d
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UploadPhoto stores f and returns its public URL. A nil file, or any
// failure, yields nil: the bench simply has no photo in that slot.
func (s *BenchService) UploadPhoto(ctx context.Context, f *domain.PhotoFile) *string {
	if f == nil || f.Body == nil {
		return nil
	}
	if s.photos == nil {
		slog.WarnContext(ctx, "photo store not configured, dropping photo", "name", f.Name)
		metrics.PhotoUploads.WithLabelValues("error").Inc()
		return nil
	}

	ctx, span := tracer.Start(ctx, "BenchService.UploadPhoto")
	defer span.End()

	key := PhotoKey(s.now(), s.suffix(), f.Name)
	span.SetAttributes(attribute.String("photo.key", key))

	size := f.Size
	if size == 0 {
		size = -1
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := time.Now()
	err := s.photos.Upload(ctx, key, f.Body, size, contentType)
	metrics.PhotoUploadDuration.Observe(time.Since(start).Seconds())
	metrics.PhotoUploads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		endSpan(span, err)
		slog.WarnContext(ctx, "photo upload failed", "key", key, "error", err)
		return nil
	}

	u := s.photos.PublicURL(key)
	return &u
}

// Create uploads the form photos in slot order and inserts the bench.
func (s *BenchService) Create(ctx context.Context, p domain.PendingBench) (*domain.Bench, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "BenchService.Create")
	defer span.End()

	b := benchFromPending(p)
	b.PhotoURL1 = s.UploadPhoto(ctx, p.Photo1)
	b.PhotoURL2 = s.UploadPhoto(ctx, p.Photo2)

	if err := s.benches.Insert(ctx, b); err != nil {
		endSpan(span, err)
		metrics.BenchMutations.WithLabelValues("create", "error").Inc()
		s.removePhotos(ctx, photoKeys(b.PhotoURL1, b.PhotoURL2))
		return nil, fmt.Errorf("insert bench: %w", err)
	}

	metrics.BenchMutations.WithLabelValues("create", "ok").Inc()
	span.SetAttributes(attribute.String("bench.id", b.ID))
	s.afterMutation(ctx, domain.BenchCreated, b.ID, 1)
	return b, nil
}

// Update replaces every field of bench id with the form values. A photo slot
// without a new file keeps its stored URL; a replaced photo object is removed
// once the record points at the new one.
func (s *BenchService) Update(ctx context.Context, id string, p domain.PendingBench) (*domain.Bench, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "BenchService.Update", trace.WithAttributes(attribute.String("bench.id", id)))
	defer span.End()

	current, err := s.benches.GetByID(ctx, id)
	if err != nil {
		endSpan(span, err)
		metrics.BenchMutations.WithLabelValues("update", "error").Inc()
		return nil, fmt.Errorf("load bench %s: %w", id, err)
	}

	b := benchFromPending(p)
	b.ID = id
	b.CreatedAt = current.CreatedAt

	var uploaded, obsolete []*string
	b.PhotoURL1, uploaded, obsolete = s.replacePhoto(ctx, current.PhotoURL1, p.Photo1, uploaded, obsolete)
	b.PhotoURL2, uploaded, obsolete = s.replacePhoto(ctx, current.PhotoURL2, p.Photo2, uploaded, obsolete)

	if err := s.benches.Update(ctx, b); err != nil {
		endSpan(span, err)
		metrics.BenchMutations.WithLabelValues("update", "error").Inc()
		s.removePhotos(ctx, photoKeys(uploaded...))
		return nil, fmt.Errorf("update bench %s: %w", id, err)
	}

	s.removePhotos(ctx, photoKeys(obsolete...))
	metrics.BenchMutations.WithLabelValues("update", "ok").Inc()
	s.afterMutation(ctx, domain.BenchUpdated, id, 1)
	return b, nil
}

func (s *BenchService) replacePhoto(ctx context.Context, old *string, f *domain.PhotoFile, uploaded, obsolete []*string) (*string, []*string, []*string) {
	if f == nil {
		return old, uploaded, obsolete
	}
	u := s.UploadPhoto(ctx, f)
	if u == nil {
		return old, uploaded, obsolete
	}
	uploaded = append(uploaded, u)
	if old != nil {
		obsolete = append(obsolete, old)
	}
	return u, uploaded, obsolete
}

// Delete removes the photo objects referenced by the given URLs, best effort,
// and then the bench record. Object removal is skipped when no URL is set.
func (s *BenchService) Delete(ctx context.Context, id string, photoURL1, photoURL2 *string) error {
	ctx, span := tracer.Start(ctx, "BenchService.Delete", trace.WithAttributes(attribute.String("bench.id", id)))
	defer span.End()

	s.removePhotos(ctx, photoKeys(photoURL1, photoURL2))

	if err := s.benches.Delete(ctx, id); err != nil {
		endSpan(span, err)
		metrics.BenchMutations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete bench %s: %w", id, err)
	}

	metrics.BenchMutations.WithLabelValues("delete", "ok").Inc()
	s.afterMutation(ctx, domain.BenchDeleted, id, 1)
	return nil
}

// DeleteByID loads the bench to learn its photo URLs, then deletes it.
func (s *BenchService) DeleteByID(ctx context.Context, id string) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Delete(ctx, b.ID, b.PhotoURL1, b.PhotoURL2)
}

// Import inserts already-parsed benches in one batch.
func (s *BenchService) Import(ctx context.Context, benches []domain.Bench) (int, error) {
	if len(benches) == 0 {
		return 0, nil
	}
	for i := range benches {
		if err := benches[i].Validate(); err != nil {
			return 0, fmt.Errorf("bench %d: %w", i, err)
		}
	}

	ctx, span := tracer.Start(ctx, "BenchService.Import", trace.WithAttributes(attribute.Int("benches.count", len(benches))))
	defer span.End()

	if err := s.benches.InsertBatch(ctx, benches); err != nil {
		endSpan(span, err)
		metrics.BenchMutations.WithLabelValues("import", "error").Inc()
		return 0, fmt.Errorf("insert batch: %w", err)
	}

	metrics.BenchMutations.WithLabelValues("import", "ok").Inc()
	s.afterMutation(ctx, domain.BenchImported, "", len(benches))
	return len(benches), nil
}

// afterMutation moves the cache to a fresh generation, drops the previous
// collection and announces the change. Neither failure affects the already
// committed write.
func (s *BenchService) afterMutation(ctx context.Context, typ domain.BenchEventType, id string, count int) {
	if s.cache != nil {
		prev := s.cacheGeneration(ctx)
		if err := s.cache.Set(ctx, benchListGenKey, []byte(uuid.NewString()), benchListGenTTL); err != nil {
			slog.WarnContext(ctx, "bench cache generation bump failed", "error", err)
		}
		if err := s.cache.Delete(ctx, benchListKey(prev)); err != nil {
			slog.WarnContext(ctx, "bench cache invalidation failed", "error", err)
		}
	}
	if s.events != nil {
		ev := &domain.BenchEvent{Type: typ, BenchID: id, Count: count, At: s.now().UTC()}
		if err := s.events.PublishBenchEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "bench event publish failed", "type", string(typ), "bench_id", id, "error", err)
		}
	}
}

// cacheGeneration returns the current generation, or "" when none was
// recorded yet or the cache is unreachable.
func (s *BenchService) cacheGeneration(ctx context.Context) string {
	gen, err := s.cache.Get(ctx, benchListGenKey)
	if err != nil {
		return ""
	}
	return string(gen)
}

func benchListKey(gen string) string {
	if gen == "" {
		return benchListCacheKey
	}
	return benchListCacheKey + ":" + gen
}

func (s *BenchService) removePhotos(ctx context.Context, keys []string) {
	if len(keys) == 0 || s.photos == nil {
		return
	}
	err := s.photos.Remove(ctx, keys)
	metrics.PhotoRemovals.WithLabelValues(metrics.Result(err)).Add(float64(len(keys)))
	if err != nil {
		slog.WarnContext(ctx, "photo removal failed", "keys", keys, "error", err)
	}
}

func photoKeys(urls ...*string) []string {
	var keys []string
	for _, u := range urls {
		if u == nil {
			continue
		}
		if k := KeyFromURL(*u); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func benchFromPending(p domain.PendingBench) *domain.Bench {
	return &domain.Bench{
		Lat:                 p.Position.Lat,
		Lng:                 p.Position.Lng,
		AmbienteRating:      p.AmbienteRating,
		ViewRating:          p.ViewRating,
		AccessibilityRating: p.AccessibilityRating,
		Fireplace:           p.Fireplace,
		Description:         p.Description,
	}
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
