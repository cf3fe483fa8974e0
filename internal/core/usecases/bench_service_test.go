package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/baenkli/internal/core/domain"
	"github.com/samirrijal/baenkli/internal/core/usecases"
)

// --- In-memory BenchRepository ---

type memBenchRepo struct {
	mu      sync.Mutex
	seq     int
	benches map[string]domain.Bench

	listFn   func(ctx context.Context) ([]domain.Bench, error)
	insertFn func(ctx context.Context, b *domain.Bench) error
	updateFn func(ctx context.Context, b *domain.Bench) error
	deleteFn func(ctx context.Context, id string) error

	listCalls int
}

func newMemRepo(seed ...domain.Bench) *memBenchRepo {
	r := &memBenchRepo{benches: make(map[string]domain.Bench)}
	for _, b := range seed {
		r.benches[b.ID] = b
	}
	return r
}

func (r *memBenchRepo) List(ctx context.Context) ([]domain.Bench, error) {
	r.mu.Lock()
	r.listCalls++
	r.mu.Unlock()
	if r.listFn != nil {
		return r.listFn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Bench, 0, len(r.benches))
	for _, b := range r.benches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBenchRepo) GetByID(ctx context.Context, id string) (*domain.Bench, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.benches[id]
	if !ok {
		return nil, domain.ErrBenchNotFound
	}
	return &b, nil
}

func (r *memBenchRepo) Insert(ctx context.Context, b *domain.Bench) error {
	if r.insertFn != nil {
		return r.insertFn(ctx, b)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	b.ID = fmt.Sprintf("bench-%03d", r.seq)
	b.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.UpdatedAt = b.CreatedAt
	r.benches[b.ID] = *b
	return nil
}

func (r *memBenchRepo) Update(ctx context.Context, b *domain.Bench) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, b)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.benches[b.ID]; !ok {
		return domain.ErrBenchNotFound
	}
	r.benches[b.ID] = *b
	return nil
}

func (r *memBenchRepo) Delete(ctx context.Context, id string) error {
	if r.deleteFn != nil {
		return r.deleteFn(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.benches[id]; !ok {
		return domain.ErrBenchNotFound
	}
	delete(r.benches, id)
	return nil
}

func (r *memBenchRepo) InsertBatch(ctx context.Context, benches []domain.Bench) error {
	for i := range benches {
		if err := r.Insert(ctx, &benches[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memBenchRepo) PhotoURLs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var urls []string
	for _, b := range r.benches {
		urls = append(urls, b.PhotoURLs()...)
	}
	return urls, nil
}

// --- Mock PhotoStore ---

type mockPhotoStore struct {
	uploadFn func(ctx context.Context, key string, body io.Reader) error
	removeFn func(ctx context.Context, keys []string) error

	uploaded []string
	removed  [][]string
}

func (m *mockPhotoStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.uploadFn != nil {
		if err := m.uploadFn(ctx, key, body); err != nil {
			return err
		}
	}
	m.uploaded = append(m.uploaded, key)
	return nil
}

func (m *mockPhotoStore) PublicURL(key string) string {
	return "http://minio:9000/bench-photos/" + key
}

func (m *mockPhotoStore) Remove(ctx context.Context, keys []string) error {
	m.removed = append(m.removed, keys)
	if m.removeFn != nil {
		return m.removeFn(ctx, keys)
	}
	return nil
}

func (m *mockPhotoStore) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	return nil, nil
}

// --- Mock cache & publisher ---

type mockCache struct {
	data    map[string][]byte
	deletes []string
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("valkey nil message")
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
	return nil
}

type mockPublisher struct {
	events []domain.BenchEvent
	err    error
}

func (p *mockPublisher) PublishBenchEvent(ctx context.Context, ev *domain.BenchEvent) error {
	p.events = append(p.events, *ev)
	return p.err
}

func strPtr(s string) *string { return &s }

func photo(name string) *domain.PhotoFile {
	return &domain.PhotoFile{Name: name, ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("jpg")}
}

var keyPattern = regexp.MustCompile(`^\d{13}-[0-9a-f]{8}-`)

// --- Tests ---

func TestBenchService_CreateScenario(t *testing.T) {
	repo := newMemRepo()
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	p := domain.NewPendingBench(domain.GeoPoint{Lat: 47.0, Lng: 8.0})
	p.AmbienteRating = 5
	p.ViewRating = 2
	p.AccessibilityRating = 4
	p.Fireplace = true
	p.Description = "nice spot"

	created, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected server-assigned id")
	}

	all, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 bench, got %d", len(all))
	}
	b := all[0]
	if b.Lat != 47.0 || b.Lng != 8.0 || b.AmbienteRating != 5 || b.ViewRating != 2 ||
		b.AccessibilityRating != 4 || !b.Fireplace || b.Description != "nice spot" {
		t.Errorf("stored bench does not match form: %+v", b)
	}
	if b.PhotoURL1 != nil || b.PhotoURL2 != nil {
		t.Errorf("expected no photos, got %v %v", b.PhotoURL1, b.PhotoURL2)
	}
	if len(store.uploaded) != 0 {
		t.Errorf("expected no uploads, got %v", store.uploaded)
	}
}

func TestBenchService_CreateWithPhotos(t *testing.T) {
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(newMemRepo(), store, nil, nil)

	p := domain.NewPendingBench(domain.GeoPoint{Lat: 46.9, Lng: 7.4})
	p.Photo1 = photo("view.jpg")
	p.Photo2 = photo("my bench.png")

	b, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.uploaded) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(store.uploaded))
	}
	if !keyPattern.MatchString(store.uploaded[0]) || !strings.HasSuffix(store.uploaded[0], "-view.jpg") {
		t.Errorf("unexpected key format: %s", store.uploaded[0])
	}
	if !strings.HasSuffix(store.uploaded[1], "-my_bench.png") {
		t.Errorf("expected sanitized name, got %s", store.uploaded[1])
	}
	if b.PhotoURL1 == nil || *b.PhotoURL1 != "http://minio:9000/bench-photos/"+store.uploaded[0] {
		t.Errorf("unexpected photo url 1: %v", b.PhotoURL1)
	}
	if b.PhotoURL2 == nil || *b.PhotoURL2 != "http://minio:9000/bench-photos/"+store.uploaded[1] {
		t.Errorf("unexpected photo url 2: %v", b.PhotoURL2)
	}
}

func TestBenchService_UploadFailureMeansNoPhoto(t *testing.T) {
	store := &mockPhotoStore{
		uploadFn: func(ctx context.Context, key string, body io.Reader) error {
			if strings.HasSuffix(key, "broken.jpg") {
				return errors.New("bucket unavailable")
			}
			return nil
		},
	}
	svc := usecases.NewBenchService(newMemRepo(), store, nil, nil)

	p := domain.NewPendingBench(domain.GeoPoint{Lat: 46.9, Lng: 7.4})
	p.Photo1 = photo("broken.jpg")
	p.Photo2 = photo("fine.jpg")

	b, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("upload failure must not fail the create: %v", err)
	}
	if b.PhotoURL1 != nil {
		t.Errorf("expected photo 1 absent, got %s", *b.PhotoURL1)
	}
	if b.PhotoURL2 == nil {
		t.Error("expected photo 2 present")
	}
}

func TestBenchService_CreateValidation(t *testing.T) {
	repo := newMemRepo()
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	p := domain.NewPendingBench(domain.GeoPoint{Lat: 47, Lng: 8})
	p.AmbienteRating = 6
	p.Photo1 = photo("a.jpg")

	if _, err := svc.Create(context.Background(), p); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.uploaded) != 0 {
		t.Error("nothing may be uploaded for an invalid form")
	}
	if len(repo.benches) != 0 {
		t.Error("nothing may be written for an invalid form")
	}
}

func TestBenchService_CreateWriteFailureSurfacesAndCleansUp(t *testing.T) {
	repo := newMemRepo()
	repo.insertFn = func(ctx context.Context, b *domain.Bench) error { return errors.New("connection reset") }
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	p := domain.NewPendingBench(domain.GeoPoint{Lat: 47, Lng: 8})
	p.Photo1 = photo("a.jpg")

	_, err := svc.Create(context.Background(), p)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
	if len(store.removed) != 1 || len(store.removed[0]) != 1 || store.removed[0][0] != store.uploaded[0] {
		t.Errorf("expected freshly uploaded photo to be removed, got %v", store.removed)
	}
}

func TestBenchService_UpdateReplacesFieldsKeepsPhotos(t *testing.T) {
	existing := domain.Bench{
		ID: "b1", Lat: 47, Lng: 8, AmbienteRating: 2, ViewRating: 2, AccessibilityRating: 2,
		Fireplace: false, PhotoURL1: strPtr("http://minio:9000/bench-photos/1-aa-old.jpg"),
		Description: "old",
	}
	other := domain.Bench{ID: "b2", Lat: 46, Lng: 7, AmbienteRating: 4, ViewRating: 4, AccessibilityRating: 4}
	repo := newMemRepo(existing, other)
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	p := domain.NewPendingBench(existing.Position())
	p.AmbienteRating, p.ViewRating, p.AccessibilityRating = 2, 2, 2
	p.Description = "old"
	p.Fireplace = true

	if _, err := svc.Update(context.Background(), "b1", p); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, _ := svc.List(context.Background())
	if len(all) != 2 {
		t.Fatalf("expected 2 benches, got %d", len(all))
	}
	got, _ := repo.GetByID(context.Background(), "b1")
	if !got.Fireplace {
		t.Error("expected fireplace true")
	}
	if got.PhotoURL1 == nil || *got.PhotoURL1 != *existing.PhotoURL1 {
		t.Errorf("expected photo 1 preserved, got %v", got.PhotoURL1)
	}
	if got.PhotoURL2 != nil {
		t.Errorf("expected photo 2 still absent, got %v", *got.PhotoURL2)
	}
	untouched, _ := repo.GetByID(context.Background(), "b2")
	if untouched.AmbienteRating != 4 || untouched.Lat != 46 {
		t.Errorf("other bench changed: %+v", untouched)
	}
	if len(store.uploaded) != 0 || len(store.removed) != 0 {
		t.Errorf("expected no storage traffic, got uploads=%v removals=%v", store.uploaded, store.removed)
	}
}

func TestBenchService_UpdateNewPhotoRemovesOld(t *testing.T) {
	existing := domain.Bench{
		ID: "b1", Lat: 47, Lng: 8, AmbienteRating: 3, ViewRating: 3, AccessibilityRating: 3,
		PhotoURL1: strPtr("http://minio:9000/bench-photos/1-aa-old.jpg"),
	}
	repo := newMemRepo(existing)
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	p := domain.NewPendingBench(existing.Position())
	p.Photo1 = photo("new.jpg")

	b, err := svc.Update(context.Background(), "b1", p)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if b.PhotoURL1 == nil || !strings.HasSuffix(*b.PhotoURL1, "-new.jpg") {
		t.Errorf("expected new photo url, got %v", b.PhotoURL1)
	}
	if len(store.removed) != 1 || store.removed[0][0] != "1-aa-old.jpg" {
		t.Errorf("expected old object removed, got %v", store.removed)
	}
}

func TestBenchService_UpdateNotFound(t *testing.T) {
	svc := usecases.NewBenchService(newMemRepo(), &mockPhotoStore{}, nil, nil)
	_, err := svc.Update(context.Background(), "missing", domain.NewPendingBench(domain.GeoPoint{Lat: 1, Lng: 1}))
	if !errors.Is(err, domain.ErrBenchNotFound) {
		t.Fatalf("expected ErrBenchNotFound, got %v", err)
	}
}

func TestBenchService_DeleteRemovesDerivedKeys(t *testing.T) {
	existing := domain.Bench{
		ID: "b1", Lat: 47, Lng: 8,
		PhotoURL1: strPtr("http://minio:9000/bench-photos/1714567890123-abcd1234-a.jpg"),
		PhotoURL2: strPtr("http://minio:9000/bench-photos/1714567890456-ef012345-b.jpg?x=1"),
	}
	repo := newMemRepo(existing)
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	if err := svc.Delete(context.Background(), "b1", existing.PhotoURL1, existing.PhotoURL2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.removed) != 1 {
		t.Fatalf("expected one batch removal, got %v", store.removed)
	}
	want := []string{"1714567890123-abcd1234-a.jpg", "1714567890456-ef012345-b.jpg"}
	if strings.Join(store.removed[0], ",") != strings.Join(want, ",") {
		t.Errorf("expected keys %v, got %v", want, store.removed[0])
	}
	all, _ := svc.List(context.Background())
	if len(all) != 0 {
		t.Errorf("expected bench gone, got %+v", all)
	}
}

func TestBenchService_DeleteWithoutPhotosSkipsRemoval(t *testing.T) {
	repo := newMemRepo(domain.Bench{ID: "b1", Lat: 47, Lng: 8})
	store := &mockPhotoStore{}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	if err := svc.DeleteByID(context.Background(), "b1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.removed) != 0 {
		t.Errorf("expected no removal call, got %v", store.removed)
	}
}

func TestBenchService_DeleteRemovalFailureIsIgnored(t *testing.T) {
	repo := newMemRepo(domain.Bench{ID: "b1", PhotoURL1: strPtr("http://x/bench-photos/k.jpg")})
	store := &mockPhotoStore{
		removeFn: func(ctx context.Context, keys []string) error { return errors.New("access denied") },
	}
	svc := usecases.NewBenchService(repo, store, nil, nil)

	if err := svc.DeleteByID(context.Background(), "b1"); err != nil {
		t.Fatalf("removal failure must not block the record delete: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "b1"); !errors.Is(err, domain.ErrBenchNotFound) {
		t.Error("expected record deleted")
	}
}

func TestBenchService_DeleteRecordFailureSurfaces(t *testing.T) {
	repo := newMemRepo()
	svc := usecases.NewBenchService(repo, &mockPhotoStore{}, nil, nil)
	err := svc.Delete(context.Background(), "missing", nil, nil)
	if !errors.Is(err, domain.ErrBenchNotFound) {
		t.Fatalf("expected ErrBenchNotFound, got %v", err)
	}
}

func TestBenchService_ListUsesCacheAndMutationsInvalidate(t *testing.T) {
	repo := newMemRepo(domain.Bench{ID: "b1", Lat: 47, Lng: 8, AmbienteRating: 3, ViewRating: 3, AccessibilityRating: 3})
	cache := newMockCache()
	pub := &mockPublisher{}
	svc := usecases.NewBenchService(repo, &mockPhotoStore{}, cache, pub)
	ctx := context.Background()

	if _, err := svc.List(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.List(ctx); err != nil {
		t.Fatal(err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("expected second list served from cache, repo called %d times", repo.listCalls)
	}

	if _, err := svc.Create(ctx, domain.NewPendingBench(domain.GeoPoint{Lat: 46, Lng: 7})); err != nil {
		t.Fatal(err)
	}
	if len(cache.deletes) != 1 {
		t.Fatalf("expected cache invalidation, got %v", cache.deletes)
	}
	all, _ := svc.List(ctx)
	if len(all) != 2 {
		t.Fatalf("expected refetch to see the new bench, got %d", len(all))
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.BenchCreated || pub.events[0].BenchID == "" {
		t.Errorf("expected created event, got %+v", pub.events)
	}
}

func TestBenchService_SlowListDoesNotRepopulateStaleCollection(t *testing.T) {
	repo := newMemRepo(domain.Bench{ID: "b1", Lat: 47, Lng: 8, AmbienteRating: 3, ViewRating: 3, AccessibilityRating: 3})
	cache := newMockCache()
	svc := usecases.NewBenchService(repo, nil, cache, nil)
	ctx := context.Background()

	// The first read takes its snapshot, then a create commits and
	// invalidates before the read gets to fill the cache.
	repo.listFn = func(ctx context.Context) ([]domain.Bench, error) {
		repo.mu.Lock()
		snapshot := make([]domain.Bench, 0, len(repo.benches))
		for _, b := range repo.benches {
			snapshot = append(snapshot, b)
		}
		repo.mu.Unlock()
		repo.listFn = nil

		if _, err := svc.Create(ctx, domain.NewPendingBench(domain.GeoPoint{Lat: 46, Lng: 7})); err != nil {
			t.Fatal(err)
		}
		return snapshot, nil
	}

	slow, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(slow) != 1 {
		t.Fatalf("expected the slow read to return its snapshot, got %d", len(slow))
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the created bench after the mutation, got %d benches", len(all))
	}
	if repo.listCalls != 2 {
		t.Errorf("expected the stale fill to be ignored and the repo read again, got %d calls", repo.listCalls)
	}

	again, _ := svc.List(ctx)
	if len(again) != 2 || repo.listCalls != 2 {
		t.Errorf("expected the fresh collection served from cache, got %d benches after %d calls", len(again), repo.listCalls)
	}
}

func TestBenchService_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	svc := usecases.NewBenchService(newMemRepo(), nil, nil, pub)
	if _, err := svc.Create(context.Background(), domain.NewPendingBench(domain.GeoPoint{Lat: 1, Lng: 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBenchService_ListError(t *testing.T) {
	repo := newMemRepo()
	repo.listFn = func(ctx context.Context) ([]domain.Bench, error) { return nil, errors.New("timeout") }
	svc := usecases.NewBenchService(repo, nil, nil, nil)
	if _, err := svc.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestBenchService_Nearby(t *testing.T) {
	repo := newMemRepo(
		domain.Bench{ID: "far", Lat: 46.0, Lng: 7.0},
		domain.Bench{ID: "near", Lat: 47.0005, Lng: 8.0},
		domain.Bench{ID: "here", Lat: 47.0, Lng: 8.0},
	)
	svc := usecases.NewBenchService(repo, nil, nil, nil)

	got, err := svc.Nearby(context.Background(), 47.0, 8.0, 1000, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 benches within 1km, got %d", len(got))
	}
	if got[0].ID != "here" || got[1].ID != "near" {
		t.Errorf("expected closest first, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Distance == nil || *got[1].Distance < 50 || *got[1].Distance > 60 {
		t.Errorf("expected ~55m distance, got %v", got[1].Distance)
	}
}

func TestBenchService_Import(t *testing.T) {
	repo := newMemRepo()
	pub := &mockPublisher{}
	svc := usecases.NewBenchService(repo, nil, nil, pub)

	n, err := svc.Import(context.Background(), []domain.Bench{
		{Lat: 47, Lng: 8, AmbienteRating: 3, ViewRating: 3, AccessibilityRating: 3},
		{Lat: 46, Lng: 7, AmbienteRating: 5, ViewRating: 1, AccessibilityRating: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(repo.benches) != 2 {
		t.Fatalf("expected 2 imported, got n=%d stored=%d", n, len(repo.benches))
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.BenchImported || pub.events[0].Count != 2 {
		t.Errorf("expected one imported event, got %+v", pub.events)
	}

	_, err = svc.Import(context.Background(), []domain.Bench{{Lat: 47, Lng: 8, AmbienteRating: 0}})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
