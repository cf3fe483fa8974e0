package workflows

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

var sweepNow = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

type fakeBenchRepo struct {
	urls []string
}

func (f *fakeBenchRepo) List(ctx context.Context) ([]domain.Bench, error) { return nil, nil }
func (f *fakeBenchRepo) GetByID(ctx context.Context, id string) (*domain.Bench, error) {
	return nil, domain.ErrBenchNotFound
}
func (f *fakeBenchRepo) Insert(ctx context.Context, b *domain.Bench) error             { return nil }
func (f *fakeBenchRepo) Update(ctx context.Context, b *domain.Bench) error             { return nil }
func (f *fakeBenchRepo) Delete(ctx context.Context, id string) error                   { return nil }
func (f *fakeBenchRepo) InsertBatch(ctx context.Context, benches []domain.Bench) error { return nil }
func (f *fakeBenchRepo) PhotoURLs(ctx context.Context) ([]string, error)               { return f.urls, nil }

type fakePhotoStore struct {
	mu      sync.Mutex
	objects []domain.StoredObject
	removed []string
}

func (f *fakePhotoStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	return nil
}
func (f *fakePhotoStore) PublicURL(key string) string { return "http://minio:9000/bench-photos/" + key }
func (f *fakePhotoStore) Remove(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, keys...)
	return nil
}
func (f *fakePhotoStore) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	return f.objects, nil
}

func TestFindOrphans(t *testing.T) {
	cutoff := sweepNow.Add(-24 * time.Hour)
	stored := []domain.StoredObject{
		{Key: "c-old-orphan.jpg", LastModified: cutoff.Add(-time.Hour)},
		{Key: "a-referenced.jpg", LastModified: cutoff.Add(-48 * time.Hour)},
		{Key: "b-fresh-orphan.jpg", LastModified: cutoff.Add(time.Minute)},
		{Key: "a-old-orphan.jpg", LastModified: cutoff.Add(-72 * time.Hour)},
		{Key: "d-at-cutoff.jpg", LastModified: cutoff},
	}

	got := findOrphans(stored, []string{"a-referenced.jpg"}, cutoff)
	assert.Equal(t, []string{"a-old-orphan.jpg", "c-old-orphan.jpg"}, got)
	assert.Empty(t, findOrphans(nil, nil, cutoff))
}

func TestOrphanSweepWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.SetStartTime(sweepNow)

	photos := &fakePhotoStore{objects: []domain.StoredObject{
		{Key: "1-aaaa-kept.jpg", LastModified: sweepNow.Add(-72 * time.Hour)},
		{Key: "2-bbbb-orphan.jpg", LastModified: sweepNow.Add(-72 * time.Hour)},
		{Key: "3-cccc-uploading.jpg", LastModified: sweepNow.Add(-time.Minute)},
	}}
	benches := &fakeBenchRepo{urls: []string{"http://minio:9000/bench-photos/1-aaaa-kept.jpg"}}
	env.RegisterActivity(&SweepActivities{Benches: benches, Photos: photos})

	env.ExecuteWorkflow(OrphanSweepWorkflow, SweepInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result SweepResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, SweepResult{Scanned: 3, Referenced: 1, Removed: 1}, result)
	assert.Equal(t, []string{"2-bbbb-orphan.jpg"}, photos.removed)
}

func TestOrphanSweepWorkflow_NothingToRemove(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.SetStartTime(sweepNow)

	photos := &fakePhotoStore{objects: []domain.StoredObject{
		{Key: "1-aaaa-kept.jpg", LastModified: sweepNow.Add(-72 * time.Hour)},
	}}
	benches := &fakeBenchRepo{urls: []string{"http://minio:9000/bench-photos/1-aaaa-kept.jpg"}}
	env.RegisterActivity(&SweepActivities{Benches: benches, Photos: photos})

	env.ExecuteWorkflow(OrphanSweepWorkflow, SweepInput{MinAge: time.Hour})

	require.NoError(t, env.GetWorkflowError())
	var result SweepResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Zero(t, result.Removed)
	assert.Empty(t, photos.removed)
}
