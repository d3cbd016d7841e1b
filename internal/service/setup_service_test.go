package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

type mockSetupRepo struct {
	mu          sync.Mutex
	data        *models.SetupData
	courses     []models.Course
	faculty     []models.Faculty
	setupErr    error
	coursesErr  error
	facultyErr  error
	setupCalls  int
	courseCalls int
}

func (m *mockSetupRepo) GetAll(context.Context) (*models.SetupData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupCalls++
	if m.setupErr != nil {
		return nil, m.setupErr
	}
	return m.data, nil
}

func (m *mockSetupRepo) ActiveCourses(context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courseCalls++
	return m.courses, m.coursesErr
}

func (m *mockSetupRepo) ActiveFaculty(context.Context) ([]models.Faculty, error) {
	return m.faculty, m.facultyErr
}

func sampleSetupRepo() *mockSetupRepo {
	return &mockSetupRepo{
		data: &models.SetupData{
			Qualifications: []models.Qualification{
				{ID: "q1", Name: "12th Pass", IsActive: true},
				{ID: "q2", Name: "Graduate", IsActive: false},
			},
			Areas: []models.Area{
				{ID: "a1", Name: "Malviya Nagar", City: "Jaipur", IsActive: true},
			},
			Batches: []models.Batch{
				{ID: "b1", StartTime: "09:00", EndTime: "11:00", IsActive: true},
				{ID: "b2", StartTime: "09:00", EndTime: "11:00", IsActive: true},
				{ID: "b3", DisplayName: "Evening", StartTime: "17:00", EndTime: "19:00", IsActive: true},
			},
		},
		courses: []models.Course{
			{ID: "c1", Name: "Diploma in Computer Applications", Code: "DCA", IsActive: true},
			{ID: "c2", Name: "Tally Prime", Code: "TALLY", IsActive: true},
		},
		faculty: []models.Faculty{
			{ID: "f1", Name: "Anita Sharma", Status: "active"},
		},
	}
}

func newSetupServiceForTest(repo *mockSetupRepo) *SetupService {
	cache := NewCacheService(newMemoryCacheRepo(), NewMetricsService(), time.Minute, nil, true)
	return NewSetupService(repo, cache, time.Minute, nil)
}

func TestSetupServiceGetAllCachesBundle(t *testing.T) {
	repo := sampleSetupRepo()
	svc := newSetupServiceForTest(repo)

	first, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	second, err := svc.GetAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.setupCalls)
	assert.Len(t, second.Qualifications, 2)
	assert.Equal(t, first.Batches, second.Batches)
}

func TestSetupServiceActiveFiltersInactive(t *testing.T) {
	svc := newSetupServiceForTest(sampleSetupRepo())
	active, err := svc.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active.Qualifications, 1)
	assert.Equal(t, "q1", active.Qualifications[0].ID)
}

func TestSetupServiceInvalidate(t *testing.T) {
	repo := sampleSetupRepo()
	svc := newSetupServiceForTest(repo)
	_, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.courseCalls)
}

func TestSetupServiceWithoutCache(t *testing.T) {
	repo := sampleSetupRepo()
	svc := NewSetupService(repo, nil, time.Minute, nil)
	_, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	_, err = svc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.setupCalls)
	assert.NoError(t, svc.Invalidate(context.Background()))
}

func TestFormOptionsIndependentFailures(t *testing.T) {
	repo := sampleSetupRepo()
	repo.coursesErr = appErrors.Clone(appErrors.ErrUpstream, "courses down")
	svc := newSetupServiceForTest(repo)

	opts := svc.FormOptions(context.Background())
	assert.True(t, opts.Batches.Loaded)
	require.Len(t, opts.Batches.Items, 3)
	assert.Equal(t, "09:00 to 11:00", opts.Batches.Items[0].Label)
	assert.Equal(t, "Evening", opts.Batches.Items[2].Label)
	assert.True(t, opts.Faculty.Loaded)

	assert.False(t, opts.Courses.Loaded)
	assert.Equal(t, "courses down", opts.Courses.Error)
	assert.Empty(t, opts.Courses.Items)

	require.Len(t, opts.Sources.Items, len(models.AdmissionSources))
	assert.Equal(t, "walk_in", opts.Sources.Items[0].ID)
}

func TestFormOptionsSetupFailureKeepsCourses(t *testing.T) {
	repo := sampleSetupRepo()
	repo.setupErr = errors.New("dial tcp: refused")
	svc := newSetupServiceForTest(repo)

	opts := svc.FormOptions(context.Background())
	assert.False(t, opts.Qualifications.Loaded)
	assert.False(t, opts.Areas.Loaded)
	assert.NotEmpty(t, opts.Batches.Error)
	assert.True(t, opts.Courses.Loaded)
	assert.Len(t, opts.Courses.Items, 2)
}

func TestResolveBatchAmbiguousLabel(t *testing.T) {
	svc := newSetupServiceForTest(sampleSetupRepo())

	_, err := svc.ResolveBatch(context.Background(), "09:00 to 11:00")
	assert.True(t, appErrors.Is(err, appErrors.ErrAmbiguousVocabulary))

	batch, err := svc.ResolveBatch(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "b2", batch.ID)

	batch, err = svc.ResolveBatch(context.Background(), " evening ")
	require.NoError(t, err)
	assert.Equal(t, "b3", batch.ID)
}

func TestResolveCourseByNameOrCode(t *testing.T) {
	svc := newSetupServiceForTest(sampleSetupRepo())

	course, err := svc.ResolveCourse(context.Background(), "tally prime")
	require.NoError(t, err)
	assert.Equal(t, "c2", course.ID)

	course, err = svc.ResolveCourse(context.Background(), "DCA")
	require.NoError(t, err)
	assert.Equal(t, "c1", course.ID)

	_, err = svc.ResolveCourse(context.Background(), "Web Design")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestResolveQualificationIgnoresInactive(t *testing.T) {
	svc := newSetupServiceForTest(sampleSetupRepo())
	_, err := svc.ResolveQualification(context.Background(), "Graduate")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	area, err := svc.ResolveArea(context.Background(), "malviya nagar")
	require.NoError(t, err)
	assert.Equal(t, "a1", area.ID)

	faculty, err := svc.ResolveFaculty(context.Background(), "Anita Sharma")
	require.NoError(t, err)
	assert.Equal(t, "f1", faculty.ID)
}
