package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ims-console-api/internal/models"
	appErrors "github.com/noah-isme/ims-console-api/pkg/errors"
)

const (
	setupCacheKey   = "setup:all"
	coursesCacheKey = "setup:courses:active"
	facultyCacheKey = "setup:faculty:active"
	setupCacheScope = "setup:*"
)

var sourceLabels = map[models.AdmissionSource]string{
	models.AdmissionSourceWalkIn:   "Walk-in",
	models.AdmissionSourceWebsite:  "Website",
	models.AdmissionSourceEnquiry:  "Enquiry",
	models.AdmissionSourceReferral: "Referral",
	models.AdmissionSourcePhone:    "Phone",
	models.AdmissionSourceOther:    "Other",
}

type setupRepository interface {
	GetAll(ctx context.Context) (*models.SetupData, error)
	ActiveCourses(ctx context.Context) ([]models.Course, error)
	ActiveFaculty(ctx context.Context) ([]models.Faculty, error)
}

// SetupService serves the vocabulary lists (qualifications, areas, batches, courses, faculty)
// the admission form selects from, caching each upstream read.
type SetupService struct {
	repo   setupRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewSetupService constructs the setup service. cache may be nil.
func NewSetupService(repo setupRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *SetupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SetupService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// GetAll returns the raw vocabulary bundle, inactive entries included.
func (s *SetupService) GetAll(ctx context.Context) (*models.SetupData, error) {
	var cached models.SetupData
	if hit, _ := s.cache.Get(ctx, setupCacheKey, &cached); hit {
		return &cached, nil
	}
	data, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = &models.SetupData{}
	}
	_ = s.cache.Set(ctx, setupCacheKey, data, s.ttl)
	return data, nil
}

// Active returns the bundle restricted to active entries.
func (s *SetupService) Active(ctx context.Context) (*models.SetupData, error) {
	data, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	active := data.Active()
	return &active, nil
}

// ActiveCourses returns the courses open for admission.
func (s *SetupService) ActiveCourses(ctx context.Context) ([]models.Course, error) {
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, coursesCacheKey, &cached); hit {
		return cached, nil
	}
	courses, err := s.repo.ActiveCourses(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, coursesCacheKey, courses, s.ttl)
	return courses, nil
}

// ActiveFaculty returns the faculty members who can be allotted.
func (s *SetupService) ActiveFaculty(ctx context.Context) ([]models.Faculty, error) {
	var cached []models.Faculty
	if hit, _ := s.cache.Get(ctx, facultyCacheKey, &cached); hit {
		return cached, nil
	}
	faculty, err := s.repo.ActiveFaculty(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, facultyCacheKey, faculty, s.ttl)
	return faculty, nil
}

// FormOptions loads every option list concurrently. A list that fails to load comes back
// empty with its own error; the call itself never fails.
func (s *SetupService) FormOptions(ctx context.Context) models.FormOptions {
	var opts models.FormOptions
	var g errgroup.Group

	g.Go(func() error {
		data, err := s.Active(ctx)
		if err != nil {
			s.logger.Sugar().Warnw("setup vocabulary unavailable", "error", err)
			msg := appErrors.FromError(err).Message
			opts.Qualifications = optionListError(msg)
			opts.Areas = optionListError(msg)
			opts.Batches = optionListError(msg)
			return nil
		}
		// admissions store qualification and area as text, so the name is the value
		opts.Qualifications = optionList(data.Qualifications, func(q models.Qualification) models.Option {
			return models.Option{ID: q.Name, Label: q.Name}
		})
		opts.Areas = optionList(data.Areas, func(a models.Area) models.Option {
			return models.Option{ID: a.Name, Label: a.Name}
		})
		opts.Batches = optionList(data.Batches, func(b models.Batch) models.Option {
			return models.Option{ID: b.ID, Label: b.Label()}
		})
		return nil
	})
	g.Go(func() error {
		courses, err := s.ActiveCourses(ctx)
		if err != nil {
			s.logger.Sugar().Warnw("course list unavailable", "error", err)
			opts.Courses = optionListError(appErrors.FromError(err).Message)
			return nil
		}
		opts.Courses = optionList(courses, func(c models.Course) models.Option {
			return models.Option{ID: c.ID, Label: c.Name}
		})
		return nil
	})
	g.Go(func() error {
		faculty, err := s.ActiveFaculty(ctx)
		if err != nil {
			s.logger.Sugar().Warnw("faculty list unavailable", "error", err)
			opts.Faculty = optionListError(appErrors.FromError(err).Message)
			return nil
		}
		opts.Faculty = optionList(faculty, func(f models.Faculty) models.Option {
			return models.Option{ID: f.ID, Label: f.Name}
		})
		return nil
	})
	_ = g.Wait()

	opts.Sources = sourceOptions()
	return opts
}

// Invalidate drops every cached vocabulary list.
func (s *SetupService) Invalidate(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, setupCacheScope); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate setup cache")
	}
	return nil
}

// ResolveBatch finds the active batch whose id or display label matches label.
func (s *SetupService) ResolveBatch(ctx context.Context, label string) (*models.Batch, error) {
	data, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	return matchLabel("batch", data.Batches, label, func(b models.Batch) (string, string) { return b.ID, b.Label() })
}

// ResolveQualification finds the active qualification matching label.
func (s *SetupService) ResolveQualification(ctx context.Context, label string) (*models.Qualification, error) {
	data, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	return matchLabel("qualification", data.Qualifications, label, func(q models.Qualification) (string, string) { return q.ID, q.Name })
}

// ResolveArea finds the active area matching label.
func (s *SetupService) ResolveArea(ctx context.Context, label string) (*models.Area, error) {
	data, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	return matchLabel("area", data.Areas, label, func(a models.Area) (string, string) { return a.ID, a.Name })
}

// ResolveCourse finds the active course matching label by id, name or code.
func (s *SetupService) ResolveCourse(ctx context.Context, label string) (*models.Course, error) {
	courses, err := s.ActiveCourses(ctx)
	if err != nil {
		return nil, err
	}
	course, err := matchLabel("course", courses, label, func(c models.Course) (string, string) { return c.ID, c.Name })
	if appErrors.Is(err, appErrors.ErrNotFound) {
		return matchLabel("course", courses, label, func(c models.Course) (string, string) { return c.ID, c.Code })
	}
	return course, err
}

// ResolveFaculty finds the active faculty member matching label.
func (s *SetupService) ResolveFaculty(ctx context.Context, label string) (*models.Faculty, error) {
	faculty, err := s.ActiveFaculty(ctx)
	if err != nil {
		return nil, err
	}
	return matchLabel("faculty", faculty, label, func(f models.Faculty) (string, string) { return f.ID, f.Name })
}

// matchLabel returns the single item whose id equals label or whose display string
// equals it after trimming, case-insensitively.
func matchLabel[T any](kind string, items []T, label string, key func(T) (string, string)) (*T, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not specified", kind))
	}
	var found []int
	for i, item := range items {
		id, display := key(item)
		if id == label {
			return &items[i], nil
		}
		if strings.EqualFold(strings.TrimSpace(display), label) {
			found = append(found, i)
		}
	}
	switch len(found) {
	case 0:
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %q not found", kind, label))
	case 1:
		return &items[found[0]], nil
	default:
		return nil, appErrors.Clone(appErrors.ErrAmbiguousVocabulary, fmt.Sprintf("%s %q matches %d entries", kind, label, len(found)))
	}
}

func optionList[T any](items []T, toOption func(T) models.Option) models.OptionList {
	list := models.OptionList{Items: make([]models.Option, 0, len(items)), Loaded: true}
	for _, item := range items {
		list.Items = append(list.Items, toOption(item))
	}
	return list
}

// optionListError is an empty, not-loaded list carrying msg.
func optionListError(msg string) models.OptionList {
	return models.OptionList{Items: []models.Option{}, Error: msg}
}

func sourceOptions() models.OptionList {
	list := models.OptionList{Items: make([]models.Option, 0, len(models.AdmissionSources)), Loaded: true}
	for _, source := range models.AdmissionSources {
		list.Items = append(list.Items, models.Option{ID: string(source), Label: sourceLabels[source]})
	}
	return list
}
