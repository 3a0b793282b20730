package lms

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

// Course levels
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"

	defaultLanguage = "English"
)

// CourseData contains the information a teacher provides to create or replace a Course.
type CourseData struct {
	Title        string   `json:"title" validate:"notblank,max=255"`
	Description  string   `json:"description" validate:"notblank"`
	Price        float64  `json:"price" validate:"min=0"`
	Category     string   `json:"category" validate:"notblank,max=100"`
	Level        string   `json:"level" validate:"oneof=Beginner Intermediate Advanced"`
	Duration     string   `json:"duration" validate:"max=100"`
	Thumbnail    string   `json:"thumbnail" validate:"omitempty,url"`
	VideoURL     string   `json:"video_url" validate:"omitempty,url"`
	Language     string   `json:"language" validate:"max=64"`
	Tags         []string `json:"tags" validate:"max=20,dive,max=64"`
	Requirements []string `json:"requirements" validate:"dive,max=255"`
	Objectives   []string `json:"objectives" validate:"dive,max=255"`
	IsPublished  bool     `json:"is_published"`
}

func (cd *CourseData) Validate(validate *validator.Validate) error {
	cd.Title = core.CleanString(cd.Title)
	cd.Description = core.CleanString(cd.Description)
	cd.Category = core.CleanString(cd.Category)
	cd.Level = core.CleanString(cd.Level)
	if cd.Level == "" {
		cd.Level = LevelBeginner
	}
	cd.Duration = core.CleanString(cd.Duration)
	cd.Thumbnail = core.CleanString(cd.Thumbnail)
	cd.VideoURL = core.CleanString(cd.VideoURL)
	cd.Language = core.CleanString(cd.Language)
	if cd.Language == "" {
		cd.Language = defaultLanguage
	}
	cd.Tags = core.CleanStrings(cd.Tags)
	cd.Requirements = core.CleanStrings(cd.Requirements)
	cd.Objectives = core.CleanStrings(cd.Objectives)
	return validate.Struct(cd)
}

func (cd CourseData) apply(c *Course) {
	c.Title = cd.Title
	c.Description = cd.Description
	c.Price = cd.Price
	c.Category = cd.Category
	c.Level = cd.Level
	c.Duration = cd.Duration
	c.Thumbnail = cd.Thumbnail
	c.VideoURL = cd.VideoURL
	c.Language = cd.Language
	c.Tags = cd.Tags
	c.Requirements = cd.Requirements
	c.Objectives = cd.Objectives
	c.IsPublished = cd.IsPublished
}

func (svc *Service) CreateCourse(ctx context.Context, ident auth.Identity, data CourseData) (Course, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return Course{}, err
	}
	now := svc.nowFunc()
	c := Course{TeacherID: prof.ID, CreatedAt: now, UpdatedAt: now}
	data.apply(&c)
	return svc.repo.CreateCourse(ctx, c)
}

// UpdateCourse replaces the editable fields of a course previously obtained through OwnedCourse.
func (svc *Service) UpdateCourse(ctx context.Context, c Course, data CourseData) (Course, error) {
	data.apply(&c)
	c.UpdatedAt = svc.nowFunc()
	updated, err := svc.repo.UpdateCourse(ctx, c)
	if err != nil {
		return Course{}, notFound(err, KindCourse, c.ID)
	}
	return updated, nil
}

func (svc *Service) DeleteCourse(ctx context.Context, c Course) error {
	if err := svc.repo.DeleteCourse(ctx, c.ID, c.TeacherID); err != nil {
		return notFound(err, KindCourse, c.ID)
	}
	return nil
}

// TeacherCourses lists the teacher's courses, published or not, with their aggregates.
func (svc *Service) TeacherCourses(ctx context.Context, ident auth.Identity, ordering []core.DBOrdering) ([]CourseSummary, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterCourses(ctx, CourseFilter{TeacherID: prof.ID}, ordering)
}

// Catalog lists the published courses.
func (svc *Service) Catalog(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering) ([]CourseSummary, error) {
	filter.Clean()
	filter.TeacherID = 0
	filter.PublishedOnly = true
	return svc.repo.FilterCourses(ctx, filter, ordering)
}

// CourseDetail returns the course with its aggregates and lessons.
// Drafts are only visible to their teacher: unpublished lessons are hidden when publishedOnly is set.
func (svc *Service) CourseDetail(ctx context.Context, c Course, publishedOnly bool) (CourseDetail, error) {
	summaries, err := svc.repo.FilterCourses(ctx, CourseFilter{IDs: []int{c.ID}}, nil)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "getting course summary")
	}
	detail := CourseDetail{CourseSummary: CourseSummary{Course: c}}
	if len(summaries) > 0 {
		detail.CourseSummary = summaries[0]
	}
	detail.Lessons, err = svc.repo.QueryLessons(ctx, c.ID, publishedOnly)
	if err != nil {
		return CourseDetail{}, errors.Wrap(err, "querying lessons")
	}
	return detail, nil
}

// PublishedCourse returns a course visible in the catalog.
func (svc *Service) PublishedCourse(ctx context.Context, id int) (CourseDetail, error) {
	c, err := svc.repo.GetPublishedCourse(ctx, id)
	if err != nil {
		return CourseDetail{}, notFound(err, KindCourse, id)
	}
	return svc.CourseDetail(ctx, c, true /* publishedOnly */)
}

// AverageRating is the mean of the ratings rounded to 1 decimal place, 0 without ratings.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum int
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}
