package lms

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

// LessonData contains the information a teacher provides to create or replace a Lesson.
// CourseID is ignored on update.
type LessonData struct {
	CourseID    int      `json:"course_id"`
	Title       string   `json:"title" validate:"notblank,max=255"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	VideoURL    string   `json:"video_url" validate:"omitempty,url"`
	Duration    int      `json:"duration" validate:"min=0"`
	OrderIndex  int      `json:"order_index" validate:"min=0"`
	Resources   []string `json:"resources" validate:"dive,max=2048"`
	IsPublished bool     `json:"is_published"`
}

func (ld *LessonData) Validate(validate *validator.Validate) error {
	ld.Title = core.CleanString(ld.Title)
	ld.Description = core.CleanString(ld.Description)
	ld.VideoURL = core.CleanString(ld.VideoURL)
	ld.Resources = core.CleanStrings(ld.Resources)
	return validate.Struct(ld)
}

func (ld LessonData) apply(l *Lesson) {
	l.Title = ld.Title
	l.Description = ld.Description
	l.Content = ld.Content
	l.VideoURL = ld.VideoURL
	l.Duration = ld.Duration
	l.OrderIndex = ld.OrderIndex
	l.Resources = ld.Resources
	l.IsPublished = ld.IsPublished
}

// CreateLesson adds a lesson to one of the teacher's courses.
func (svc *Service) CreateLesson(ctx context.Context, ident auth.Identity, data LessonData) (Lesson, error) {
	c, err := svc.OwnedCourse(ctx, ident, data.CourseID)
	if err != nil {
		return Lesson{}, err
	}
	now := svc.nowFunc()
	l := Lesson{CourseID: c.ID, CreatedAt: now, UpdatedAt: now}
	data.apply(&l)
	l, err = svc.repo.CreateLesson(ctx, l, c.TeacherID)
	if err != nil {
		return Lesson{}, notFound(err, KindCourse, c.ID)
	}
	return l, nil
}

// CourseLessons lists all the lessons of a course obtained through OwnedCourse.
func (svc *Service) CourseLessons(ctx context.Context, c Course) ([]Lesson, error) {
	return svc.repo.QueryLessons(ctx, c.ID, false)
}

// UpdateLesson replaces the editable fields of a lesson previously obtained through OwnedLesson.
func (svc *Service) UpdateLesson(ctx context.Context, ident auth.Identity, l Lesson, data LessonData) (Lesson, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return Lesson{}, err
	}
	data.apply(&l)
	l.UpdatedAt = svc.nowFunc()
	updated, err := svc.repo.UpdateLesson(ctx, l, prof.ID)
	if err != nil {
		return Lesson{}, notFound(err, KindLesson, l.ID)
	}
	return updated, nil
}

func (svc *Service) DeleteLesson(ctx context.Context, ident auth.Identity, l Lesson) error {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteLesson(ctx, l.ID, prof.ID); err != nil {
		return notFound(err, KindLesson, l.ID)
	}
	return nil
}
