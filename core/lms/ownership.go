package lms

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/auth"
)

type ResourceKind string

// Owned resources
const (
	KindCourse       ResourceKind = "course"
	KindLesson       ResourceKind = "lesson"
	KindAssignment   ResourceKind = "assignment"
	KindSubmission   ResourceKind = "submission"
	KindQuiz         ResourceKind = "quiz"
	KindEnrollment   ResourceKind = "enrollment"
	KindNotification ResourceKind = "notification"
)

// RequireOwnedResource fetches the resource of the given kind by id with a single query restricted to the
// resources owned by ident. Courses, lessons, assignments, submissions and quizzes are owned by teachers,
// enrollments by students and notifications by their recipient.
// A resource that does not exist and one owned by someone else both give a core.NotFoundError.
func (svc *Service) RequireOwnedResource(ctx context.Context, ident auth.Identity, kind ResourceKind, id int) (interface{}, error) {
	res, err := svc.getOwnedResource(ctx, ident, kind, id)
	if err != nil {
		if oe, ok := err.(ownerError); ok {
			return nil, oe.err
		}
		return nil, notFound(err, kind, id)
	}
	return res, nil
}

// ownerError wraps a failure to resolve the owner profile so it is not mistaken for a missing resource.
type ownerError struct{ err error }

func (e ownerError) Error() string { return e.err.Error() }

func (svc *Service) getOwnedResource(ctx context.Context, ident auth.Identity, kind ResourceKind, id int) (interface{}, error) {
	switch kind {
	case KindCourse, KindLesson, KindAssignment, KindSubmission, KindQuiz:
		prof, err := svc.TeacherProfile(ctx, ident)
		if err != nil {
			return nil, ownerError{err}
		}
		switch kind {
		case KindCourse:
			return svc.repo.GetCourse(ctx, id, prof.ID)
		case KindLesson:
			return svc.repo.GetLesson(ctx, id, prof.ID)
		case KindAssignment:
			return svc.repo.GetAssignment(ctx, id, prof.ID)
		case KindSubmission:
			return svc.repo.GetSubmission(ctx, id, prof.ID)
		default:
			return svc.repo.GetQuiz(ctx, id, prof.ID)
		}
	case KindEnrollment:
		prof, err := svc.StudentProfile(ctx, ident)
		if err != nil {
			return nil, ownerError{err}
		}
		return svc.repo.GetEnrollment(ctx, id, prof.ID)
	case KindNotification:
		return svc.repo.GetNotification(ctx, id, ident.ID)
	default:
		return nil, ownerError{errors.Errorf("unknown resource kind %q", kind)}
	}
}

func (svc *Service) OwnedCourse(ctx context.Context, ident auth.Identity, id int) (Course, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindCourse, id)
	if err != nil {
		return Course{}, err
	}
	return res.(Course), nil
}

func (svc *Service) OwnedLesson(ctx context.Context, ident auth.Identity, id int) (Lesson, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindLesson, id)
	if err != nil {
		return Lesson{}, err
	}
	return res.(Lesson), nil
}

func (svc *Service) OwnedAssignment(ctx context.Context, ident auth.Identity, id int) (Assignment, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindAssignment, id)
	if err != nil {
		return Assignment{}, err
	}
	return res.(Assignment), nil
}

func (svc *Service) OwnedSubmission(ctx context.Context, ident auth.Identity, id int) (SubmissionDetail, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindSubmission, id)
	if err != nil {
		return SubmissionDetail{}, err
	}
	return res.(SubmissionDetail), nil
}

func (svc *Service) OwnedQuiz(ctx context.Context, ident auth.Identity, id int) (Quiz, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindQuiz, id)
	if err != nil {
		return Quiz{}, err
	}
	return res.(Quiz), nil
}

func (svc *Service) OwnedEnrollment(ctx context.Context, ident auth.Identity, id int) (Enrollment, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindEnrollment, id)
	if err != nil {
		return Enrollment{}, err
	}
	return res.(Enrollment), nil
}

func (svc *Service) OwnedNotification(ctx context.Context, ident auth.Identity, id int) (Notification, error) {
	res, err := svc.RequireOwnedResource(ctx, ident, KindNotification, id)
	if err != nil {
		return Notification{}, err
	}
	return res.(Notification), nil
}
