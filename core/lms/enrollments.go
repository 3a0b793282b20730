package lms

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

const defaultCurrency = "USD"

var (
	// errors
	ErrAlreadyEnrolled = errors.New("you are already enrolled in this course")
	ErrNotEnrolled     = errors.New("you are not enrolled in this course")
)

type EnrollData struct {
	CourseID int `json:"course_id" validate:"required,min=1"`
}

func (ed EnrollData) Validate(validate *validator.Validate) error { return validate.Struct(ed) }

// Enroll enrolls the student in a published course.
// A paid course is checked out at once: the payment is recorded COMPLETED along with the enrollment.
// The course's teacher is notified.
func (svc *Service) Enroll(ctx context.Context, ident auth.Identity, data EnrollData) (Enrollment, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return Enrollment{}, err
	}
	c, err := svc.repo.GetPublishedCourse(ctx, data.CourseID)
	if err != nil {
		return Enrollment{}, notFound(err, KindCourse, data.CourseID)
	}

	now := svc.nowFunc()
	e := Enrollment{
		StudentID:  prof.ID,
		CourseID:   c.ID,
		Status:     EnrollmentActive,
		EnrolledAt: now,
	}
	var payment *Payment
	if c.Price > 0 {
		payment = &Payment{
			StudentID: prof.ID,
			CourseID:  c.ID,
			Amount:    c.Price,
			Currency:  defaultCurrency,
			Status:    PaymentCompleted,
			Reference: uuid.NewString(),
			CreatedAt: now,
		}
	}

	e, err = svc.repo.CreateEnrollment(ctx, e, payment)
	if err != nil {
		if errors.Cause(err) == ErrExists {
			return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "course_id", Error: ErrAlreadyEnrolled.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	teacher, err := svc.repo.GetTeacherProfile(ctx, c.TeacherID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("getting course teacher: %v", err), err, ident)
		return e, nil
	}
	svc.notify(ctx, Notification{
		UserID:  teacher.UserID,
		Type:    NotificationEnrollment,
		Title:   "New enrollment",
		Message: fmt.Sprintf("%s enrolled in %s.", ident.Name, c.Title),
	})
	return e, nil
}

func (svc *Service) StudentEnrollments(ctx context.Context, ident auth.Identity) ([]EnrollmentDetail, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterEnrollments(ctx, EnrollmentFilter{StudentID: prof.ID})
}

type ProgressData struct {
	Progress *float64 `json:"progress" validate:"required,min=0,max=100"`
}

func (pd ProgressData) Validate(validate *validator.Validate) error { return validate.Struct(pd) }

// UpdateProgress records the progress of an enrollment previously obtained through OwnedEnrollment.
// Reaching 100 completes the enrollment.
func (svc *Service) UpdateProgress(ctx context.Context, e Enrollment, data ProgressData) (Enrollment, error) {
	e.Progress = math.Round(*data.Progress*100) / 100
	if e.Progress >= 100 {
		if e.Status != EnrollmentCompleted {
			e.Status = EnrollmentCompleted
			e.CompletedAt.SetValid(svc.nowFunc())
		}
	} else if e.Status == EnrollmentCompleted {
		e.Status = EnrollmentActive
		e.CompletedAt.Valid = false
	}

	updated, err := svc.repo.UpdateEnrollment(ctx, e)
	if err != nil {
		return Enrollment{}, notFound(err, KindEnrollment, e.ID)
	}
	return updated, nil
}

type ReviewData struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=5000"`
}

func (rd *ReviewData) Validate(validate *validator.Validate) error {
	rd.Comment = core.CleanString(rd.Comment)
	return validate.Struct(rd)
}

// ReviewCourse creates or replaces the student's review of a course they are enrolled in.
func (svc *Service) ReviewCourse(ctx context.Context, ident auth.Identity, courseID int, data ReviewData) (Review, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return Review{}, err
	}
	if _, err = svc.repo.GetStudentEnrollment(ctx, courseID, prof.ID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Review{}, core.NewValidationError(ErrNotEnrolled)
		}
		return Review{}, errors.Wrap(err, "getting enrollment")
	}

	now := svc.nowFunc()
	return svc.repo.UpsertReview(ctx, Review{
		CourseID:  courseID,
		StudentID: prof.ID,
		Rating:    data.Rating,
		Comment:   data.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) CourseReviews(ctx context.Context, courseID int) ([]Review, error) {
	return svc.repo.QueryReviews(ctx, courseID)
}

// TeacherStudents lists the enrollments in the teacher's courses.
func (svc *Service) TeacherStudents(ctx context.Context, ident auth.Identity, courseID int) ([]EnrollmentDetail, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterEnrollments(ctx, EnrollmentFilter{TeacherID: prof.ID, CourseID: courseID})
}

// TeacherPayments lists the payments for the teacher's courses.
func (svc *Service) TeacherPayments(ctx context.Context, ident auth.Identity, courseID int) ([]PaymentDetail, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterPayments(ctx, PaymentFilter{TeacherID: prof.ID, CourseID: courseID})
}
