package lms

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
)

const defaultMaxPoints = 100

var (
	// errors
	ErrDueDatePassed   = errors.New("the due date of this assignment has passed")
	ErrAlreadyGraded   = errors.New("this submission has already been graded")
	ErrEmptySubmission = errors.New("a submission needs some content or attachments")
)

// AssignmentData contains the information a teacher provides to create or replace an Assignment.
// CourseID is ignored on update.
type AssignmentData struct {
	CourseID            int       `json:"course_id"`
	Title               string    `json:"title" validate:"notblank,max=255"`
	Description         string    `json:"description" validate:"notblank"`
	Instructions        string    `json:"instructions"`
	DueDate             time.Time `json:"due_date" validate:"required"`
	MaxPoints           int       `json:"max_points" validate:"min=1,max=1000"`
	Attachments         []string  `json:"attachments" validate:"dive,max=2048"`
	AllowLateSubmission bool      `json:"allow_late_submission"`
}

func (ad *AssignmentData) Validate(validate *validator.Validate) error {
	ad.Title = core.CleanString(ad.Title)
	ad.Description = core.CleanString(ad.Description)
	ad.Instructions = core.CleanString(ad.Instructions)
	ad.Attachments = core.CleanStrings(ad.Attachments)
	if ad.MaxPoints == 0 {
		ad.MaxPoints = defaultMaxPoints
	}
	ad.DueDate = ad.DueDate.UTC()
	return validate.Struct(ad)
}

func (ad AssignmentData) apply(a *Assignment) {
	a.Title = ad.Title
	a.Description = ad.Description
	a.Instructions = ad.Instructions
	a.DueDate = ad.DueDate
	a.MaxPoints = ad.MaxPoints
	a.Attachments = ad.Attachments
	a.AllowLateSubmission = ad.AllowLateSubmission
}

func (svc *Service) CreateAssignment(ctx context.Context, ident auth.Identity, data AssignmentData) (Assignment, error) {
	c, err := svc.OwnedCourse(ctx, ident, data.CourseID)
	if err != nil {
		return Assignment{}, err
	}
	now := svc.nowFunc()
	a := Assignment{CourseID: c.ID, TeacherID: c.TeacherID, CreatedAt: now, UpdatedAt: now}
	data.apply(&a)
	return svc.repo.CreateAssignment(ctx, a)
}

// UpdateAssignment replaces the editable fields of an assignment previously obtained through OwnedAssignment.
func (svc *Service) UpdateAssignment(ctx context.Context, a Assignment, data AssignmentData) (Assignment, error) {
	data.apply(&a)
	a.UpdatedAt = svc.nowFunc()
	updated, err := svc.repo.UpdateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, notFound(err, KindAssignment, a.ID)
	}
	return updated, nil
}

func (svc *Service) DeleteAssignment(ctx context.Context, a Assignment) error {
	if err := svc.repo.DeleteAssignment(ctx, a.ID, a.TeacherID); err != nil {
		return notFound(err, KindAssignment, a.ID)
	}
	return nil
}

// TeacherAssignments lists the teacher's assignments, optionally restricted to one course.
func (svc *Service) TeacherAssignments(ctx context.Context, ident auth.Identity, courseID int) ([]Assignment, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterAssignments(ctx, AssignmentFilter{TeacherID: prof.ID, CourseID: courseID})
}

// TeacherSubmissions lists the submissions to the teacher's assignments, optionally restricted to one assignment.
func (svc *Service) TeacherSubmissions(ctx context.Context, ident auth.Identity, assignmentID int) ([]SubmissionDetail, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterSubmissions(ctx, SubmissionFilter{TeacherID: prof.ID, AssignmentID: assignmentID})
}

type GradeData struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback string   `json:"feedback" validate:"max=5000"`
}

func (gd *GradeData) Validate(validate *validator.Validate) error {
	gd.Feedback = core.CleanString(gd.Feedback)
	return validate.Struct(gd)
}

// GradeSubmission grades a submission previously obtained through OwnedSubmission.
// Grading again overwrites the previous grade of the same submission.
// The student is notified in-app and by email.
func (svc *Service) GradeSubmission(ctx context.Context, sub SubmissionDetail, data GradeData) (SubmissionDetail, error) {
	grade := *data.Grade
	if grade < 0 || grade > float64(sub.MaxPoints) {
		msg := fmt.Sprintf("grade must be between 0 and %d", sub.MaxPoints)
		return SubmissionDetail{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "grade", Error: msg})
	}

	graded, err := svc.repo.GradeSubmission(ctx, sub.ID, sub.TeacherID, grade, data.Feedback, svc.nowFunc())
	if err != nil {
		return SubmissionDetail{}, notFound(err, KindSubmission, sub.ID)
	}
	sub.Submission = graded

	svc.notify(ctx, Notification{
		UserID:  sub.StudentUserID,
		Type:    NotificationGrade,
		Title:   "Assignment graded",
		Message: fmt.Sprintf("%s: %s/%d", sub.AssignmentTitle, formatGrade(grade), sub.MaxPoints),
	})
	if sub.StudentEmail != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: sub.StudentName, Address: sub.StudentEmail}},
			Subject:      "Your assignment has been graded",
			TemplateName: "submission_graded",
			TemplateData: map[string]interface{}{
				"StudentName":     sub.StudentName,
				"AssignmentTitle": sub.AssignmentTitle,
				"Grade":           formatGrade(grade),
				"MaxPoints":       sub.MaxPoints,
				"Feedback":        data.Feedback,
			},
		})
	}
	return sub, nil
}

func formatGrade(grade float64) string {
	return fmt.Sprintf("%g", grade)
}

// StudentAssignments lists the assignments of the courses the student is enrolled in.
func (svc *Service) StudentAssignments(ctx context.Context, ident auth.Identity) ([]Assignment, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterAssignments(ctx, AssignmentFilter{StudentID: prof.ID})
}

func (svc *Service) StudentSubmissions(ctx context.Context, ident auth.Identity) ([]SubmissionDetail, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return nil, err
	}
	return svc.repo.FilterSubmissions(ctx, SubmissionFilter{StudentID: prof.ID})
}

type SubmissionData struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments" validate:"max=10,dive,max=2048"`
}

func (sd *SubmissionData) Validate(validate *validator.Validate) error {
	sd.Content = core.CleanString(sd.Content)
	sd.Attachments = core.CleanStrings(sd.Attachments)
	if err := validate.Struct(sd); err != nil {
		return err
	}
	if sd.Content == "" && len(sd.Attachments) == 0 {
		return core.NewValidationError(ErrEmptySubmission, core.FieldError{Field: "content", Error: ErrEmptySubmission.Error()})
	}
	return nil
}

// SubmitAssignment creates or replaces the student's submission to an assignment of one of their courses.
// Submitting after the due date is only possible when the assignment allows it, and marks the submission LATE.
// A graded submission can no longer be replaced.
func (svc *Service) SubmitAssignment(ctx context.Context, ident auth.Identity, assignmentID int, data SubmissionData) (Submission, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, notFound(err, KindAssignment, assignmentID)
	}
	if _, err = svc.repo.GetStudentEnrollment(ctx, a.CourseID, prof.ID); err != nil {
		// assignments of other courses are invisible to the student
		return Submission{}, notFound(err, KindAssignment, assignmentID)
	}

	existing, err := svc.repo.GetStudentSubmission(ctx, a.ID, prof.ID)
	switch {
	case err == nil && existing.Status == SubmissionGraded:
		return Submission{}, core.NewValidationError(ErrAlreadyGraded)
	case err != nil && errors.Cause(err) != ErrNotFound:
		return Submission{}, errors.Wrap(err, "getting existing submission")
	}

	now := svc.nowFunc()
	status := SubmissionSubmitted
	if now.After(a.DueDate) {
		if !a.AllowLateSubmission {
			return Submission{}, core.NewValidationError(ErrDueDatePassed)
		}
		status = SubmissionLate
	}

	sub, err := svc.repo.UpsertSubmission(ctx, Submission{
		AssignmentID: a.ID,
		StudentID:    prof.ID,
		Content:      data.Content,
		Attachments:  data.Attachments,
		Status:       status,
		SubmittedAt:  now,
	})
	if errors.Cause(err) == ErrAlreadyGraded {
		// graded in the meantime
		return Submission{}, core.NewValidationError(ErrAlreadyGraded)
	}
	return sub, err
}
