package lms

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/user"
)

type (
	// Notifier pushes stored notifications to their connected recipients.
	Notifier interface {
		Publish(n Notification)
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		notifier Notifier
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, mailSvc core.EmailService, notifier Notifier, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		notifier: notifier,
		logger:   logger,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// TeacherProfile returns the teacher's profile, creating an empty one on first use.
func (svc *Service) TeacherProfile(ctx context.Context, ident auth.Identity) (TeacherProfile, error) {
	if ident.Role != user.RoleTeacher {
		return TeacherProfile{}, core.NewAuthorizationError(ident.Role.String())
	}
	prof, err := svc.repo.GetOrCreateTeacherProfile(ctx, ident.ID)
	return prof, errors.Wrap(err, "getting teacher profile")
}

// StudentProfile returns the student's profile, creating an empty one on first use.
func (svc *Service) StudentProfile(ctx context.Context, ident auth.Identity) (StudentProfile, error) {
	if ident.Role != user.RoleStudent {
		return StudentProfile{}, core.NewAuthorizationError(ident.Role.String())
	}
	prof, err := svc.repo.GetOrCreateStudentProfile(ctx, ident.ID)
	return prof, errors.Wrap(err, "getting student profile")
}

type TeacherProfileData struct {
	Bio           string `json:"bio" validate:"max=5000"`
	Expertise     string `json:"expertise" validate:"max=255"`
	Qualification string `json:"qualification" validate:"max=255"`
	Experience    int    `json:"experience" validate:"min=0,max=80"`
}

func (d *TeacherProfileData) Validate(validate *validator.Validate) error {
	d.Bio = core.CleanString(d.Bio)
	d.Expertise = core.CleanString(d.Expertise)
	d.Qualification = core.CleanString(d.Qualification)
	return validate.Struct(d)
}

func (svc *Service) SetupTeacherProfile(ctx context.Context, ident auth.Identity, data TeacherProfileData) (TeacherProfile, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return TeacherProfile{}, err
	}
	prof.Bio = data.Bio
	prof.Expertise = data.Expertise
	prof.Qualification = data.Qualification
	prof.Experience = data.Experience
	prof.UpdatedAt = svc.nowFunc()
	return svc.repo.UpdateTeacherProfile(ctx, prof)
}

type StudentProfileData struct {
	Bio        string   `json:"bio" validate:"max=5000"`
	GradeLevel string   `json:"grade_level" validate:"max=64"`
	Interests  []string `json:"interests" validate:"max=20,dive,max=64"`
}

func (d *StudentProfileData) Validate(validate *validator.Validate) error {
	d.Bio = core.CleanString(d.Bio)
	d.GradeLevel = core.CleanString(d.GradeLevel)
	d.Interests = core.CleanStrings(d.Interests)
	return validate.Struct(d)
}

func (svc *Service) UpdateStudentProfile(ctx context.Context, ident auth.Identity, data StudentProfileData) (StudentProfile, error) {
	prof, err := svc.StudentProfile(ctx, ident)
	if err != nil {
		return StudentProfile{}, err
	}
	prof.Bio = data.Bio
	prof.GradeLevel = data.GradeLevel
	prof.Interests = data.Interests
	prof.UpdatedAt = svc.nowFunc()
	return svc.repo.UpdateStudentProfile(ctx, prof)
}

// notFound converts the repository's ErrNotFound into the NotFoundError of the resource.
func notFound(err error, kind ResourceKind, id int) error {
	if errors.Cause(err) == ErrNotFound {
		return core.NewNotFoundError(string(kind), id)
	}
	return errors.Wrapf(err, "getting %s", kind)
}
