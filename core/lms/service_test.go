package lms_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-lms/assets"
	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/auth"
	"github.com/trezcool/masomo-lms/core/lms"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/services/email"
	"github.com/trezcool/masomo-lms/services/logger"
	"github.com/trezcool/masomo-lms/storage/database/inmem"
)

var (
	ctx    = context.Background()
	now    = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	points = func(f float64) *float64 { return &f }
)

type notifierStub struct {
	mu        sync.Mutex
	published []lms.Notification
}

func (n *notifierStub) Publish(notif lms.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, notif)
}

func (n *notifierStub) byType(typ lms.NotificationType) []lms.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []lms.Notification
	for _, notif := range n.published {
		if notif.Type == typ {
			res = append(res, notif)
		}
	}
	return res
}

type fixture struct {
	db       *inmemdb.DB
	svc      *lms.Service
	usrRepo  user.Repository
	notifier *notifierStub
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conf := &core.Config{AppName: "Masomo", TestMode: true}
	logger := logsvc.NewDiscardLogger()
	core.ParseEmailTemplates(assets.FS, conf, logger)
	emailsvc.SentMessages = emailsvc.SentMessages[:0]

	db := inmemdb.Open()
	notifier := &notifierStub{}
	svc := lms.NewService(inmemdb.NewLMSRepository(db), emailsvc.NewConsoleServiceMock(conf), notifier, logger)
	svc.SetNowFunc(func() time.Time { return now })
	return &fixture{db: db, svc: svc, usrRepo: inmemdb.NewUserRepository(db), notifier: notifier}
}

func (f *fixture) createUser(t *testing.T, name, email string, role user.Role) auth.Identity {
	t.Helper()
	usr, err := f.usrRepo.CreateUser(ctx, user.User{Name: name, Email: email, Role: role, IsActive: true, CreatedAt: now})
	require.NoError(t, err)
	return auth.IdentityFromUser(usr)
}

func (f *fixture) createCourse(t *testing.T, teacher auth.Identity, title string, price float64, published bool) lms.Course {
	t.Helper()
	c, err := f.svc.CreateCourse(ctx, teacher, lms.CourseData{
		Title:       title,
		Description: "About " + title,
		Price:       price,
		Category:    "Science",
		Level:       lms.LevelBeginner,
		Language:    "English",
		IsPublished: published,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) enroll(t *testing.T, student auth.Identity, courseID int) lms.Enrollment {
	t.Helper()
	e, err := f.svc.Enroll(ctx, student, lms.EnrollData{CourseID: courseID})
	require.NoError(t, err)
	return e
}

func (f *fixture) createAssignment(t *testing.T, teacher auth.Identity, courseID int, due time.Time, allowLate bool) lms.Assignment {
	t.Helper()
	a, err := f.svc.CreateAssignment(ctx, teacher, lms.AssignmentData{
		CourseID:            courseID,
		Title:               "Essay",
		Description:         "Write an essay",
		DueDate:             due,
		MaxPoints:           100,
		AllowLateSubmission: allowLate,
	})
	require.NoError(t, err)
	return a
}

func TestService_TeacherProfile_ProvisionedOnce(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)

	assert.Equal(t, 0, f.db.TeacherProfileCount(teacher.ID))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.TeacherProfile(ctx, teacher)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	prof, err := f.svc.TeacherProfile(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.TeacherProfileCount(teacher.ID))
	assert.Equal(t, teacher.ID, prof.UserID)
	assert.Equal(t, "", prof.Bio)
	assert.Equal(t, 0, prof.Experience)

	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	_, err = f.svc.TeacherProfile(ctx, student)
	assert.True(t, core.IsAuthorizationError(err))
	assert.Equal(t, 0, f.db.TeacherProfileCount(student.ID))
}

func TestService_SetupTeacherProfile(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)

	prof, err := f.svc.SetupTeacherProfile(ctx, teacher, lms.TeacherProfileData{Bio: "Physicist", Experience: 12})
	require.NoError(t, err)
	assert.Equal(t, "Physicist", prof.Bio)
	assert.Equal(t, 12, prof.Experience)
	assert.Equal(t, 1, f.db.TeacherProfileCount(teacher.ID))
}

func TestService_RequireOwnedResource(t *testing.T) {
	f := setup(t)
	owner := f.createUser(t, "Owner", "owner@test.cd", user.RoleTeacher)
	other := f.createUser(t, "Other", "other@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	c := f.createCourse(t, owner, "Physics", 0, true)

	tests := []struct {
		name      string
		ident     auth.Identity
		kind      lms.ResourceKind
		id        int
		wantErrFn func(error) bool
	}{
		{name: "owned", ident: owner, kind: lms.KindCourse, id: c.ID},
		{name: "owned by another teacher", ident: other, kind: lms.KindCourse, id: c.ID, wantErrFn: core.IsNotFoundError},
		{name: "missing", ident: owner, kind: lms.KindCourse, id: c.ID + 100, wantErrFn: core.IsNotFoundError},
		{name: "wrong role", ident: student, kind: lms.KindCourse, id: c.ID, wantErrFn: core.IsAuthorizationError},
		{name: "missing enrollment", ident: student, kind: lms.KindEnrollment, id: 1, wantErrFn: core.IsNotFoundError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.RequireOwnedResource(ctx, tt.ident, tt.kind, tt.id)
			if tt.wantErrFn != nil {
				assert.True(t, tt.wantErrFn(err), "unexpected error: %v", err)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.ID, res.(lms.Course).ID)
		})
	}

	// not-owned and missing resources are indistinguishable
	_, errOther := f.svc.OwnedCourse(ctx, other, c.ID)
	_, errMissing := f.svc.OwnedCourse(ctx, other, c.ID+100)
	assert.Equal(t, "course not found", errOther.Error())
	assert.Equal(t, errOther.Error(), errMissing.Error())
}

func TestService_Lessons_UpdateCourseCounters(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	other := f.createUser(t, "Other", "other@test.cd", user.RoleTeacher)
	c := f.createCourse(t, teacher, "Physics", 0, true)

	l1, err := f.svc.CreateLesson(ctx, teacher, lms.LessonData{CourseID: c.ID, Title: "Intro", Duration: 30, IsPublished: true})
	require.NoError(t, err)
	_, err = f.svc.CreateLesson(ctx, teacher, lms.LessonData{CourseID: c.ID, Title: "Draft", Duration: 15, OrderIndex: 1})
	require.NoError(t, err)

	_, err = f.svc.CreateLesson(ctx, other, lms.LessonData{CourseID: c.ID, Title: "Intruder", Duration: 5})
	assert.True(t, core.IsNotFoundError(err))

	c, err = f.svc.OwnedCourse(ctx, teacher, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalLessons)
	assert.Equal(t, 45, c.TotalDuration)

	_, err = f.svc.UpdateLesson(ctx, teacher, l1, lms.LessonData{Title: "Intro", Duration: 40, IsPublished: true})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteLesson(ctx, teacher, l1))

	c, err = f.svc.OwnedCourse(ctx, teacher, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalLessons)
	assert.Equal(t, 15, c.TotalDuration)

	detail, err := f.svc.PublishedCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Lessons, "draft lessons are hidden from the catalog")
}

func TestService_Catalog(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	published := f.createCourse(t, teacher, "Physics", 0, true)
	f.createCourse(t, teacher, "Draft", 0, false)

	courses, err := f.svc.Catalog(ctx, lms.CourseFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, published.ID, courses[0].ID)

	_, err = f.svc.PublishedCourse(ctx, published.ID+1)
	assert.True(t, core.IsNotFoundError(err))

	mine, err := f.svc.TeacherCourses(ctx, teacher, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestService_Enroll(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	free := f.createCourse(t, teacher, "Free", 0, true)
	paid := f.createCourse(t, teacher, "Paid", 49.99, true)
	draft := f.createCourse(t, teacher, "Draft", 0, false)

	e := f.enroll(t, student, free.ID)
	assert.Equal(t, lms.EnrollmentActive, e.Status)
	assert.Equal(t, now, e.EnrolledAt)

	_, err := f.svc.Enroll(ctx, student, lms.EnrollData{CourseID: free.ID})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, lms.ErrAlreadyEnrolled, verr.Err)

	_, err = f.svc.Enroll(ctx, student, lms.EnrollData{CourseID: draft.ID})
	assert.True(t, core.IsNotFoundError(err))

	_, err = f.svc.Enroll(ctx, teacher, lms.EnrollData{CourseID: free.ID})
	assert.True(t, core.IsAuthorizationError(err))

	f.enroll(t, student, paid.ID)
	payments, err := f.svc.TeacherPayments(ctx, teacher, 0)
	require.NoError(t, err)
	require.Len(t, payments, 1, "free courses are not paid")
	assert.Equal(t, paid.ID, payments[0].CourseID)
	assert.Equal(t, 49.99, payments[0].Amount)
	assert.Equal(t, lms.PaymentCompleted, payments[0].Status)
	assert.Equal(t, "Student", payments[0].StudentName)
	assert.NotEmpty(t, payments[0].Reference)

	assert.Len(t, f.notifier.byType(lms.NotificationEnrollment), 2)

	students, err := f.svc.TeacherStudents(ctx, teacher, free.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, student.ID, students[0].StudentUserID)
	assert.Equal(t, "student@test.cd", students[0].StudentEmail)
}

func TestService_UpdateProgress(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	other := f.createUser(t, "Other", "other@test.cd", user.RoleStudent)
	c := f.createCourse(t, teacher, "Physics", 0, true)
	e := f.enroll(t, student, c.ID)

	_, err := f.svc.OwnedEnrollment(ctx, other, e.ID)
	assert.True(t, core.IsNotFoundError(err))

	e, err = f.svc.UpdateProgress(ctx, e, lms.ProgressData{Progress: points(40)})
	require.NoError(t, err)
	assert.Equal(t, lms.EnrollmentActive, e.Status)
	assert.False(t, e.CompletedAt.Valid)

	e, err = f.svc.UpdateProgress(ctx, e, lms.ProgressData{Progress: points(100)})
	require.NoError(t, err)
	assert.Equal(t, lms.EnrollmentCompleted, e.Status)
	assert.True(t, e.CompletedAt.Valid)
	assert.Equal(t, now, e.CompletedAt.Time)
}

func TestService_ReviewCourse(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	outsider := f.createUser(t, "Outsider", "outsider@test.cd", user.RoleStudent)
	c := f.createCourse(t, teacher, "Physics", 0, true)
	f.enroll(t, student, c.ID)

	_, err := f.svc.ReviewCourse(ctx, outsider, c.ID, lms.ReviewData{Rating: 5})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, lms.ErrNotEnrolled, verr.Err)

	_, err = f.svc.ReviewCourse(ctx, student, c.ID, lms.ReviewData{Rating: 2})
	require.NoError(t, err)
	rev, err := f.svc.ReviewCourse(ctx, student, c.ID, lms.ReviewData{Rating: 4, Comment: "Better"})
	require.NoError(t, err)
	assert.Equal(t, 4, rev.Rating)

	reviews, err := f.svc.CourseReviews(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1, "a review is replaced, not duplicated")

	detail, err := f.svc.PublishedCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, detail.AverageRating)
	assert.Equal(t, 1, detail.EnrollmentCount)
}

func TestService_SubmitAssignment(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	outsider := f.createUser(t, "Outsider", "outsider@test.cd", user.RoleStudent)
	c := f.createCourse(t, teacher, "Physics", 0, true)
	f.enroll(t, student, c.ID)

	open := f.createAssignment(t, teacher, c.ID, now.Add(24*time.Hour), false)
	closed := f.createAssignment(t, teacher, c.ID, now.Add(-time.Hour), false)
	lenient := f.createAssignment(t, teacher, c.ID, now.Add(-time.Hour), true)
	data := lms.SubmissionData{Content: "My answer"}

	sub, err := f.svc.SubmitAssignment(ctx, student, open.ID, data)
	require.NoError(t, err)
	assert.Equal(t, lms.SubmissionSubmitted, sub.Status)

	_, err = f.svc.SubmitAssignment(ctx, student, open.ID, lms.SubmissionData{Content: "Second thoughts"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.SubmissionCount(open.ID, sub.StudentID), "resubmitting replaces the submission")

	_, err = f.svc.SubmitAssignment(ctx, student, closed.ID, data)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, lms.ErrDueDatePassed, verr.Err)

	sub, err = f.svc.SubmitAssignment(ctx, student, lenient.ID, data)
	require.NoError(t, err)
	assert.Equal(t, lms.SubmissionLate, sub.Status)

	_, err = f.svc.SubmitAssignment(ctx, outsider, open.ID, data)
	assert.True(t, core.IsNotFoundError(err))

	assignments, err := f.svc.StudentAssignments(ctx, student)
	require.NoError(t, err)
	assert.Len(t, assignments, 3)
	assignments, err = f.svc.StudentAssignments(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestService_GradeSubmission(t *testing.T) {
	f := setup(t)
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher)
	other := f.createUser(t, "Other", "other@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	c := f.createCourse(t, teacher, "Physics", 0, true)
	f.enroll(t, student, c.ID)
	a := f.createAssignment(t, teacher, c.ID, now.Add(24*time.Hour), false)

	sub, err := f.svc.SubmitAssignment(ctx, student, a.ID, lms.SubmissionData{Content: "My answer"})
	require.NoError(t, err)

	_, err = f.svc.OwnedSubmission(ctx, other, sub.ID)
	assert.True(t, core.IsNotFoundError(err), "submissions of other teachers' assignments are not found")

	owned, err := f.svc.OwnedSubmission(ctx, teacher, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.GradeSubmission(ctx, owned, lms.GradeData{Grade: points(101)})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "grade", verr.Fields[0].Field)

	graded, err := f.svc.GradeSubmission(ctx, owned, lms.GradeData{Grade: points(85), Feedback: "Good"})
	require.NoError(t, err)
	assert.Equal(t, lms.SubmissionGraded, graded.Status)
	assert.Equal(t, 85.0, graded.Grade.Float64)
	assert.True(t, graded.GradedAt.Valid)
	assert.Equal(t, now, graded.GradedAt.Time)

	// grading again updates the same submission
	owned, err = f.svc.OwnedSubmission(ctx, teacher, sub.ID)
	require.NoError(t, err)
	graded, err = f.svc.GradeSubmission(ctx, owned, lms.GradeData{Grade: points(90), Feedback: "Great"})
	require.NoError(t, err)
	assert.Equal(t, sub.ID, graded.ID)
	assert.Equal(t, 90.0, graded.Grade.Float64)
	assert.Equal(t, "Great", graded.Feedback)
	assert.Equal(t, 1, f.db.SubmissionCount(a.ID, sub.StudentID))

	subs, err := f.svc.StudentSubmissions(ctx, student)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 90.0, subs[0].Grade.Float64)

	grades := f.notifier.byType(lms.NotificationGrade)
	require.Len(t, grades, 2)
	assert.Equal(t, student.ID, grades[1].UserID)
	assert.Contains(t, grades[1].Message, "90/100")

	require.Len(t, emailsvc.SentMessages, 2)
	assert.Equal(t, "student@test.cd", emailsvc.SentMessages[1].To[0].Address)
	assert.Contains(t, emailsvc.SentMessages[1].TextContent, "Great")

	// graded submissions are final for the student
	_, err = f.svc.SubmitAssignment(ctx, student, a.ID, lms.SubmissionData{Content: "Late edit"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, lms.ErrAlreadyGraded, verr.Err)
}

func TestService_SendPendingReminders(t *testing.T) {
	f := setup(t)
	busy := f.createUser(t, "Busy", "busy@test.cd", user.RoleTeacher)
	idle := f.createUser(t, "Idle", "idle@test.cd", user.RoleTeacher)
	student := f.createUser(t, "Student", "student@test.cd", user.RoleStudent)
	c := f.createCourse(t, busy, "Physics", 0, true)
	f.createCourse(t, idle, "Chemistry", 0, true)
	f.enroll(t, student, c.ID)

	for i := 0; i < 2; i++ {
		a := f.createAssignment(t, busy, c.ID, now.Add(time.Hour), false)
		_, err := f.svc.SubmitAssignment(ctx, student, a.ID, lms.SubmissionData{Content: "Done"})
		require.NoError(t, err)
	}

	sent, err := f.svc.SendPendingReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	notifs, err := f.svc.Notifications(ctx, busy, true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, lms.NotificationReminder, notifs[0].Type)
	assert.Contains(t, notifs[0].Message, "2 submission(s)")

	read, err := f.svc.MarkNotificationRead(ctx, busy, notifs[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	_, err = f.svc.MarkNotificationRead(ctx, idle, notifs[0].ID)
	assert.True(t, core.IsNotFoundError(err))

	notifs, err = f.svc.Notifications(ctx, busy, true)
	require.NoError(t, err)
	assert.Empty(t, notifs)
}
