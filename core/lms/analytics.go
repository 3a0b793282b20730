package lms

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-lms/core/auth"
)

const topStudentsLimit = 5

type (
	DashboardStats struct {
		TotalStudents      int     `json:"total_students"`
		ActiveCourses      int     `json:"active_courses"`
		TotalRevenue       float64 `json:"total_revenue"`
		AverageGrade       float64 `json:"average_grade"`
		PendingSubmissions int     `json:"pending_submissions"`
		CompletionRate     float64 `json:"completion_rate"` // %
	}

	MonthlyRevenue struct {
		Month   string  `json:"month"` // YYYY-MM
		Revenue float64 `json:"revenue"`
	}

	StudentGrade struct {
		Name  string  `json:"name"`
		Grade float64 `json:"grade"`
	}

	CourseStats struct {
		ID             int     `json:"id"`
		Title          string  `json:"title"`
		Enrollments    int     `json:"enrollments"`
		CompletionRate float64 `json:"completion_rate"`
		AverageRating  float64 `json:"average_rating"`
	}

	Analytics struct {
		CourseID              int              `json:"course_id,omitempty"`
		TotalEnrollments      int              `json:"total_enrollments"`
		CompletionRate        float64          `json:"completion_rate"`
		AverageGrade          float64          `json:"average_grade"`
		AverageRating         float64          `json:"average_rating"`
		TotalRevenue          float64          `json:"total_revenue"`
		RevenueByMonth        []MonthlyRevenue `json:"revenue_by_month"`
		TopPerformingStudents []StudentGrade   `json:"top_performing_students"`
		CourseStats           []CourseStats    `json:"course_stats"`
	}
)

// Dashboard sums up the teacher's courses.
func (svc *Service) Dashboard(ctx context.Context, ident auth.Identity) (DashboardStats, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return DashboardStats{}, err
	}
	courses, err := svc.repo.FilterCourses(ctx, CourseFilter{TeacherID: prof.ID}, nil)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "filtering courses")
	}
	enrollments, err := svc.repo.FilterEnrollments(ctx, EnrollmentFilter{TeacherID: prof.ID})
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "filtering enrollments")
	}
	payments, err := svc.repo.FilterPayments(ctx, PaymentFilter{TeacherID: prof.ID})
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "filtering payments")
	}
	subs, err := svc.repo.FilterSubmissions(ctx, SubmissionFilter{TeacherID: prof.ID})
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "filtering submissions")
	}

	stats := DashboardStats{
		TotalStudents:  len(enrollments),
		TotalRevenue:   revenue(payments),
		AverageGrade:   averageGrade(subs),
		CompletionRate: completionRate(enrollments),
	}
	for _, c := range courses {
		if c.IsPublished {
			stats.ActiveCourses++
		}
	}
	for _, s := range subs {
		if s.Status == SubmissionSubmitted {
			stats.PendingSubmissions++
		}
	}
	return stats, nil
}

// Analytics reports on the teacher's courses, or on one of them when courseID is not 0.
func (svc *Service) Analytics(ctx context.Context, ident auth.Identity, courseID int) (Analytics, error) {
	prof, err := svc.TeacherProfile(ctx, ident)
	if err != nil {
		return Analytics{}, err
	}
	courseFilter := CourseFilter{TeacherID: prof.ID}
	if courseID != 0 {
		if _, err = svc.OwnedCourse(ctx, ident, courseID); err != nil {
			return Analytics{}, err
		}
		courseFilter.IDs = []int{courseID}
	}

	courses, err := svc.repo.FilterCourses(ctx, courseFilter, nil)
	if err != nil {
		return Analytics{}, errors.Wrap(err, "filtering courses")
	}
	enrollments, err := svc.repo.FilterEnrollments(ctx, EnrollmentFilter{TeacherID: prof.ID, CourseID: courseID})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "filtering enrollments")
	}
	payments, err := svc.repo.FilterPayments(ctx, PaymentFilter{TeacherID: prof.ID, CourseID: courseID})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "filtering payments")
	}
	subs, err := svc.repo.FilterSubmissions(ctx, SubmissionFilter{TeacherID: prof.ID})
	if err != nil {
		return Analytics{}, errors.Wrap(err, "filtering submissions")
	}
	if courseID != 0 {
		kept := subs[:0]
		for _, s := range subs {
			if s.CourseID == courseID {
				kept = append(kept, s)
			}
		}
		subs = kept
	}

	an := Analytics{
		CourseID:              courseID,
		TotalEnrollments:      len(enrollments),
		CompletionRate:        completionRate(enrollments),
		AverageGrade:          averageGrade(subs),
		TotalRevenue:          revenue(payments),
		RevenueByMonth:        revenueByMonth(payments),
		TopPerformingStudents: topStudents(subs, topStudentsLimit),
		CourseStats:           make([]CourseStats, 0, len(courses)),
	}

	byCourse := make(map[int][]EnrollmentDetail)
	for _, e := range enrollments {
		byCourse[e.CourseID] = append(byCourse[e.CourseID], e)
	}
	// the overall rating weighs every review, not every course
	var ratingSum, reviewCount int
	for _, c := range courses {
		an.CourseStats = append(an.CourseStats, CourseStats{
			ID:             c.ID,
			Title:          c.Title,
			Enrollments:    c.EnrollmentCount,
			CompletionRate: completionRate(byCourse[c.ID]),
			AverageRating:  c.AverageRating,
		})
		reviews, err := svc.repo.QueryReviews(ctx, c.ID)
		if err != nil {
			return Analytics{}, errors.Wrap(err, "querying reviews")
		}
		for _, r := range reviews {
			ratingSum += r.Rating
			reviewCount++
		}
	}
	if reviewCount > 0 {
		an.AverageRating = round1(float64(ratingSum) / float64(reviewCount))
	}
	return an, nil
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

func completionRate(enrollments []EnrollmentDetail) float64 {
	if len(enrollments) == 0 {
		return 0
	}
	var completed int
	for _, e := range enrollments {
		if e.Status == EnrollmentCompleted {
			completed++
		}
	}
	return round1(float64(completed) / float64(len(enrollments)) * 100)
}

func averageGrade(subs []SubmissionDetail) float64 {
	var sum float64
	var n int
	for _, s := range subs {
		if s.Grade.Valid {
			sum += s.Grade.Float64
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func revenue(payments []PaymentDetail) float64 {
	var total float64
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			total += p.Amount
		}
	}
	return math.Round(total*100) / 100
}

func revenueByMonth(payments []PaymentDetail) []MonthlyRevenue {
	byMonth := make(map[string]float64)
	for _, p := range payments {
		if p.Status == PaymentCompleted {
			byMonth[p.CreatedAt.Format("2006-01")] += p.Amount
		}
	}
	months := make([]MonthlyRevenue, 0, len(byMonth))
	for m, r := range byMonth {
		months = append(months, MonthlyRevenue{Month: m, Revenue: math.Round(r*100) / 100})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

// topStudents ranks the students by their average grade.
func topStudents(subs []SubmissionDetail, limit int) []StudentGrade {
	type acc struct {
		name  string
		sum   float64
		count int
	}
	byStudent := make(map[int]*acc)
	for _, s := range subs {
		if !s.Grade.Valid {
			continue
		}
		a, ok := byStudent[s.StudentID]
		if !ok {
			a = &acc{name: s.StudentName}
			byStudent[s.StudentID] = a
		}
		a.sum += s.Grade.Float64
		a.count++
	}

	students := make([]StudentGrade, 0, len(byStudent))
	for _, a := range byStudent {
		students = append(students, StudentGrade{Name: a.name, Grade: round1(a.sum / float64(a.count))})
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Grade != students[j].Grade {
			return students[i].Grade > students[j].Grade
		}
		return students[i].Name < students[j].Name
	})
	if len(students) > limit {
		students = students[:limit]
	}
	return students
}
