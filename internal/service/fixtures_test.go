package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/repository"
	"github.com/noah-isme/sma-grading-engine/pkg/events"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

type scoreKey struct {
	studentID    string
	assignmentID string
}

// memDB is the in-memory gradebook shared by the fake repositories.
type memDB struct {
	mu            sync.Mutex
	students      map[string]models.Student
	classes       map[string]models.Class
	subjects      map[string]models.Subject
	classSubjects map[string][]string
	enrollments   map[string][]models.SubjectEnrollment
	terms         map[string]models.Term
	assignments   map[string]models.Assignment
	scores        map[scoreKey]models.Score
	grades        map[gradeKey]models.SubjectTermGrade
	reports       map[reportKey]models.TermReport
	audits        []models.ScoreAuditLog
	seq           int

	failReportUpsert error
}

func newMemDB() *memDB {
	return &memDB{
		students:      map[string]models.Student{},
		classes:       map[string]models.Class{},
		subjects:      map[string]models.Subject{},
		classSubjects: map[string][]string{},
		enrollments:   map[string][]models.SubjectEnrollment{},
		terms:         map[string]models.Term{},
		assignments:   map[string]models.Assignment{},
		scores:        map[scoreKey]models.Score{},
		grades:        map[gradeKey]models.SubjectTermGrade{},
		reports:       map[reportKey]models.TermReport{},
	}
}

func (m *memDB) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memDB) addScore(studentID, assignmentID string, points float64) {
	m.scores[scoreKey{studentID, assignmentID}] = models.Score{
		ID: m.nextID("score"), StudentID: studentID, AssignmentID: assignmentID, Points: points,
	}
}

func (m *memDB) grade(studentID, subjectID, termID string) (models.SubjectTermGrade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grades[gradeKey{studentID, subjectID, termID}]
	return g, ok
}

func (m *memDB) report(studentID, termID string) (models.TermReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[reportKey{studentID, termID}]
	return r, ok
}

func (m *memDB) snapshot() (map[gradeKey]models.SubjectTermGrade, map[reportKey]models.TermReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grades := make(map[gradeKey]models.SubjectTermGrade, len(m.grades))
	for k, v := range m.grades {
		grades[k] = v
	}
	reports := make(map[reportKey]models.TermReport, len(m.reports))
	for k, v := range m.reports {
		reports[k] = v
	}
	return grades, reports
}

type fakeDirectory struct{ db *memDB }

func (f fakeDirectory) FindStudent(_ context.Context, id string) (*models.Student, error) {
	s, ok := f.db.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeDirectory) FindClass(_ context.Context, id string) (*models.Class, error) {
	c, ok := f.db.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f fakeDirectory) FindSubject(_ context.Context, id string) (*models.Subject, error) {
	s, ok := f.db.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeDirectory) ListActiveStudents(_ context.Context, classID string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.db.students {
		if s.Active && s.CurrentClassID != nil && *s.CurrentClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeDirectory) ListClassSubjects(_ context.Context, classID string) ([]models.Subject, error) {
	var out []models.Subject
	for _, id := range f.db.classSubjects[classID] {
		out = append(out, f.db.subjects[id])
	}
	return out, nil
}

func (f fakeDirectory) ListEnrollments(_ context.Context, classID string) ([]models.SubjectEnrollment, error) {
	return f.db.enrollments[classID], nil
}

type fakeTerms struct{ db *memDB }

func (f fakeTerms) FindByID(_ context.Context, id string) (*models.Term, error) {
	t, ok := f.db.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (f fakeTerms) LockForUpdate(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Term, error) {
	term, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock term %s: %w", id, err)
	}
	return term, nil
}

type fakeAssignments struct{ db *memDB }

func (f fakeAssignments) FindByID(_ context.Context, id string) (*models.Assignment, error) {
	a, ok := f.db.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (f fakeAssignments) ListByIDs(_ context.Context, ids []string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, id := range ids {
		if a, ok := f.db.assignments[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f fakeAssignments) ListBySubjectsTerm(_ context.Context, _ sqlx.ExtContext, subjectIDs []string, termID string) ([]models.Assignment, error) {
	wanted := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		wanted[id] = true
	}
	var out []models.Assignment
	for _, a := range f.db.assignments {
		if wanted[a.SubjectID] && a.TermID == termID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeScores struct{ db *memDB }

func (f fakeScores) Get(_ context.Context, _ sqlx.ExtContext, studentID, assignmentID string) (*models.Score, error) {
	s, ok := f.db.scores[scoreKey{studentID, assignmentID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f fakeScores) ListForStudents(_ context.Context, _ sqlx.ExtContext, studentIDs, assignmentIDs []string) ([]models.Score, error) {
	var out []models.Score
	for _, studentID := range studentIDs {
		for _, assignmentID := range assignmentIDs {
			if s, ok := f.db.scores[scoreKey{studentID, assignmentID}]; ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f fakeScores) UpsertBatch(_ context.Context, _ sqlx.ExtContext, scores []models.Score) error {
	for i := range scores {
		key := scoreKey{scores[i].StudentID, scores[i].AssignmentID}
		if scores[i].ID == "" {
			if prev, ok := f.db.scores[key]; ok {
				scores[i].ID = prev.ID
			} else {
				scores[i].ID = f.db.nextID("score")
			}
		}
		f.db.scores[key] = scores[i]
	}
	return nil
}

func (f fakeScores) Delete(_ context.Context, _ sqlx.ExtContext, studentID, assignmentID string) error {
	delete(f.db.scores, scoreKey{studentID, assignmentID})
	return nil
}

func (f fakeScores) InsertAuditLogs(_ context.Context, _ sqlx.ExtContext, logs []models.ScoreAuditLog) error {
	f.db.audits = append(f.db.audits, logs...)
	return nil
}

type fakeGrades struct{ db *memDB }

func (f fakeGrades) Upsert(_ context.Context, _ sqlx.ExtContext, grades []models.SubjectTermGrade, withRank bool) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for i := range grades {
		key := gradeKey{grades[i].StudentID, grades[i].SubjectID, grades[i].TermID}
		row := grades[i]
		prev, exists := f.db.grades[key]
		if exists {
			row.ID = prev.ID
			row.TeacherRemark = prev.TeacherRemark
			if !withRank {
				row.Rank = prev.Rank
			}
		} else {
			row.ID = f.db.nextID("grade")
			if !withRank {
				row.Rank = nil
			}
		}
		subject := f.db.subjects[row.SubjectID]
		row.SubjectName = subject.Name
		row.IsCore = subject.IsCore
		f.db.grades[key] = row
	}
	return nil
}

func (f fakeGrades) FindByKey(_ context.Context, _ sqlx.ExtContext, studentID, subjectID, termID string) (*models.SubjectTermGrade, error) {
	g, ok := f.db.grade(studentID, subjectID, termID)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (f fakeGrades) ListByStudentTerm(_ context.Context, _ sqlx.ExtContext, studentID, termID string) ([]models.SubjectTermGrade, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.SubjectTermGrade
	for key, g := range f.db.grades {
		if key.studentID == studentID && key.termID == termID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectName < out[j].SubjectName })
	return out, nil
}

func (f fakeGrades) ListBySubjectTerm(_ context.Context, _ sqlx.ExtContext, subjectID, termID string, studentIDs []string) ([]models.SubjectTermGrade, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.SubjectTermGrade
	for _, studentID := range studentIDs {
		if g, ok := f.db.grades[gradeKey{studentID, subjectID, termID}]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrades) UpdateRanks(_ context.Context, _ sqlx.ExtContext, grades []models.SubjectTermGrade) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, g := range grades {
		key := gradeKey{g.StudentID, g.SubjectID, g.TermID}
		row := f.db.grades[key]
		row.Rank = g.Rank
		f.db.grades[key] = row
	}
	return nil
}

func (f fakeGrades) DeleteStale(_ context.Context, _ sqlx.ExtContext, termID string, studentIDs []string, keep []models.SubjectTermGrade) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	students := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		students[id] = true
	}
	kept := make(map[gradeKey]bool, len(keep))
	for _, g := range keep {
		kept[gradeKey{g.StudentID, g.SubjectID, termID}] = true
	}
	var deleted int64
	for key := range f.db.grades {
		if key.termID == termID && students[key.studentID] && !kept[key] {
			delete(f.db.grades, key)
			deleted++
		}
	}
	return deleted, nil
}

type fakeReports struct{ db *memDB }

func (f fakeReports) Upsert(_ context.Context, _ sqlx.ExtContext, reports []models.TermReport, scope repository.ReportScope) error {
	if f.db.failReportUpsert != nil {
		return f.db.failReportUpsert
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, r := range reports {
		key := reportKey{r.StudentID, r.TermID}
		row, exists := f.db.reports[key]
		if !exists {
			row = models.TermReport{ID: f.db.nextID("report"), StudentID: r.StudentID, TermID: r.TermID}
		}
		row.TotalMarks = r.TotalMarks
		row.Average = r.Average
		row.SubjectsTaken = r.SubjectsTaken
		row.SubjectsPassed = r.SubjectsPassed
		row.SubjectsFailed = r.SubjectsFailed
		row.CreditsCount = r.CreditsCount
		row.CoreSubjectsTotal = r.CoreSubjectsTotal
		row.CoreSubjectsPassed = r.CoreSubjectsPassed
		if scope >= repository.ReportScopeRanking {
			row.Aggregate = r.Aggregate
			row.Rank = r.Rank
			row.OutOf = r.OutOf
		}
		if scope >= repository.ReportScopePromotion {
			row.Promoted = r.Promoted
			row.PromotionRemarks = r.PromotionRemarks
		}
		f.db.reports[key] = row
	}
	return nil
}

func (f fakeReports) FindByStudentTerm(_ context.Context, _ sqlx.ExtContext, studentID, termID string) (*models.TermReport, error) {
	r, ok := f.db.report(studentID, termID)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

type fakeConfigs struct {
	system     *models.GradingSystem
	categories []models.AssessmentCategory
	levelErr   error
}

func (f fakeConfigs) SystemByID(_ context.Context, id string) (*models.GradingSystem, error) {
	if f.system == nil || f.system.ID != id {
		return nil, notFoundOr(sql.ErrNoRows, "grading system not found", "")
	}
	system := *f.system
	return &system, nil
}

func (f fakeConfigs) ActiveForLevel(_ context.Context, _ models.SchoolLevel) (*models.GradingSystem, error) {
	if f.levelErr != nil {
		return nil, f.levelErr
	}
	system := *f.system
	return &system, nil
}

func (f fakeConfigs) ActiveCategories(context.Context) ([]models.AssessmentCategory, error) {
	return f.categories, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func wassceSystem() *models.GradingSystem {
	return &models.GradingSystem{
		ID:                     "wassce",
		Name:                   "WASSCE",
		Level:                  models.SchoolLevelSHS,
		PassMark:               40,
		CreditMark:             50,
		AggregateSubjectsCount: 6,
		MinAverageForPromotion: 40,
		RequireCorePass:        true,
		IsActive:               true,
		Scales: []models.GradeScale{
			{ID: "a1", GradeLabel: "A1", MinPercentage: 80, MaxPercentage: 100, AggregatePoints: intPtr(1), Interpretation: "Excellent", IsPass: true, IsCredit: true},
			{ID: "b2", GradeLabel: "B2", MinPercentage: 70, MaxPercentage: 79.99, AggregatePoints: intPtr(2), Interpretation: "Very Good", IsPass: true, IsCredit: true},
			{ID: "b3", GradeLabel: "B3", MinPercentage: 60, MaxPercentage: 69.99, AggregatePoints: intPtr(3), Interpretation: "Good", IsPass: true, IsCredit: true},
			{ID: "c6", GradeLabel: "C6", MinPercentage: 50, MaxPercentage: 59.99, AggregatePoints: intPtr(6), Interpretation: "Credit", IsPass: true, IsCredit: true},
			{ID: "d7", GradeLabel: "D7", MinPercentage: 45, MaxPercentage: 49.99, AggregatePoints: intPtr(7), Interpretation: "Pass", IsPass: true},
			{ID: "e8", GradeLabel: "E8", MinPercentage: 40, MaxPercentage: 44.99, AggregatePoints: intPtr(8), Interpretation: "Pass", IsPass: true},
			{ID: "f9", GradeLabel: "F9", MinPercentage: 0, MaxPercentage: 39.99, AggregatePoints: intPtr(9), Interpretation: "Fail"},
		},
	}
}

func twoBucketCategories() []models.AssessmentCategory {
	return []models.AssessmentCategory{
		{ID: "ca", Name: "Class Score", ShortName: "CA", CategoryType: models.CategoryTypeClassScore, Percentage: 30, Order: 1, IsActive: true},
		{ID: "exam", Name: "Examination", ShortName: "EXAM", CategoryType: models.CategoryTypeExam, Percentage: 70, Order: 2, IsActive: true},
	}
}

// seedClass builds an SHS class of three students taking Mathematics and English in term-1.
func seedClass(termNumber int) *memDB {
	db := newMemDB()
	db.classes["class-1"] = models.Class{ID: "class-1", Name: "SHS 2 Science", Level: models.SchoolLevelSHS}
	for _, id := range []string{"s1", "s2", "s3"} {
		db.students[id] = models.Student{ID: id, FullName: "Student " + id, Active: true, CurrentClassID: strPtr("class-1")}
	}
	db.subjects["math"] = models.Subject{ID: "math", Code: "MTH", Name: "Mathematics", IsCore: true}
	db.subjects["eng"] = models.Subject{ID: "eng", Code: "ENG", Name: "English", IsCore: true}
	db.classSubjects["class-1"] = []string{"eng", "math"}
	db.terms["term-1"] = models.Term{ID: "term-1", Name: "Term 1", AcademicYear: "2025/2026", TermNumber: termNumber}

	db.assignments["m-ca1"] = models.Assignment{ID: "m-ca1", CategoryID: "ca", SubjectID: "math", TermID: "term-1", Name: "Quiz 1", MaxPoints: 20}
	db.assignments["m-ca2"] = models.Assignment{ID: "m-ca2", CategoryID: "ca", SubjectID: "math", TermID: "term-1", Name: "Quiz 2", MaxPoints: 10}
	db.assignments["m-ex"] = models.Assignment{ID: "m-ex", CategoryID: "exam", SubjectID: "math", TermID: "term-1", Name: "Terminal Exam", MaxPoints: 100}
	db.assignments["e-ca1"] = models.Assignment{ID: "e-ca1", CategoryID: "ca", SubjectID: "eng", TermID: "term-1", Name: "Essay", MaxPoints: 50}
	db.assignments["e-ex"] = models.Assignment{ID: "e-ex", CategoryID: "exam", SubjectID: "eng", TermID: "term-1", Name: "Terminal Exam", MaxPoints: 100}

	db.addScore("s1", "m-ca1", 15)
	db.addScore("s1", "m-ca2", 7)
	db.addScore("s1", "m-ex", 60)
	db.addScore("s1", "e-ca1", 40)
	db.addScore("s1", "e-ex", 72)

	db.addScore("s2", "m-ca1", 18)
	db.addScore("s2", "m-ca2", 9)
	db.addScore("s2", "m-ex", 81)
	db.addScore("s2", "e-ca1", 20)
	db.addScore("s2", "e-ex", 30)

	db.addScore("s3", "m-ca1", 18)
	db.addScore("s3", "m-ca2", 9)
	db.addScore("s3", "m-ex", 81)
	db.addScore("s3", "e-ca1", 10)
	return db
}

type serviceFixture struct {
	db        *memDB
	mock      sqlmock.Sqlmock
	guard     *GradeLockGuard
	grades    *GradeService
	bulk      *RecalculationService
	publisher *recordingPublisher
	metrics   *MetricsService
}

func newServiceFixture(t *testing.T, db *memDB, opts GradeServiceOptions) *serviceFixture {
	tx, mock := newTxProviderMock(t)
	configs := fakeConfigs{system: wassceSystem(), categories: twoBucketCategories()}
	guard := NewGradeLockGuard(fakeTerms{db: db})
	publisher := &recordingPublisher{}
	metrics := NewMetricsService()

	grades := NewGradeService(tx, fakeDirectory{db: db}, fakeAssignments{db: db}, fakeScores{db: db},
		fakeGrades{db: db}, fakeReports{db: db}, configs, guard, publisher, metrics, nil, nil, opts)
	bulk := NewRecalculationService(tx, fakeDirectory{db: db}, fakeAssignments{db: db}, fakeScores{db: db},
		fakeGrades{db: db}, fakeReports{db: db}, configs, guard, publisher, metrics, nil, nil,
		RecalculationOptions{FinalTermNumber: 3})

	return &serviceFixture{db: db, mock: mock, guard: guard, grades: grades, bulk: bulk, publisher: publisher, metrics: metrics}
}
