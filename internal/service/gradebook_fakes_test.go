package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

type subjectFacts struct {
	name            string
	affectsCFS      bool
	hasNationalExam bool
}

// memGradebook is an in-memory stand-in for the Postgres gradebook tables.
type memGradebook struct {
	seq             int
	settings        map[string]models.GradeSettings
	enrollments     map[string]models.SubjectEnrollment
	enrollmentOrder []string
	periods         map[string]models.SubjectPeriod
	elements        map[string]models.EvaluationElement
	elementOrder    []string
	annuals         map[string]models.AnnualSubjectGrade
	cfds            map[string]models.SubjectCFD
	snapshots       []models.CFSSnapshot
	subjects        map[string]subjectFacts
}

func newMemGradebook() *memGradebook {
	return &memGradebook{
		settings:    map[string]models.GradeSettings{},
		enrollments: map[string]models.SubjectEnrollment{},
		periods:     map[string]models.SubjectPeriod{},
		elements:    map[string]models.EvaluationElement{},
		annuals:     map[string]models.AnnualSubjectGrade{},
		cfds:        map[string]models.SubjectCFD{},
		subjects:    map[string]subjectFacts{},
	}
}

func (m *memGradebook) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memGradebook) params() GradebookParams {
	return GradebookParams{
		Settings:    memSettings{m},
		Enrollments: memEnrollments{m},
		Periods:     memPeriods{m},
		Elements:    memElements{m},
		Annuals:     memAnnuals{m},
		Tx:          &fakeTx{},
	}
}

func (m *memGradebook) cfsParams() CFSServiceParams {
	return CFSServiceParams{
		Settings:    memSettings{m},
		Enrollments: memEnrollments{m},
		Annuals:     memAnnuals{m},
		CFDs:        memCFDs{m},
		Snapshots:   memSnapshots{m},
		Tx:          &fakeTx{},
	}
}

// periodsOf returns the periods of an enrollment ordered by number.
func (m *memGradebook) periodsOf(enrollmentID string) []models.SubjectPeriod {
	out := []models.SubjectPeriod{}
	for _, p := range m.periods {
		if p.EnrollmentID == enrollmentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodNumber < out[j].PeriodNumber })
	return out
}

func (m *memGradebook) enrollmentFor(studentID, subjectID, year string) (models.SubjectEnrollment, bool) {
	for _, id := range m.enrollmentOrder {
		e := m.enrollments[id]
		if e.StudentID == studentID && e.SubjectID == subjectID && e.AcademicYear == year {
			return m.hydrate(e), true
		}
	}
	return models.SubjectEnrollment{}, false
}

func (m *memGradebook) hydrate(e models.SubjectEnrollment) models.SubjectEnrollment {
	facts, ok := m.subjects[e.SubjectID]
	if !ok {
		e.AffectsCFS = true
		return e
	}
	name := facts.name
	e.SubjectName = &name
	e.AffectsCFS = facts.affectsCFS
	e.HasNationalExam = facts.hasNationalExam
	return e
}

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type memSettings struct{ m *memGradebook }

func (s memSettings) FindByYear(_ context.Context, studentID, academicYear string) (*models.GradeSettings, error) {
	for _, row := range s.m.settings {
		if row.StudentID == studentID && row.AcademicYear == academicYear {
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s memSettings) FindByID(_ context.Context, id string) (*models.GradeSettings, error) {
	row, ok := s.m.settings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (s memSettings) Latest(_ context.Context, studentID string) (*models.GradeSettings, error) {
	var latest *models.GradeSettings
	for _, row := range s.m.settings {
		row := row
		if row.StudentID == studentID && (latest == nil || row.AcademicYear > latest.AcademicYear) {
			latest = &row
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (s memSettings) Create(_ context.Context, settings *models.GradeSettings) error {
	settings.ID = s.m.nextID("settings")
	s.m.settings[settings.ID] = *settings
	return nil
}

func (s memSettings) Lock(_ context.Context, id, studentID string) error {
	row, ok := s.m.settings[id]
	if !ok || row.StudentID != studentID {
		return sql.ErrNoRows
	}
	row.IsLocked = true
	s.m.settings[id] = row
	return nil
}

type memEnrollments struct{ m *memGradebook }

func (s memEnrollments) ListByYear(_ context.Context, studentID, academicYear string) ([]models.SubjectEnrollment, error) {
	out := []models.SubjectEnrollment{}
	for _, id := range s.m.enrollmentOrder {
		e := s.m.enrollments[id]
		if e.StudentID == studentID && e.AcademicYear == academicYear {
			out = append(out, s.m.hydrate(e))
		}
	}
	return out, nil
}

func (s memEnrollments) ListActiveByStudent(_ context.Context, studentID string) ([]models.SubjectEnrollment, error) {
	out := []models.SubjectEnrollment{}
	for _, id := range s.m.enrollmentOrder {
		e := s.m.enrollments[id]
		if e.StudentID == studentID && e.IsActive {
			out = append(out, s.m.hydrate(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AcademicYear < out[j].AcademicYear })
	return out, nil
}

func (s memEnrollments) FindByID(_ context.Context, id, studentID string) (*models.SubjectEnrollment, error) {
	e, ok := s.m.enrollments[id]
	if !ok || e.StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	e = s.m.hydrate(e)
	return &e, nil
}

func (s memEnrollments) FindBySubjectYear(_ context.Context, studentID, subjectID, academicYear string) (*models.SubjectEnrollment, error) {
	e, ok := s.m.enrollmentFor(studentID, subjectID, academicYear)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s memEnrollments) Create(_ context.Context, enrollment *models.SubjectEnrollment) error {
	enrollment.ID = s.m.nextID("enrollment")
	s.m.enrollments[enrollment.ID] = *enrollment
	s.m.enrollmentOrder = append(s.m.enrollmentOrder, enrollment.ID)
	return nil
}

func (s memEnrollments) Update(_ context.Context, id, studentID string, patch models.EnrollmentPatch) error {
	e, ok := s.m.enrollments[id]
	if !ok || e.StudentID != studentID {
		return sql.ErrNoRows
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	if patch.IsExamCandidate != nil {
		e.IsExamCandidate = *patch.IsExamCandidate
	}
	s.m.enrollments[id] = e
	return nil
}

type memPeriods struct{ m *memGradebook }

func (s memPeriods) ListByEnrollment(_ context.Context, enrollmentID string) ([]models.SubjectPeriod, error) {
	return s.m.periodsOf(enrollmentID), nil
}

func (s memPeriods) ListByEnrollments(_ context.Context, enrollmentIDs []string) (map[string][]models.SubjectPeriod, error) {
	out := map[string][]models.SubjectPeriod{}
	for _, id := range enrollmentIDs {
		if periods := s.m.periodsOf(id); len(periods) > 0 {
			out[id] = periods
		}
	}
	return out, nil
}

func (s memPeriods) FindOwned(_ context.Context, id, studentID string) (*models.SubjectPeriod, error) {
	p, ok := s.m.periods[id]
	if !ok || s.m.enrollments[p.EnrollmentID].StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s memPeriods) FindByID(_ context.Context, id string) (*models.SubjectPeriod, error) {
	p, ok := s.m.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s memPeriods) CreateEmpty(_ context.Context, enrollmentID string, count int) error {
	for n := 1; n <= count; n++ {
		id := s.m.nextID("period")
		s.m.periods[id] = models.SubjectPeriod{ID: id, EnrollmentID: enrollmentID, PeriodNumber: n}
	}
	return nil
}

func (s memPeriods) Update(_ context.Context, period *models.SubjectPeriod) error {
	if _, ok := s.m.periods[period.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *period
	stored.Elements = nil
	s.m.periods[period.ID] = stored
	return nil
}

type memElements struct{ m *memGradebook }

func (s memElements) ListByPeriod(_ context.Context, periodID string) ([]models.EvaluationElement, error) {
	out := []models.EvaluationElement{}
	for _, id := range s.m.elementOrder {
		if el, ok := s.m.elements[id]; ok && el.PeriodID == periodID {
			out = append(out, el)
		}
	}
	return out, nil
}

func (s memElements) ListByPeriods(ctx context.Context, periodIDs []string) (map[string][]models.EvaluationElement, error) {
	out := map[string][]models.EvaluationElement{}
	for _, id := range periodIDs {
		elements, _ := s.ListByPeriod(ctx, id)
		if len(elements) > 0 {
			out[id] = elements
		}
	}
	return out, nil
}

func (s memElements) FindOwned(_ context.Context, id, studentID string) (*models.EvaluationElement, error) {
	el, ok := s.m.elements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	period := s.m.periods[el.PeriodID]
	if s.m.enrollments[period.EnrollmentID].StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	return &el, nil
}

func (s memElements) Replace(_ context.Context, periodID string, elements []models.EvaluationElement) error {
	for id, el := range s.m.elements {
		if el.PeriodID == periodID {
			delete(s.m.elements, id)
		}
	}
	for i := range elements {
		elements[i].ID = s.m.nextID("element")
		elements[i].PeriodID = periodID
		s.m.elements[elements[i].ID] = elements[i]
		s.m.elementOrder = append(s.m.elementOrder, elements[i].ID)
	}
	return nil
}

func (s memElements) UpdateGrade(_ context.Context, id string, grade decimal.NullDecimal) error {
	el, ok := s.m.elements[id]
	if !ok {
		return sql.ErrNoRows
	}
	el.RawGrade = grade
	s.m.elements[id] = el
	return nil
}

type memAnnuals struct{ m *memGradebook }

func (s memAnnuals) ListByEnrollments(_ context.Context, enrollmentIDs []string) (map[string]models.AnnualSubjectGrade, error) {
	out := map[string]models.AnnualSubjectGrade{}
	for _, id := range enrollmentIDs {
		if grade, ok := s.m.annuals[id]; ok {
			out[id] = grade
		}
	}
	return out, nil
}

func (s memAnnuals) ListByYear(_ context.Context, studentID, academicYear string) ([]models.AnnualGradeView, error) {
	out := []models.AnnualGradeView{}
	for _, id := range s.m.enrollmentOrder {
		e := s.m.hydrate(s.m.enrollments[id])
		grade, ok := s.m.annuals[id]
		if !ok || e.StudentID != studentID || e.AcademicYear != academicYear {
			continue
		}
		out = append(out, models.AnnualGradeView{AnnualSubjectGrade: grade, SubjectID: e.SubjectID, SubjectName: e.SubjectName})
	}
	return out, nil
}

func (s memAnnuals) Upsert(_ context.Context, grade *models.AnnualSubjectGrade) error {
	if existing, ok := s.m.annuals[grade.EnrollmentID]; ok {
		grade.ID = existing.ID
		grade.IsLocked = grade.IsLocked || existing.IsLocked
	}
	if grade.ID == "" {
		grade.ID = s.m.nextID("annual")
	}
	s.m.annuals[grade.EnrollmentID] = *grade
	return nil
}

func (s memAnnuals) DeleteByEnrollment(_ context.Context, enrollmentID string) error {
	delete(s.m.annuals, enrollmentID)
	return nil
}

type memCFDs struct{ m *memGradebook }

func (s memCFDs) ListByStudent(_ context.Context, studentID string) ([]models.SubjectCFD, error) {
	out := []models.SubjectCFD{}
	for _, cfd := range s.m.cfds {
		if cfd.StudentID == studentID {
			out = append(out, cfd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memCFDs) FindByID(_ context.Context, id, studentID string) (*models.SubjectCFD, error) {
	cfd, ok := s.m.cfds[id]
	if !ok || cfd.StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	return &cfd, nil
}

func (s memCFDs) Upsert(_ context.Context, cfd *models.SubjectCFD) error {
	for id, existing := range s.m.cfds {
		if existing.StudentID == cfd.StudentID && existing.SubjectID == cfd.SubjectID && existing.AcademicYear == cfd.AcademicYear {
			if existing.IsFinalized {
				return nil
			}
			cfd.ID = id
		}
	}
	if cfd.ID == "" {
		cfd.ID = s.m.nextID("cfd")
	}
	s.m.cfds[cfd.ID] = *cfd
	return nil
}

func (s memCFDs) UpdateExam(_ context.Context, cfd *models.SubjectCFD) error {
	existing, ok := s.m.cfds[cfd.ID]
	if !ok || existing.IsFinalized || existing.StudentID != cfd.StudentID {
		return sql.ErrNoRows
	}
	existing.ExamGrade = cfd.ExamGrade
	existing.ExamGradeRaw = cfd.ExamGradeRaw
	existing.ExamWeight = cfd.ExamWeight
	existing.CFDRaw = cfd.CFDRaw
	existing.CFDGrade = cfd.CFDGrade
	s.m.cfds[cfd.ID] = existing
	return nil
}

func (s memCFDs) FinalizeByIDs(_ context.Context, studentID string, ids []string) error {
	for _, id := range ids {
		cfd, ok := s.m.cfds[id]
		if ok && cfd.StudentID == studentID {
			cfd.IsFinalized = true
			s.m.cfds[id] = cfd
		}
	}
	return nil
}

type memSnapshots struct{ m *memGradebook }

func (s memSnapshots) Latest(_ context.Context, studentID string) (*models.CFSSnapshot, error) {
	for i := len(s.m.snapshots) - 1; i >= 0; i-- {
		if s.m.snapshots[i].StudentID == studentID {
			snapshot := s.m.snapshots[i]
			return &snapshot, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s memSnapshots) Upsert(_ context.Context, snapshot *models.CFSSnapshot) error {
	for i, existing := range s.m.snapshots {
		if existing.StudentID == snapshot.StudentID && existing.AcademicYear == snapshot.AcademicYear {
			snapshot.ID = existing.ID
			s.m.snapshots[i] = *snapshot
			return nil
		}
	}
	snapshot.ID = s.m.nextID("snapshot")
	s.m.snapshots = append(s.m.snapshots, *snapshot)
	return nil
}

// memoryCacheRepo is a JSON round-tripping cache that records invalidations.
type memoryCacheRepo struct {
	store       map[string][]byte
	invalidated []string
}

func (r *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := r.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (r *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if r.store == nil {
		r.store = map[string][]byte{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.store[key] = payload
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	r.invalidated = append(r.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.store {
		if strings.HasPrefix(key, prefix) {
			delete(r.store, key)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func nullDec(v string) decimal.NullDecimal { return decimal.NewNullDecimal(dec(v)) }
