package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-engine-api/internal/dto"
	"github.com/noah-isme/grade-engine-api/internal/models"
	appErrors "github.com/noah-isme/grade-engine-api/pkg/errors"
)

type periodFixture struct {
	db           *memGradebook
	gradebook    *GradebookService
	svc          *PeriodGradeService
	enrollmentID string
	periods      []models.SubjectPeriod
}

func newPeriodFixture(t *testing.T) *periodFixture {
	t.Helper()
	db := newMemGradebook()
	params := db.params()
	gradebook := NewGradebookService(params)
	board, err := gradebook.CreateSettings(context.Background(), testStudent, trimestralSettings("2024-2025", "mat"))
	require.NoError(t, err)
	enrollmentID := board.Subjects[0].Enrollment.ID
	return &periodFixture{
		db:           db,
		gradebook:    gradebook,
		svc:          NewPeriodGradeService(params, nil),
		enrollmentID: enrollmentID,
		periods:      db.periodsOf(enrollmentID),
	}
}

func (f *periodFixture) annual() (models.AnnualSubjectGrade, bool) {
	grade, ok := f.db.annuals[f.enrollmentID]
	return grade, ok
}

func singleElement(raw decimal.NullDecimal) dto.ReplaceElementsRequest {
	return dto.ReplaceElementsRequest{Elements: []dto.ElementInput{
		{ElementType: "test", Label: "Teste", WeightPercentage: dec("100"), RawGrade: raw},
	}}
}

func TestElementGradesCascadeToAnnualGrade(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	for i, raw := range []string{"12", "14", "18"} {
		elements, err := f.svc.ReplaceElements(ctx, testStudent, f.periods[i].ID, singleElement(decimal.NullDecimal{}))
		require.NoError(t, err)
		require.Len(t, elements, 1)

		_, err = f.svc.UpdateElementGrade(ctx, testStudent, elements[0].ID, dto.UpdateElementGradeRequest{RawGrade: nullDec(raw)})
		require.NoError(t, err)

		_, complete := f.annual()
		assert.Equal(t, i == 2, complete, "annual grade after period %d", i+1)
	}

	periods := f.db.periodsOf(f.enrollmentID)
	for i, want := range []int{12, 14, 18} {
		require.NotNil(t, periods[i].CalculatedGrade)
		assert.Equal(t, want, *periods[i].CalculatedGrade)
		assert.Equal(t, want, *periods[i].PautaGrade)
	}
	annual, ok := f.annual()
	require.True(t, ok)
	assert.Equal(t, 15, annual.AnnualGrade)
	assert.True(t, annual.RawAnnual.Equal(dec("15")))
}

func TestAnnualGradeRequiresEveryPeriod(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdatePeriodGrade(ctx, testStudent, f.periods[0].ID, dto.UpdatePeriodGradeRequest{PautaGrade: intPtr(14)})
	require.NoError(t, err)
	_, err = f.svc.UpdatePeriodGrade(ctx, testStudent, f.periods[1].ID, dto.UpdatePeriodGradeRequest{PautaGrade: intPtr(16)})
	require.NoError(t, err)
	_, ok := f.annual()
	assert.False(t, ok)

	period, err := f.svc.UpdatePeriodGrade(ctx, testStudent, f.periods[2].ID, dto.UpdatePeriodGradeRequest{PautaGrade: intPtr(15)})
	require.NoError(t, err)
	assert.Equal(t, 15, *period.CalculatedGrade)

	annual, ok := f.annual()
	require.True(t, ok)
	assert.Equal(t, 15, annual.AnnualGrade)
}

func TestClearOverrideWithoutCalculatedGradeRemovesAnnual(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	_, err := f.svc.OverridePeriodGrade(ctx, testStudent, f.periods[0].ID, dto.OverridePeriodGradeRequest{PautaGrade: intPtr(10), OverrideReason: "  recurso  "})
	require.NoError(t, err)
	for _, p := range f.periods[1:] {
		_, err = f.svc.UpdatePeriodGrade(ctx, testStudent, p.ID, dto.UpdatePeriodGradeRequest{PautaGrade: intPtr(12)})
		require.NoError(t, err)
	}
	_, ok := f.annual()
	require.True(t, ok)
	assert.Equal(t, "recurso", *f.db.periods[f.periods[0].ID].OverrideReason)

	cleared, err := f.svc.ClearOverride(ctx, testStudent, f.periods[0].ID)
	require.NoError(t, err)
	assert.False(t, cleared.IsOverridden)
	assert.Nil(t, cleared.OverrideReason)
	assert.Nil(t, cleared.PautaGrade)

	_, ok = f.annual()
	assert.False(t, ok)
}

func TestOverriddenPautaSurvivesRecalculation(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	_, err := f.svc.OverridePeriodGrade(ctx, testStudent, f.periods[0].ID, dto.OverridePeriodGradeRequest{PautaGrade: intPtr(19), OverrideReason: "oral exam"})
	require.NoError(t, err)

	_, err = f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, singleElement(nullDec("12.4")))
	require.NoError(t, err)

	period := f.db.periods[f.periods[0].ID]
	assert.Equal(t, 12, *period.CalculatedGrade)
	assert.True(t, period.RawCalculated.Decimal.Equal(dec("12.4")))
	assert.Equal(t, 19, *period.PautaGrade)
	assert.True(t, period.IsOverridden)
}

func TestOverrideRequiresReason(t *testing.T) {
	f := newPeriodFixture(t)
	_, err := f.svc.OverridePeriodGrade(context.Background(), testStudent, f.periods[0].ID, dto.OverridePeriodGradeRequest{PautaGrade: intPtr(19), OverrideReason: "   "})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.False(t, f.db.periods[f.periods[0].ID].IsOverridden)
}

func TestReplaceElementsEnforcesWeightSum(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	build := func(weights ...string) dto.ReplaceElementsRequest {
		req := dto.ReplaceElementsRequest{}
		for _, w := range weights {
			req.Elements = append(req.Elements, dto.ElementInput{ElementType: "test", Label: "T", WeightPercentage: dec(w)})
		}
		return req
	}

	for _, weights := range [][]string{{"50", "49"}, {"50", "51"}} {
		_, err := f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, build(weights...))
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidWeights.Code))
	}
	assert.Empty(t, f.db.elements)

	elements, err := f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, build("33.3", "33.3", "33.4"))
	require.NoError(t, err)
	assert.Len(t, elements, 3)
}

func TestUpdateElementGradeValidatesRangeAndOwnership(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	elements, err := f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, singleElement(decimal.NullDecimal{}))
	require.NoError(t, err)

	_, err = f.svc.UpdateElementGrade(ctx, testStudent, elements[0].ID, dto.UpdateElementGradeRequest{RawGrade: nullDec("20.5")})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.svc.UpdateElementGrade(ctx, "student-2", elements[0].ID, dto.UpdateElementGradeRequest{RawGrade: nullDec("10")})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestClearingElementGradeKeepsPauta(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	elements, err := f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, singleElement(nullDec("15")))
	require.NoError(t, err)

	_, err = f.svc.UpdateElementGrade(ctx, testStudent, elements[0].ID, dto.UpdateElementGradeRequest{})
	require.NoError(t, err)

	period := f.db.periods[f.periods[0].ID]
	assert.Nil(t, period.CalculatedGrade)
	assert.False(t, period.RawCalculated.Valid)
	require.NotNil(t, period.PautaGrade)
	assert.Equal(t, 15, *period.PautaGrade)
}

func TestCopyElements(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	_, err := f.svc.CopyElements(ctx, testStudent, f.periods[0].ID)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.svc.ReplaceElements(ctx, testStudent, f.periods[0].ID, dto.ReplaceElementsRequest{Elements: []dto.ElementInput{
		{ElementType: "test", Label: "Teste 1", WeightPercentage: dec("60"), RawGrade: nullDec("14")},
		{ElementType: "project", Label: "Projeto", WeightPercentage: dec("40"), RawGrade: nullDec("16")},
	}})
	require.NoError(t, err)

	copied, err := f.svc.CopyElements(ctx, testStudent, f.periods[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)

	for _, p := range f.periods[1:] {
		elements, err := f.svc.ListElements(ctx, testStudent, p.ID)
		require.NoError(t, err)
		require.Len(t, elements, 2)
		assert.Equal(t, "Teste 1", elements[0].Label)
		assert.True(t, elements[0].WeightPercentage.Equal(dec("60")))
		assert.False(t, elements[0].RawGrade.Valid)
		assert.Nil(t, f.db.periods[p.ID].CalculatedGrade)
	}
	source := f.db.periods[f.periods[0].ID]
	assert.Equal(t, 15, *source.CalculatedGrade)
}

func TestLockedAnnualGradeIsNotRecalculated(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	board, err := f.gradebook.SetupPastYear(ctx, testStudent, dto.SetupPastYearRequest{
		AcademicYear: "2022-2023",
		YearLevel:    "10",
		Subjects:     []dto.PastYearSubject{{SubjectID: "mat", AnnualGrade: intPtr(14)}},
	})
	require.NoError(t, err)
	past := board.Subjects[0]

	for _, p := range past.Periods {
		_, err := f.svc.UpdatePeriodGrade(ctx, testStudent, p.ID, dto.UpdatePeriodGradeRequest{PautaGrade: intPtr(10)})
		require.NoError(t, err)
	}
	annual := f.db.annuals[past.Enrollment.ID]
	assert.Equal(t, 14, annual.AnnualGrade)
	assert.True(t, annual.IsLocked)
}
