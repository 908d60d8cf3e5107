package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-engine-api/internal/middleware"
	"github.com/noah-isme/grade-engine-api/internal/models"
)

// Handlers groups the route handlers mounted under the API prefix.
type Handlers struct {
	Gradebook *GradebookHandler
	Periods   *PeriodHandler
	CFS       *CFSHandler
	Quiz      *QuizHandler
}

// RegisterRoutes mounts every authenticated route on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	grades := api.Group("/grades", auth)
	{
		grades.GET("/settings/:academicYear", h.Gradebook.GetSettings)
		grades.POST("/settings", h.Gradebook.CreateSettings)
		grades.PATCH("/settings/:id/lock", h.Gradebook.LockSettings)
		grades.POST("/setup-past-year", h.Gradebook.SetupPastYear)
		grades.GET("/enrollments", h.Gradebook.ListEnrollments)
		grades.POST("/enrollments", h.Gradebook.CreateEnrollment)
		grades.PATCH("/enrollments/:id", h.Gradebook.UpdateEnrollment)
		grades.GET("/board/:academicYear", h.Gradebook.Board)
		grades.GET("/annual/:academicYear", h.Gradebook.ListAnnualGrades)
		grades.PATCH("/annual-grade", h.Gradebook.UpdateAnnualGrade)

		grades.PATCH("/periods/:id", h.Periods.UpdatePeriod)
		grades.PATCH("/periods/:id/override", h.Periods.Override)
		grades.DELETE("/periods/:id/override", h.Periods.ClearOverride)
		grades.GET("/periods/:id/elements", h.Periods.ListElements)
		grades.PUT("/periods/:id/elements", h.Periods.ReplaceElements)
		grades.POST("/periods/:id/copy-elements", h.Periods.CopyElements)
		grades.PATCH("/elements/:id", h.Periods.UpdateElementGrade)

		grades.GET("/cfs", h.CFS.Dashboard)
		grades.POST("/cfs/snapshot", h.CFS.CreateSnapshot)
		grades.GET("/cfs/snapshot", h.CFS.LatestSnapshot)
		grades.GET("/cfs/snapshot/export", h.CFS.ExportSnapshot)
		grades.PATCH("/cfd/:id/exam", h.CFS.UpdateExam)
		grades.PATCH("/cfd/:id/basico-exam", h.CFS.UpdateBasicoExam)
	}

	quiz := api.Group("/quiz", auth)
	{
		quiz.POST("/grade", h.Quiz.Grade)
		quiz.POST("/submissions/:id/submit", h.Quiz.Submit)
		quiz.POST("/assignments/:id/regrade",
			middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin),
			h.Quiz.Regrade)
	}
}
