package main

import (
	"net/http"
	"time"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/models/reports"
	"github.com/aivisionaries/hydropay_backend/workflow"
	"github.com/gin-gonic/gin"
)

func listApplicationsByStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.ApplicationStatus(c.DefaultQuery("status", string(models.ApplicationStatusAuditorVerified)))
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		apps, err := models.ListApplicationsByStatus(c.Request.Context(), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	}
}

func reviewApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.ReviewInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		app, err := workflow.ReviewApplication(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

type milestonePlanRequest struct {
	Milestones []*models.NewMilestone `json:"milestones" binding:"required,min=1,dive"`
}

func createMilestonePlanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input milestonePlanRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		created, err := workflow.CreateMilestonePlan(c.Request.Context(), id, input.Milestones)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func listMilestonesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		ms, err := models.ListMilestones(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ms)
	}
}

func createPolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSubsidyPolicy
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		policy, err := models.CreateSubsidyPolicy(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, policy)
	}
}

func listPoliciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		policies, err := models.ListSubsidyPolicies(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, policies)
	}
}

func deactivatePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		if err := models.DeactivateSubsidyPolicy(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := reports.GetDashboardReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// disbursementReportHandler streams the disbursement register as xlsx.
// Date window defaults to the last 30 days.
func disbursementReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		to := time.Now().UTC()
		from := to.AddDate(0, 0, -30)
		if v := c.Query("from"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
				return
			}
			from = parsed
		}
		if v := c.Query("to"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
				return
			}
			to = parsed.Add(24*time.Hour - time.Nanosecond)
		}

		data, err := reports.GetDisbursementReport(c.Request.Context(), from, to)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=disbursements.xlsx")
		if err := reports.WriteDisbursementXlsx(c.Writer, data); err != nil {
			respondError(c, err)
		}
	}
}
