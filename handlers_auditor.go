package main

import (
	"net/http"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/aivisionaries/hydropay_backend/workflow"
	"github.com/gin-gonic/gin"
)

func listPendingApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := models.ListApplicationsByStatus(c.Request.Context(), models.ApplicationStatusPending)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	}
}

func getApplicationForReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		app, err := models.GetApplication(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := app.LoadDocuments(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

func submitAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewAudit
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		auditorId, _ := utils.GetUserIdFromContext(c.Request.Context())
		audit, err := workflow.SubmitAudit(c.Request.Context(), id, auditorId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, audit)
	}
}

func getAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		audit, err := models.GetAuditForApplication(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		docs, err := models.ListDocuments(c.Request.Context(), models.DocumentReferenceAudit, audit.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"audit": audit, "documents": docs})
	}
}

func listAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		// 404 on unknown audit rather than an empty trail.
		audit, err := models.GetAudit(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		entries, err := models.ListAuditLog(c.Request.Context(), audit.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

type verifyMilestoneRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

func verifyMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input verifyMilestoneRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		m, err := workflow.VerifyMilestone(c.Request.Context(), id, *input.Approve)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}
