package main

import (
	"net/http"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/aivisionaries/hydropay_backend/workflow"
	"github.com/gin-gonic/gin"
)

func listApprovedApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := models.ListApplicationsByStatus(c.Request.Context(), models.ApplicationStatusGovtApproved)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	}
}

// recommendationHandler shows the policy-derived amount next to the sanctioned
// amount so the disbursing officer can compare before releasing.
func recommendationHandler() gin.HandlerFunc {
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
		recommended, err := workflow.RecommendedSubsidy(c.Request.Context(), app)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"application_id":     app.ID,
			"technology_type":    app.TechnologyType,
			"sanctioned_amount":  app.SanctionedAmount,
			"recommended_amount": recommended,
		})
	}
}

func releaseFundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input workflow.ReleaseInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		bankId, _ := utils.GetUserIdFromContext(c.Request.Context())
		txn, err := workflow.ReleaseFunds(c.Request.Context(), id, bankId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

type payMilestoneRequest struct {
	Beneficiary models.BeneficiaryDetails `json:"beneficiary" binding:"required"`
	Comments    string                    `json:"comments"`
}

func payMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input payMilestoneRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		bankId, _ := utils.GetUserIdFromContext(c.Request.Context())
		txn, err := workflow.PayMilestone(c.Request.Context(), id, bankId, input.Beneficiary, input.Comments)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func listBankTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bankId, _ := utils.GetUserIdFromContext(c.Request.Context())
		txns, err := models.ListTransactionsByBank(c.Request.Context(), bankId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txns)
	}
}

func listApplicationTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		txns, err := models.ListTransactionsByApplication(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txns)
	}
}
