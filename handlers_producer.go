package main

import (
	"net/http"

	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/aivisionaries/hydropay_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewApplication
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		producerId, _ := utils.GetUserIdFromContext(c.Request.Context())
		app, err := models.CreateApplication(c.Request.Context(), producerId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, app)
	}
}

func listMyApplicationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		producerId, _ := utils.GetUserIdFromContext(c.Request.Context())
		apps, err := models.ListApplicationsByProducer(c.Request.Context(), producerId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	}
}

func getMyApplicationHandler() gin.HandlerFunc {
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
		producerId, _ := utils.GetUserIdFromContext(c.Request.Context())
		if app.ProducerId != producerId {
			respondError(c, utils.ErrorForbidden)
			return
		}
		if err := app.LoadDocuments(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

func resubmitApplicationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewApplication
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		producerId, _ := utils.GetUserIdFromContext(c.Request.Context())
		app, err := workflow.ResubmitApplication(c.Request.Context(), id, producerId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

func completeMilestoneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		producerId, _ := utils.GetUserIdFromContext(c.Request.Context())
		m, err := workflow.MarkMilestoneComplete(c.Request.Context(), id, producerId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}
