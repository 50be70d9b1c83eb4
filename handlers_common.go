package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError maps the model/workflow sentinels onto HTTP statuses. Handlers
// never leak raw driver errors to clients.
func respondError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, utils.ErrorInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not allowed in the current status"})
	case errors.Is(err, utils.ErrorConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, utils.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed"})
	default:
		config.LogError(config.GetLogger(), "handlers", "respondError", c.FullPath(), nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func getSessionUser(ctx context.Context) (*models.User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorForbidden
	}

	cached, err := utils.RetrieveRedis[models.User](userId)
	if err == nil && cached != nil {
		return cached, nil
	}

	user, err := models.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[models.User](user, user.ID)
	return user, nil
}
