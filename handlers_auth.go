package main

import (
	"net/http"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/models"
	"github.com/aivisionaries/hydropay_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		if err := sendOTP(c, user); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// loginHandler checks the password and sends a one-time code; the token is
// only issued after verifyOtpHandler confirms the code.
func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input loginRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		user, err := models.GetUserByEmail(c.Request.Context(), input.Email)
		if err != nil {
			// Same response as a wrong password: do not reveal which accounts exist.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err := utils.ComparePassword(user.PasswordHash, input.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if err := sendOTP(c, user); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
	}
}

type verifyOtpRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

func verifyOtpHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input verifyOtpRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		ok, err := utils.CheckOTP(c.Request.Context(), input.Email, input.Code)
		if err != nil {
			respondError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
			return
		}

		user, err := models.GetUserByEmail(c.Request.Context(), input.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		if user.IsVerified == nil || !*user.IsVerified {
			if err := user.MarkVerified(c.Request.Context()); err != nil {
				respondError(c, err)
				return
			}
			_ = utils.RemoveRedisItem[models.User](user.ID)
		}

		token, err := utils.JwtGenerate(user.ID, string(user.Role), user.Name)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
				"role":  user.Role,
			},
		})
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := getSessionUser(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// sendOTP stores a fresh code in Redis and hands delivery to the
// notifications topic. With OTP_DELIVERY_DISABLED the code is only logged.
func sendOTP(c *gin.Context, user *models.User) error {
	logger := config.GetLogger()
	code := utils.GenerateOTP(6)
	if err := utils.StoreOTP(user.Email, code); err != nil {
		return err
	}

	if config.OtpDeliveryDisabled() {
		logger.WithFields(logrus.Fields{
			"field": "sendOTP",
			"email": user.Email,
			"code":  code,
		}).Warn("OTP_DELIVERY_DISABLED=true; code not delivered")
		return nil
	}

	_, err := config.PublishNotification(c.Request.Context(), config.NotificationMessage{
		Recipient: user.Email,
		Kind:      "email",
		Code:      code,
		Subject:   "Your HydroPay verification code",
		Body:      "Your one-time verification code is " + code + ". It expires in " + utils.GetOtpLifespan().String() + ".",
	})
	if err != nil {
		config.LogError(logger, "handlers_auth", "sendOTP", "PublishNotification", user.Email, err)
		return err
	}
	return nil
}
