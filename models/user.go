package models

import (
	"context"
	"errors"
	"time"

	"github.com/aivisionaries/hydropay_backend/config"
	"github.com/aivisionaries/hydropay_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID           int      `gorm:"primary_key" json:"id"`
	Name         string   `gorm:"size:100;not null" json:"name"`
	Email        string   `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"size:120;not null" json:"-"`
	Role         UserRole `gorm:"type:enum('producer','auditor','government','bank');not null;index" json:"role"`
	Phone        string   `gorm:"size:20" json:"phone"`
	Organization string   `gorm:"size:200" json:"organization"`
	Bio          string   `gorm:"type:text" json:"bio"`
	ProfilePhoto string   `gorm:"size:200;default:'default_avatar.svg'" json:"profile_photo"`
	// Bank users keep their payout identity here; it is snapshotted onto each
	// Transaction at disbursement time, never looked up live afterwards.
	BankName      string    `gorm:"size:200" json:"bank_name"`
	AccountNumber string    `gorm:"size:34" json:"account_number"`
	IfscCode      string    `gorm:"size:11" json:"ifsc_code"`
	IsVerified    *bool     `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Name         string `json:"name" binding:"required,max=100"`
	Email        string `json:"email" binding:"required,email,max=120"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         string `json:"role" binding:"required,oneof=producer auditor government bank"`
	Phone        string `json:"phone"`
	Organization string `json:"organization" binding:"max=200"`
	Bio          string `json:"bio"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB()

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, errors.Join(utils.ErrorValidation, err)
		}
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hashed),
		Role:         UserRole(input.Role),
		Phone:        input.Phone,
		Organization: input.Organization,
		Bio:          input.Bio,
		IsVerified:   utils.NewFalse(),
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&User{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, utils.ErrorConflict
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (u *User) MarkVerified(ctx context.Context) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).
		Update("is_verified", true).Error
}

func (u *User) UpdateProfilePhoto(ctx context.Context, objectPath string) error {
	db := config.GetDB()
	return db.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).
		Update("profile_photo", objectPath).Error
}
