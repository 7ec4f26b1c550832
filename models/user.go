package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/fulfillment_backend/config"
	"github.com/mmdatafocus/fulfillment_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string    `gorm:"size:100" json:"email"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	IsActive   *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// LoginInfo is the login response: a signed bearer token plus a session token
// the session middleware recognizes.
type LoginInfo struct {
	Token        string `json:"token"`
	SessionToken string `json:"session_token"`
	Name         string `json:"name"`
	BusinessId   string `json:"business_id"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.ErrorInvalidInput
	}
	if err := utils.ValidateUnique[User](ctx, businessId, "username", input.Username, 0); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	user := &User{
		BusinessId: businessId,
		Username:   input.Username,
		Name:       input.Name,
		Email:      input.Email,
		Password:   string(hashed),
		IsActive:   utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()

	// login crosses tenants: the business is discovered from the user row
	ctx = utils.SetSkipTenantScopeInContext(ctx)

	// No redis cache here: the serialized form strips the password hash, and
	// login is not a hot path.
	var user User
	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil && errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, errors.New("invalid username or password")
	}

	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	bearer, err := utils.JwtGenerate(user.ID, user.Name, user.BusinessId)
	if err != nil {
		return nil, err
	}

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}
	sessionToken := utils.NewSessionToken()
	if err := config.SetRedisValue("Token:"+sessionToken, user.Username, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:        bearer,
		SessionToken: sessionToken,
		Name:         user.Name,
		BusinessId:   user.BusinessId,
	}, nil
}

// Logout destroys the current redis session. The bearer token stays valid
// until expiry; only the session token is revocable.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	return true, nil
}
