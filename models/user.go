package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Email     string    `gorm:"size:100;not null;unique" json:"email"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('A', 'C');default:C" json:"role"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func (user User) DisplayName() string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Username
	}
	return name
}

/*
caches:
	Token:$jti     -> username (session, expiring)
	Tokens:$username -> set of live jtis
*/

type LoginInfo struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Register creates an inactive account plus its PENDING approval profile in
// one transaction. Nobody is signed in by a registration.
func Register(ctx context.Context, email string, password string, confirm string) (*User, error) {

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, utils.NewValidationError("email and password are required")
	}
	if !utils.IsValidEmail(email) {
		return nil, utils.NewValidationError("invalid email address")
	}
	if password != confirm {
		return nil, utils.NewValidationError("passwords do not match")
	}

	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&User{}).
		Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("email is already registered")
	}

	username, err := deriveUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username: html.EscapeString(username),
		Email:    email,
		Password: string(hashedPassword),
		IsActive: utils.NewFalse(),
		Role:     UserRoleCommon,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := Profile{UserId: user.ID, ApprovalStatus: ApprovalStatusPending}
		return tx.Create(&profile).Error
	})
	if err != nil {
		return nil, err
	}

	user.PrepareGive()
	return &user, nil
}

// deriveUsername takes the email local part and disambiguates collisions
// with a numeric suffix (john, john1, john2, ...).
func deriveUsername(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at >= 0 {
		base = email[:at]
	}

	db := config.GetDB()
	candidate := base
	for suffix := 1; ; suffix++ {
		var count int64
		if err := db.WithContext(ctx).Model(&User{}).
			Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, suffix)
	}
}

// Authenticate checks credentials and the approval gate. A credential miss
// and an unknown email return the same error so the response does not leak
// which emails exist.
func Authenticate(ctx context.Context, email string, password string) (*User, error) {

	db := config.GetDB()
	email = strings.ToLower(strings.TrimSpace(email))

	var user User
	err := db.WithContext(ctx).Preload("Profile").
		Where("LOWER(email) = ?", email).Take(&user).Error
	if err != nil {
		return nil, &utils.AuthError{Msg: "invalid email or password"}
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil {
		if err != bcrypt.ErrMismatchedHashAndPassword {
			config.LogError(config.GetLogger(), "models", "Authenticate", "compare password", nil, err)
		}
		return nil, &utils.AuthError{Msg: "invalid email or password"}
	}

	if user.Profile != nil && user.Profile.ApprovalStatus == ApprovalStatusRejected {
		return nil, &utils.AuthError{Msg: "registration rejected; contact an administrator", Rejected: true}
	}
	approved := user.Profile != nil && user.Profile.ApprovalStatus == ApprovalStatusApproved
	if !approved || !utils.DereferencePtr(user.IsActive, false) {
		return nil, &utils.AuthError{Msg: "registration pending approval"}
	}

	return &user, nil
}

// Login authenticates and issues a session: a signed JWT whose jti is
// registered in redis so the session can be revoked before expiry.
func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {

	user, err := Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, jti, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	// add new jti to the user's sessions set
	if err := config.AddRedisSet("Tokens:"+user.Username, jti); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+jti, user.Username, utils.TokenLifespan()); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:    token,
		Username: user.Username,
		Name:     user.DisplayName(),
		Email:    user.Email,
		Role:     string(user.Role),
	}, nil
}

// Logout destroys the current session.
func Logout(ctx context.Context) (bool, error) {
	jti, ok := utils.GetTokenFromContext(ctx)
	if !ok || jti == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey("Token:" + jti); err != nil {
		return false, err
	}
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, jti); err != nil {
		return false, err
	}
	return true, nil
}

// DestroyAllSessions revokes every live session of the user.
func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, jti := range allTokens {
		if err := config.RemoveRedisKey("Token:" + jti); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + user.Username)
}

func GetUser(ctx context.Context, id int) (*User, error) {
	result, err := utils.FetchModel[User](ctx, id, "Profile")
	if err != nil {
		return nil, err
	}
	result.PrepareGive()
	return result, nil
}

type AccountUpdate struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Phone       *string `json:"phone"`
	OldPassword string  `json:"old_password"`
	NewPassword string  `json:"new_password"`
}

// UpdateAccount applies the signed-in user's settings changes. A password
// change requires the old password and revokes every other session.
func UpdateAccount(ctx context.Context, input *AccountUpdate) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	updates := map[string]interface{}{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone != "" {
			if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
				return nil, utils.NewValidationError("invalid phone number")
			}
		}
		updates["phone"] = phone
	}

	changingPassword := input.NewPassword != ""
	if changingPassword {
		if err := utils.ComparePassword(user.Password, input.OldPassword); err != nil {
			return nil, utils.NewValidationError("old password is wrong")
		}
		hashedPassword, err := utils.HashPassword(input.NewPassword)
		if err != nil {
			return nil, err
		}
		updates["password"] = string(hashedPassword)
	}

	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if changingPassword {
		if err := user.DestroyAllSessions(ctx); err != nil {
			return nil, err
		}
	}

	user.PrepareGive()
	return &user, nil
}
