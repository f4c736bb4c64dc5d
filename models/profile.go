package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"gorm.io/gorm"
)

// Profile carries the approval state of one account, created alongside the
// User row at registration.
type Profile struct {
	ID             int            `gorm:"primary_key" json:"id"`
	UserId         int            `gorm:"uniqueIndex;not null" json:"user_id"`
	User           *User          `json:"user,omitempty"`
	ApprovalStatus ApprovalStatus `gorm:"size:10;default:PENDING;index" json:"approval_status"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetApprovalStatus moves a profile to the given state and re-derives the
// user's active flag in the same transaction, so the two can never disagree.
// Every transition between the three states is allowed and the call is
// idempotent; concurrent decisions resolve to whichever commits last.
func SetApprovalStatus(ctx context.Context, profileId int, status ApprovalStatus) (*Profile, error) {

	db := config.GetDB()

	var profile Profile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&profile, profileId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		isActive := status == ApprovalStatusApproved

		if err := tx.Model(&Profile{}).Where("id = ?", profileId).
			Update("approval_status", status).Error; err != nil {
			return err
		}
		if err := tx.Model(&User{}).Where("id = ?", profile.UserId).
			Update("is_active", isActive).Error; err != nil {
			return err
		}

		profile.ApprovalStatus = status
		if profile.User != nil {
			profile.User.IsActive = &isActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A rejection pulls the rug from live sessions as well.
	if status == ApprovalStatusRejected && profile.User != nil {
		if err := profile.User.DestroyAllSessions(ctx); err != nil {
			config.LogError(config.GetLogger(), "models", "SetApprovalStatus", "destroy sessions", profile.UserId, err)
		}
	}

	if profile.User != nil {
		profile.User.PrepareGive()
	}
	return &profile, nil
}

// ListProfiles returns profiles with their users, optionally narrowed to one
// approval state, pending first then newest registrations first.
func ListProfiles(ctx context.Context, status string) ([]*Profile, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Profile{}).Preload("User")

	if parsed, ok := ParseApprovalStatus(status); ok {
		dbCtx = dbCtx.Where("approval_status = ?", parsed)
	}

	var profiles []*Profile
	if err := dbCtx.Order("approval_status = 'PENDING' DESC, created_at DESC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.User != nil {
			p.User.PrepareGive()
		}
	}
	return profiles, nil
}
