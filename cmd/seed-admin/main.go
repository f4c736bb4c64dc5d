// seed-admin creates or updates the bootstrap admin account (role = 'A',
// active, APPROVED profile) so the approval gate has someone on the inside.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_EMAIL=admin@example.com ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"gorm.io/gorm"
)

const defaultAdminUsername = "invoicesAdmin"

func main() {
	ctx := context.Background()

	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_EMAIL and ADMIN_PASSWORD are required")
		os.Exit(1)
	}
	username := strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	if username == "" {
		username = defaultAdminUsername
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Preload("Profile").
		Where("LOWER(email) = ?", email).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: username,
			Email:    email,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			Role:     models.UserRoleAdmin,
		}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
			profile := models.Profile{UserId: u.ID, ApprovalStatus: models.ApprovalStatusApproved}
			return tx.Create(&profile).Error
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q username=%q (role=A, approved)\n", email, u.Username)
		return
	}

	// Update existing user: ensure password, admin role and approval.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
			"password":  hashedStr,
			"is_active": utils.NewTrue(),
			"role":      models.UserRoleAdmin,
		}).Error; err != nil {
			return err
		}
		if existing.Profile == nil {
			profile := models.Profile{UserId: existing.ID, ApprovalStatus: models.ApprovalStatusApproved}
			return tx.Create(&profile).Error
		}
		return tx.Model(&models.Profile{}).Where("user_id = ?", existing.ID).
			Update("approval_status", models.ApprovalStatusApproved).Error
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: email=%q username=%q (role=A, approved)\n", email, existing.Username)
}
