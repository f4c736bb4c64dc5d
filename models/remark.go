package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"gorm.io/gorm"
)

// InvoiceRemarkCategory is a reusable invoice label with an admin-managed
// display order.
type InvoiceRemarkCategory struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	SortOrder int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListRemarks serves the dropdown list from redis when warm; every invoice
// or remark mutation drops the cached copy.
func ListRemarks(ctx context.Context) ([]*InvoiceRemarkCategory, error) {
	cached, err := utils.RetrieveRedisList[InvoiceRemarkCategory]()
	if err != nil {
		config.LogError(config.GetLogger(), "models", "ListRemarks", "cache read", nil, err)
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var remarks []*InvoiceRemarkCategory
	if err := db.WithContext(ctx).Order("sort_order, name").Find(&remarks).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList[InvoiceRemarkCategory](remarks); err != nil {
		config.LogError(config.GetLogger(), "models", "ListRemarks", "cache write", nil, err)
	}
	return remarks, nil
}

// AddRemark appends a category at the end of the ordering. Names are unique
// case-insensitively.
func AddRemark(ctx context.Context, name string) (*InvoiceRemarkCategory, error) {

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, utils.NewValidationError("remark name is required")
	}

	db := config.GetDB()

	// name column uses the server's case-insensitive collation
	if err := utils.ValidateUnique[InvoiceRemarkCategory](ctx, "name", name, 0); err != nil {
		return nil, err
	}

	var maxOrder int
	if err := db.WithContext(ctx).Model(&InvoiceRemarkCategory{}).
		Select("COALESCE(MAX(sort_order), 0)").Scan(&maxOrder).Error; err != nil {
		return nil, err
	}

	remark := InvoiceRemarkCategory{Name: name, SortOrder: maxOrder + 1}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&remark).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionCreateRemark, LogEntityRemark, &remark.ID, remark.Name,
			fmt.Sprintf("created remark %q", remark.Name))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "AddRemark", "invalidate caches", remark.ID, err)
	}
	return &remark, nil
}

// DeleteRemark refuses to delete a category that invoices still reference;
// the conflict carries the exact reference count.
func DeleteRemark(ctx context.Context, id int) (*InvoiceRemarkCategory, error) {

	db := config.GetDB()

	var remark InvoiceRemarkCategory
	if err := db.WithContext(ctx).First(&remark, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	references, err := utils.ResourceCountWhere[Invoice](ctx, "remark_id = ?", id)
	if err != nil {
		return nil, err
	}
	if references > 0 {
		return nil, &utils.ConflictError{
			Msg:        fmt.Sprintf("remark is used by %d invoice(s)", references),
			References: references,
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&remark).Error; err != nil {
			return err
		}
		return RecordLog(tx, ctx, LogActionDeleteRemark, LogEntityRemark, &remark.ID, remark.Name,
			fmt.Sprintf("deleted remark %q", remark.Name))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteRemark", "invalidate caches", remark.ID, err)
	}
	return &remark, nil
}

// ReorderRemarks rewrites sort_order from the submitted id list: positions
// run 1,2,3,... in list order, and ids that do not resolve to a category are
// skipped without consuming a position.
func ReorderRemarks(ctx context.Context, order []int) ([]*InvoiceRemarkCategory, error) {

	if len(order) == 0 {
		return nil, utils.NewValidationError("order list is required")
	}

	db := config.GetDB()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		position := 0
		applied := make([]string, 0, len(order))
		for _, id := range order {
			var remark InvoiceRemarkCategory
			if err := tx.First(&remark, id).Error; err != nil {
				continue
			}
			position++
			if err := tx.Model(&InvoiceRemarkCategory{}).Where("id = ?", id).
				Update("sort_order", position).Error; err != nil {
				return err
			}
			applied = append(applied, remark.Name)
		}
		if position == 0 {
			return utils.NewValidationError("no remark matched the submitted order")
		}
		return RecordLog(tx, ctx, LogActionReorderRemark, LogEntityRemark, nil, "",
			"reordered remarks: "+strings.Join(applied, ", "))
	})
	if err != nil {
		return nil, err
	}

	if err := InvalidateInvoiceCaches(); err != nil {
		config.LogError(config.GetLogger(), "models", "ReorderRemarks", "invalidate caches", nil, err)
	}
	return ListRemarks(ctx)
}
