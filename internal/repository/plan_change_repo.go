package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
)

type PlanChangeRepository struct {
	db *gorm.DB
}

func NewPlanChangeRepository(db *gorm.DB) *PlanChangeRepository {
	return &PlanChangeRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *PlanChangeRepository) WithTx(tx *gorm.DB) *PlanChangeRepository {
	return &PlanChangeRepository{db: tx}
}

// Create 审计日志只追加，不提供更新/删除
func (r *PlanChangeRepository) Create(change *model.PlanChange) error {
	return r.db.Create(change).Error
}

func (r *PlanChangeRepository) ListByTenant(tenantID int64) ([]model.PlanChange, error) {
	var changes []model.PlanChange
	err := r.db.Where("tenant_id = ?", tenantID).Order("id DESC").Find(&changes).Error
	return changes, err
}
