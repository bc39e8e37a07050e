package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/booking_go_server/internal/model"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *TenantRepository) WithTx(tx *gorm.DB) *TenantRepository {
	return &TenantRepository{db: tx}
}

func (r *TenantRepository) GetByID(id int64) (*model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.Where("id = ?", id).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// UpdatePlan 刷新租户当前套餐缓存
func (r *TenantRepository) UpdatePlan(id int64, planType string) error {
	return r.db.Model(&model.Tenant{}).Where("id = ?", id).
		Update("plan_type", planType).Error
}
