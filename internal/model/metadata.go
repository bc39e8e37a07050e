package model

import (
	"encoding/json"
	"time"
)

// PendingUpgrade 待支付的升级：付款确认前租户保留原套餐
type PendingUpgrade struct {
	PaymentID   int64     `json:"payment_id"`
	FromPlan    string    `json:"from_plan"`
	ToPlan      string    `json:"to_plan"`
	Amount      int64     `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

// PendingDowngrade 延期生效的降级：到 EffectiveAt 前租户保留原（更高）套餐
type PendingDowngrade struct {
	FromPlan     string    `json:"from_plan"`
	ToPlan       string    `json:"to_plan"`
	EffectiveAt  time.Time `json:"effective_at"`
	NewPlanPrice int64     `json:"new_plan_price"`
}

// PendingDowngradePayment 降级已生效、等待新套餐付款确认
type PendingDowngradePayment struct {
	PaymentID   int64     `json:"payment_id"`
	FromPlan    string    `json:"from_plan"`
	ToPlan      string    `json:"to_plan"`
	Amount      int64     `json:"amount"`
	EffectiveAt time.Time `json:"effective_at"`
}

// PlanAudit 套餐变更审计条目，只追加
type PlanAudit struct {
	FromPlan string    `json:"from_plan"`
	ToPlan   string    `json:"to_plan"`
	At       time.Time `json:"at"`
}

// SubscriptionMeta 订阅上的待定操作文档。
// 不变量：同一时刻至多存在一种待定操作；未知键原样保留（向前兼容）。
type SubscriptionMeta struct {
	PendingUpgrade          *PendingUpgrade          `json:"pending_upgrade,omitempty"`
	PendingDowngrade        *PendingDowngrade        `json:"pending_downgrade,omitempty"`
	PendingDowngradePayment *PendingDowngradePayment `json:"pending_downgrade_payment,omitempty"`
	LastUpgrade             []PlanAudit              `json:"last_upgrade,omitempty"`
	LastDowngrade           []PlanAudit              `json:"last_downgrade,omitempty"`

	extra map[string]json.RawMessage
}

var knownMetaKeys = map[string]bool{
	"pending_upgrade":           true,
	"pending_downgrade":         true,
	"pending_downgrade_payment": true,
	"last_upgrade":              true,
	"last_downgrade":            true,
}

func (m *SubscriptionMeta) UnmarshalJSON(data []byte) error {
	type alias SubscriptionMeta
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownMetaKeys {
		delete(raw, key)
	}

	*m = SubscriptionMeta(a)
	if len(raw) > 0 {
		m.extra = raw
	}
	return nil
}

func (m SubscriptionMeta) MarshalJSON() ([]byte, error) {
	type alias SubscriptionMeta
	data, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	if len(m.extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for key, value := range m.extra {
		if _, ok := merged[key]; !ok {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// PendingKind 当前待定操作类型，无待定操作返回空串
func (m *SubscriptionMeta) PendingKind() string {
	switch {
	case m.PendingUpgrade != nil:
		return "pending_upgrade"
	case m.PendingDowngrade != nil:
		return "pending_downgrade"
	case m.PendingDowngradePayment != nil:
		return "pending_downgrade_payment"
	}
	return ""
}

// ClearPending 清除所有待定操作
func (m *SubscriptionMeta) ClearPending() {
	m.PendingUpgrade = nil
	m.PendingDowngrade = nil
	m.PendingDowngradePayment = nil
}

// SetPendingUpgrade 写入待定升级，互斥清除其他待定操作
func (m *SubscriptionMeta) SetPendingUpgrade(p *PendingUpgrade) {
	m.ClearPending()
	m.PendingUpgrade = p
}

// SetPendingDowngrade 写入待定降级，互斥清除其他待定操作
func (m *SubscriptionMeta) SetPendingDowngrade(p *PendingDowngrade) {
	m.ClearPending()
	m.PendingDowngrade = p
}

// SetPendingDowngradePayment 写入降级待付款，互斥清除其他待定操作
func (m *SubscriptionMeta) SetPendingDowngradePayment(p *PendingDowngradePayment) {
	m.ClearPending()
	m.PendingDowngradePayment = p
}

// AppendUpgradeAudit 追加升级审计记录
func (m *SubscriptionMeta) AppendUpgradeAudit(fromPlan, toPlan string, at time.Time) {
	m.LastUpgrade = append(m.LastUpgrade, PlanAudit{FromPlan: fromPlan, ToPlan: toPlan, At: at})
}

// AppendDowngradeAudit 追加降级审计记录
func (m *SubscriptionMeta) AppendDowngradeAudit(fromPlan, toPlan string, at time.Time) {
	m.LastDowngrade = append(m.LastDowngrade, PlanAudit{FromPlan: fromPlan, ToPlan: toPlan, At: at})
}
