package service

import (
	"errors"
	"math"

	"github.com/qs3c/booking_go_server/config"
	"github.com/qs3c/booking_go_server/internal/model"
	"github.com/qs3c/booking_go_server/internal/model/dto"
)

var (
	ErrUnknownPlan  = errors.New("未知的套餐类型")
	ErrInvalidCycle = errors.New("未知的计费周期")
)

const defaultCurrency = "ARS"

// defaultTiers 内置套餐目录，config 中同名条目覆盖
var defaultTiers = map[string]config.PlanTier{
	model.PlanFree:       {Price: 0, MaxAppointments: 30, MaxServices: 3, MaxUsers: 1},
	model.PlanBasic:      {Price: 18900, MaxAppointments: 300, MaxServices: 10, MaxUsers: 3},
	model.PlanPremium:    {Price: 34900, MaxAppointments: 1000, MaxServices: 30, MaxUsers: 10},
	model.PlanEnterprise: {Price: 59900, MaxAppointments: 0, MaxServices: 0, MaxUsers: 0},
}

// PlanService 套餐目录，纯查询无状态
type PlanService struct {
	cfg *config.Config
}

func NewPlanService(cfg *config.Config) *PlanService {
	return &PlanService{cfg: cfg}
}

// Currency 目录币种
func (s *PlanService) Currency() string {
	if s.cfg.Plans.Currency != "" {
		return s.cfg.Plans.Currency
	}
	return defaultCurrency
}

func (s *PlanService) tier(plan string) (config.PlanTier, bool) {
	if t, ok := s.cfg.Plans.Tiers[plan]; ok {
		return t, true
	}
	t, ok := defaultTiers[plan]
	return t, ok
}

// Get 按套餐类型查询目录条目
func (s *PlanService) Get(plan string) (*dto.PlanInfo, error) {
	t, ok := s.tier(plan)
	if !ok {
		return nil, ErrUnknownPlan
	}
	yearly := YearlyPrice(t.Price)
	return &dto.PlanInfo{
		Type:            plan,
		Currency:        s.Currency(),
		MonthlyPrice:    t.Price,
		YearlyPrice:     yearly,
		YearlyPerMonth:  MonthlyEquivalent(yearly),
		MaxAppointments: t.MaxAppointments,
		MaxServices:     t.MaxServices,
		MaxUsers:        t.MaxUsers,
	}, nil
}

// List 按等级从低到高列出全部套餐
func (s *PlanService) List() []dto.PlanInfo {
	plans := make([]dto.PlanInfo, 0, len(model.PlanOrder))
	for _, plan := range model.PlanOrder {
		info, err := s.Get(plan)
		if err != nil {
			continue
		}
		plans = append(plans, *info)
	}
	return plans
}

// PriceFor 套餐在指定计费周期下的应付价格
func (s *PlanService) PriceFor(plan, cycle string) (int64, error) {
	t, ok := s.tier(plan)
	if !ok {
		return 0, ErrUnknownPlan
	}
	switch cycle {
	case model.CycleMonthly:
		return t.Price, nil
	case model.CycleYearly:
		return YearlyPrice(t.Price), nil
	}
	return 0, ErrInvalidCycle
}

// YearlyPrice 年付价格：月价 ×12 打九折，四舍五入到整数货币单位
func YearlyPrice(monthly int64) int64 {
	return int64(math.Round(float64(monthly) * 12 * 0.9))
}

// MonthlyEquivalent 年付价折算到每月的展示价
func MonthlyEquivalent(yearly int64) int64 {
	return int64(math.Round(float64(yearly) / 12))
}
