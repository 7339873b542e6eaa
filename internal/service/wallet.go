package service

import (
	"context"
	"log/slog"
	"sort"

	"sudooom.date.chat/internal/config"
	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/payment"
	"sudooom.date.chat/internal/repository"
)

// Tier 充值档位
type Tier struct {
	Name    string `json:"name"`
	Amount  int64  `json:"amount"`
	Credits int64  `json:"credits"`
}

// TopUpResult 充值结果
type TopUpResult struct {
	ChargeID string `json:"chargeId"`
	Tier     string `json:"tier"`
	Credited int64  `json:"credited"`
	Balance  int64  `json:"balance"`
}

// WalletService 消息额度充值
type WalletService struct {
	users    repository.UserStore
	provider payment.Provider
	tiers    map[string]config.TierConfig
	logger   *slog.Logger
}

// NewWalletService 创建充值服务
func NewWalletService(users repository.UserStore, provider payment.Provider, tiers map[string]config.TierConfig) *WalletService {
	return &WalletService{
		users:    users,
		provider: provider,
		tiers:    tiers,
		logger:   slog.Default(),
	}
}

// Tiers 全部档位，按金额升序
func (s *WalletService) Tiers() []Tier {
	result := make([]Tier, 0, len(s.tiers))
	for name, t := range s.tiers {
		result = append(result, Tier{Name: name, Amount: t.Amount, Credits: t.Credits})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Amount == result[j].Amount {
			return result[i].Name < result[j].Name
		}
		return result[i].Amount < result[j].Amount
	})
	return result
}

// TopUp 扣款成功后按档位增加额度；扣款失败不增加
func (s *WalletService) TopUp(ctx context.Context, userID int64, tierName, customerToken string) (*TopUpResult, error) {
	tier, ok := s.tiers[tierName]
	if !ok {
		return nil, chatErrors.ErrInvalidTier
	}
	if customerToken == "" {
		return nil, chatErrors.ErrInvalidParams
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	charge, err := s.provider.Charge(ctx, tier.Amount, customerToken)
	if err != nil {
		s.logger.Warn("Payment charge failed",
			"userId", userID,
			"tier", tierName,
			"error", err)
		return nil, chatErrors.ErrPaymentFailed.Wrap(err)
	}

	balance, err := s.users.CreditBalance(ctx, userID, tier.Credits)
	if err != nil {
		// 已扣款但未到账，需要人工对账
		s.logger.Error("Failed to credit balance after successful charge",
			"userId", userID,
			"chargeId", charge.ID,
			"credits", tier.Credits,
			"error", err)
		return nil, err
	}

	s.logger.Info("Balance topped up",
		"userId", userID,
		"tier", tierName,
		"chargeId", charge.ID,
		"balance", balance)

	return &TopUpResult{
		ChargeID: charge.ID,
		Tier:     tierName,
		Credited: tier.Credits,
		Balance:  balance,
	}, nil
}
