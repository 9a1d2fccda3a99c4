package wheel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrNoSpinsLeft = errors.New("no spins left")
	ErrNoPrizes    = errors.New("prize table is empty")
)

const (
	SourceFree      = "free"
	SourcePurchased = "purchased"
)

type Prize struct {
	ID     string
	Coins  int64
	Weight int
}

type AccountStore interface {
	AwardCoins(ctx context.Context, userID, coins int64) (int64, error)
	SpendPurchasedSpinAndAward(ctx context.Context, userID, coins int64) (int64, bool, error)
}

type QuotaStore interface {
	ConsumeFreeSpin(ctx context.Context, userID int64, limit int, now time.Time) (bool, error)
	RefundFreeSpin(ctx context.Context, userID int64, now time.Time) error
}

type Config struct {
	FreeSpinsPerDay int
	Prizes          []Prize
}

type Service struct {
	accounts    AccountStore
	quota       QuotaStore
	cfg         Config
	totalWeight int
	logger      *zap.Logger
	now         func() time.Time
	randInt     func(n int) int
}

type SpinResult struct {
	PrizeID  string
	CoinsWon int64
	Balance  int64
	Source   string
}

func NewService(accounts AccountStore, quota QuotaStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	total := 0
	for _, prize := range cfg.Prizes {
		if prize.Weight > 0 {
			total += prize.Weight
		}
	}

	return &Service{
		accounts:    accounts,
		quota:       quota,
		cfg:         cfg,
		totalWeight: total,
		logger:      logger,
		now:         time.Now,
		randInt:     rand.Intn,
	}
}

// Spin consumes one spin credit and awards a weighted random prize. The daily
// free quota is drained before purchased spins; the prize credit and the
// purchased-spin decrement share one transaction so a crash cannot take the
// spin without paying out.
func (s *Service) Spin(ctx context.Context, userID int64) (SpinResult, error) {
	if userID <= 0 {
		return SpinResult{}, ErrValidation
	}
	if s.accounts == nil || s.quota == nil {
		return SpinResult{}, fmt.Errorf("wheel dependencies are not configured")
	}

	prize, err := s.pickPrize()
	if err != nil {
		return SpinResult{}, err
	}

	free, err := s.quota.ConsumeFreeSpin(ctx, userID, s.cfg.FreeSpinsPerDay, s.now())
	if err != nil {
		return SpinResult{}, fmt.Errorf("consume free spin: %w", err)
	}

	if free {
		balance, err := s.accounts.AwardCoins(ctx, userID, prize.Coins)
		if err != nil {
			// The quota was already drained; give the spin back so the
			// failed award does not cost the user a free attempt.
			if refundErr := s.quota.RefundFreeSpin(ctx, userID, s.now()); refundErr != nil {
				s.logger.Warn("refund free spin failed",
					zap.Int64("user_id", userID),
					zap.Error(refundErr),
				)
			}
			return SpinResult{}, err
		}
		s.logSpin(userID, prize, SourceFree)
		return SpinResult{
			PrizeID:  prize.ID,
			CoinsWon: prize.Coins,
			Balance:  balance,
			Source:   SourceFree,
		}, nil
	}

	balance, spent, err := s.accounts.SpendPurchasedSpinAndAward(ctx, userID, prize.Coins)
	if err != nil {
		return SpinResult{}, err
	}
	if !spent {
		return SpinResult{}, ErrNoSpinsLeft
	}

	s.logSpin(userID, prize, SourcePurchased)
	return SpinResult{
		PrizeID:  prize.ID,
		CoinsWon: prize.Coins,
		Balance:  balance,
		Source:   SourcePurchased,
	}, nil
}

func (s *Service) pickPrize() (Prize, error) {
	if s.totalWeight <= 0 || len(s.cfg.Prizes) == 0 {
		return Prize{}, ErrNoPrizes
	}

	roll := s.randInt(s.totalWeight)
	for _, prize := range s.cfg.Prizes {
		if prize.Weight <= 0 {
			continue
		}
		if roll < prize.Weight {
			return prize, nil
		}
		roll -= prize.Weight
	}

	return s.cfg.Prizes[len(s.cfg.Prizes)-1], nil
}

func (s *Service) logSpin(userID int64, prize Prize, source string) {
	s.logger.Info("wheel spin",
		zap.Int64("user_id", userID),
		zap.String("prize_id", prize.ID),
		zap.Int64("coins", prize.Coins),
		zap.String("source", source),
	)
}

// SetRandFunc overrides prize selection randomness in tests.
func (s *Service) SetRandFunc(fn func(n int) int) {
	if fn != nil {
		s.randInt = fn
	}
}

// SetNowFunc overrides the clock in tests.
func (s *Service) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}
