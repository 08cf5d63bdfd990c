package fraud

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the scoring thresholds. Values are program defaults and can
// be overridden from the accrual config section.
type Config struct {
	// MinTransactionCount flags wallets with suspiciously little on-chain
	// activity for their earnings.
	MinTransactionCount int
	// FraudThreshold is the daily-total-to-average ratio above which a
	// wallet is marked suspicious outright.
	FraudThreshold decimal.Decimal
	// MaxDailyVariance is the softer ratio that adds score without
	// marking the wallet suspicious.
	MaxDailyVariance decimal.Decimal
	// AverageWindowDays is the rolling window consulted for the pattern
	// analysis.
	AverageWindowDays int
}

func DefaultConfig() Config {
	return Config{
		MinTransactionCount: 3,
		FraudThreshold:      decimal.NewFromInt(10),
		MaxDailyVariance:    decimal.NewFromInt(5),
		AverageWindowDays:   30,
	}
}

var (
	firstTimeHighThreshold = decimal.NewFromInt(5000)
	extremeDailyThreshold  = decimal.NewFromInt(50000)
)

// SuspiciousAt is the score at which a result is marked suspicious.
const SuspiciousAt = 50

// Result is the advisory verdict attached to a daily accrual. It never
// blocks the accrual itself.
type Result struct {
	IsSuspicious    bool     `json:"is_suspicious"`
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// AverageProvider supplies the rolling average daily shards for a wallet.
type AverageProvider interface {
	GetAverageDailyShards(ctx context.Context, walletAddress, seasonID string, days int) (decimal.Decimal, error)
}

type Scorer struct {
	averages AverageProvider
	cfg      Config
}

func NewScorer(averages AverageProvider, cfg Config) *Scorer {
	if cfg.AverageWindowDays == 0 {
		cfg = DefaultConfig()
	}
	return &Scorer{averages: averages, cfg: cfg}
}

// CheckDailyEarning scores one wallet's computed daily total against its
// historical pattern. txCount is optional; pass nil when unknown.
func (s *Scorer) CheckDailyEarning(ctx context.Context, walletAddress string, dailyTotal decimal.Decimal, seasonID string, txCount *int) (*Result, error) {
	// An inactive day is never fraud.
	if dailyTotal.IsZero() {
		return &Result{Score: 0, IsSuspicious: false}, nil
	}

	result := &Result{}

	if txCount != nil && *txCount < s.cfg.MinTransactionCount {
		result.Score += 20
		result.Reasons = append(result.Reasons, "transaction count below minimum for earnings level")
	}

	pattern, err := s.analyzePattern(ctx, walletAddress, dailyTotal, seasonID)
	if err != nil {
		return nil, err
	}
	// The pattern sub-score always counts, but a flagged-without-suspicion
	// sub-result (first-time high earner) is not escalated into reasons.
	result.Score += pattern.score
	result.Reasons = append(result.Reasons, pattern.reasons...)
	result.Recommendations = append(result.Recommendations, pattern.recommendations...)

	if dailyTotal.GreaterThan(extremeDailyThreshold) {
		result.Score += 30
		result.Reasons = append(result.Reasons, "extremely high daily earnings")
		result.Recommendations = append(result.Recommendations, "review vault positions and counterparties manually")
	}

	result.IsSuspicious = result.Score >= SuspiciousAt

	if result.IsSuspicious {
		zap.L().Warn("suspicious daily earnings detected",
			zap.String("wallet_address", walletAddress),
			zap.String("season_id", seasonID),
			zap.Int("score", result.Score),
			zap.Strings("reasons", result.Reasons),
		)
	}

	return result, nil
}

type patternResult struct {
	score           int
	reasons         []string
	recommendations []string
}

func (s *Scorer) analyzePattern(ctx context.Context, walletAddress string, dailyTotal decimal.Decimal, seasonID string) (patternResult, error) {
	average, err := s.averages.GetAverageDailyShards(ctx, walletAddress, seasonID, s.cfg.AverageWindowDays)
	if err != nil {
		return patternResult{}, err
	}

	if average.IsZero() {
		// First-time earner. A large first day contributes score but is
		// not, on its own, surfaced as a reason.
		if dailyTotal.GreaterThan(firstTimeHighThreshold) {
			return patternResult{score: 25}, nil
		}
		return patternResult{}, nil
	}

	variance := dailyTotal.Div(average)

	if variance.GreaterThan(s.cfg.FraudThreshold) {
		score := variance.Mul(decimal.NewFromInt(4))
		capped := 40
		if score.LessThan(decimal.NewFromInt(40)) {
			capped = int(score.Round(0).IntPart())
		}
		return patternResult{
			score:           capped,
			reasons:         []string{"daily earnings far exceed the 30-day average"},
			recommendations: []string{"hold distribution pending manual review"},
		}, nil
	}

	if variance.GreaterThan(s.cfg.MaxDailyVariance) {
		return patternResult{
			score:   15,
			reasons: []string{"daily earnings exceed the expected variance band"},
		}, nil
	}

	return patternResult{}, nil
}

// ClusterResult is the verdict of the wallet-clustering heuristic.
type ClusterResult struct {
	Flagged bool
	Score   int
}

// CheckWalletClustering flags wallets that interact heavily with a tiny
// set of counterparties.
func CheckWalletClustering(interactions, uniqueCounterparties int) ClusterResult {
	if interactions > 50 && uniqueCounterparties < 5 {
		return ClusterResult{Flagged: true, Score: 30}
	}
	return ClusterResult{}
}

// CheckReferralAbuse reports whether a referrer shows up in their own
// referee list.
func CheckReferralAbuse(referrerAddress string, refereeAddresses []string) bool {
	referrer := strings.ToLower(referrerAddress)
	for _, referee := range refereeAddresses {
		if strings.ToLower(referee) == referrer {
			return true
		}
	}
	return false
}

// ScoreInput feeds the generic weighted combinator.
type ScoreInput struct {
	WalletAgeDays    int
	TransactionCount int
	Variance         decimal.Decimal
	Clustering       bool
	ReferralAbuse    bool
}

// CalculateFraudScore combines the independent signals into a 0-100 score.
func CalculateFraudScore(in ScoreInput) int {
	score := 0

	if in.WalletAgeDays < 7 {
		score += 20
	}
	if in.TransactionCount < DefaultConfig().MinTransactionCount {
		score += 15
	}

	varianceScore := in.Variance.Mul(decimal.NewFromInt(3))
	if varianceScore.GreaterThan(decimal.NewFromInt(30)) {
		score += 30
	} else if varianceScore.IsPositive() {
		score += int(varianceScore.Round(0).IntPart())
	}

	if in.Clustering {
		score += 20
	}
	if in.ReferralAbuse {
		score += 15
	}

	if score > 100 {
		score = 100
	}
	return score
}

// RiskTier classifies a fraud score.
func RiskTier(score int) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}
