// Package claimer drives wallets through eligibility check, proof fetch and
// claim, one wallet at a time.
package claimer

import (
	"context"
	"math/big"
	"math/rand"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"zkpepe_soft/config"
	"zkpepe_soft/fails"
	"zkpepe_soft/wallet"
)

// Session is one wallet as seen by the pipeline.
type Session interface {
	Number() int
	Address() common.Address
	PrivateKey() string
	Proxy() string
	CheckEligibility(ctx context.Context) *big.Rat
	FetchProof(ctx context.Context) error
	HasProof() bool
	Claim(ctx context.Context) error
}

type Recorder interface {
	Record(category fails.Category, privateKey, proxy string) error
}

type Summary struct {
	Total     int
	Eligible  int
	WithProof int
	Claimed   int
	Failed    int
}

type Claimer struct {
	config   config.Config
	recorder Recorder
	log      *zap.Logger

	sleep   func(ctx context.Context, d time.Duration)
	shuffle func(n int, swap func(i, j int))

	failed int
}

type Option func(*Claimer)

func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(c *Claimer) { c.sleep = sleep }
}

func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(c *Claimer) { c.shuffle = shuffle }
}

func New(cfg config.Config, recorder Recorder, log *zap.Logger, opts ...Option) *Claimer {
	c := &Claimer{
		config:   cfg,
		recorder: recorder,
		log:      log,
		sleep:    sleepContext,
		shuffle:  rand.Shuffle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the whole pipeline. It only stops early when ctx is done.
func (c *Claimer) Run(ctx context.Context, sessions []Session) Summary {
	summary := Summary{Total: len(sessions)}
	c.failed = 0

	c.log.Info("=== Starting Eligibility Check Module ===")
	sessions = c.CheckEligibility(ctx, sessions)
	summary.Eligible = len(sessions)

	c.log.Info("=== Starting Proof Fetch Module ===")
	sessions = c.FetchProofs(ctx, sessions)
	summary.WithProof = len(sessions)

	if c.config.ShuffleWallets {
		c.Shuffle(sessions)
	}

	c.log.Info("=== Starting Claim Module ===")
	summary.Claimed = c.ClaimAll(ctx, sessions)
	summary.Failed = c.failed

	c.log.Info("=== Done ===",
		zap.Int("wallets", summary.Total),
		zap.Int("eligible", summary.Eligible),
		zap.Int("with_proof", summary.WithProof),
		zap.Int("claimed", summary.Claimed),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

// CheckEligibility queries every wallet and returns the ones with a
// positive claimable amount.
func (c *Claimer) CheckEligibility(ctx context.Context, sessions []Session) []Session {
	var eligible []Session
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}

		amount := s.CheckEligibility(ctx)
		if amount == nil || amount.Sign() <= 0 {
			c.log.Info("Not eligible, skipping", fields(s)...)
		} else {
			c.log.Info("✅ Eligible", append(fields(s), zap.String("amount", formatAmount(amount)))...)
			eligible = append(eligible, s)
		}

		c.fetchSleep(ctx)
	}
	return eligible
}

// FetchProofs fetches a proof for every wallet, retrying up to the
// configured number of attempts, and returns the wallets that have one.
// Wallets that run out of attempts are recorded as failed_proof. A cancelled
// ctx stops the phase without recording the wallet in progress.
func (c *Claimer) FetchProofs(ctx context.Context, sessions []Session) []Session {
	var ready []Session
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}

		for attempt := 1; attempt <= c.config.ProofAttempts; attempt++ {
			err := s.FetchProof(ctx)
			if ctx.Err() != nil {
				break
			}
			c.fetchSleep(ctx)
			if err == nil {
				c.log.Info("✅ Fetched proof", fields(s)...)
				break
			}
			c.log.Debug("Proof fetch attempt failed",
				append(fields(s), zap.Int("attempt", attempt), zap.Error(err))...)
		}

		if ctx.Err() != nil && !s.HasProof() {
			break
		}
		if !s.HasProof() {
			c.log.Error("❌ Failed to get proof, skipping", fields(s)...)
			c.record(s, fails.FailedProof)
			continue
		}
		ready = append(ready, s)
	}
	return ready
}

func (c *Claimer) Shuffle(sessions []Session) {
	c.shuffle(len(sessions), func(i, j int) {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	})
}

// ClaimAll claims every wallet and returns how many succeeded. Failures are
// recorded under the category of their kind. The claim delay follows every
// wallet, whatever the outcome.
func (c *Claimer) ClaimAll(ctx context.Context, sessions []Session) int {
	claimed := 0
	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}
		if c.claim(ctx, s) {
			claimed++
		}
	}
	return claimed
}

func (c *Claimer) claim(ctx context.Context, s Session) (ok bool) {
	defer c.claimSleep(ctx)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("❌ Unexpected error", append(fields(s), zap.Any("panic", r))...)
			c.record(s, fails.UnexpectedErr)
			ok = false
		}
	}()

	err := s.Claim(ctx)
	if err == nil {
		c.log.Info("✅ Claimed tokens", fields(s)...)
		return true
	}

	kind := wallet.KindOf(err)
	switch kind {
	case wallet.KindSend:
		c.log.Error("❌ Failed to send tx", append(fields(s), zap.Error(err))...)
	case wallet.KindCheckResult:
		c.log.Error("❌ Cannot check tx results", append(fields(s), zap.Error(err))...)
	case wallet.KindProxyWrap:
		c.log.Error("❌ Failed to set proxy, skipping", append(fields(s), zap.Error(err))...)
	default:
		c.log.Error("❌ Unexpected error", append(fields(s), zap.Error(err))...)
	}
	c.record(s, Category(kind))
	return false
}

// Category is the failure file a claim error of kind k goes to.
func Category(k wallet.Kind) fails.Category {
	switch k {
	case wallet.KindSend:
		return fails.FailedClaim
	case wallet.KindCheckResult:
		return fails.FailedCheckResult
	case wallet.KindProxyWrap:
		return fails.FailedSetEnvProxy
	default:
		return fails.UnexpectedErr
	}
}

func (c *Claimer) record(s Session, category fails.Category) {
	c.failed++
	if err := c.recorder.Record(category, s.PrivateKey(), s.Proxy()); err != nil {
		c.log.Error("Failed to record failure",
			append(fields(s), zap.String("category", string(category)), zap.Error(err))...)
	}
}

func (c *Claimer) fetchSleep(ctx context.Context) {
	c.sleep(ctx, c.config.DelayBetweenFetches.GetRandomDelay())
}

func (c *Claimer) claimSleep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	delay := c.config.DelayBetweenClaims.GetRandomDelay()
	c.log.Info("Sleeping", zap.Duration("delay", delay))
	c.sleep(ctx, delay)
}

// sleepContext waits d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// formatAmount prints amount with up to 18 decimals and no trailing zeros.
func formatAmount(amount *big.Rat) string {
	s := amount.FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func fields(s Session) []zap.Field {
	return []zap.Field{
		zap.String("wallet", s.Address().Hex()),
		zap.Int("number", s.Number()),
	}
}
