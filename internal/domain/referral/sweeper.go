package referral

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthoffice/records/internal/platform/db"
	"github.com/healthoffice/records/internal/platform/metrics"
)

// DefaultExpiry is the age after which an active or pending referral is
// cancelled automatically.
const DefaultExpiry = 48 * time.Hour

// Sweeper cancels stale referrals. It holds no state between calls and is
// safe to run from any number of concurrent requests: a row already moved
// no longer matches the update predicate.
type Sweeper struct {
	repo    Repository
	audit   AuditLogger
	tx      db.TxRunner
	expiry  time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func NewSweeper(repo Repository, audit AuditLogger, tx db.TxRunner, expiry time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Sweeper {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Sweeper{
		repo:    repo,
		audit:   audit,
		tx:      tx,
		expiry:  expiry,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Sweeper) expiryReason() string {
	return fmt.Sprintf("auto-expired after %s", formatHours(s.expiry))
}

// Sweep cancels every active or pending referral older than the expiry
// threshold and writes one system log row per referral, all in one
// transaction. It returns the number of referrals cancelled.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := s.now()
	now := start.UTC()
	cutoff := now.Add(-s.expiry)

	var expired []Expired
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.repo.ExpireStale(ctx, cutoff, now)
		if err != nil {
			return err
		}
		reason := s.expiryReason()
		for _, e := range expired {
			entry := systemEntry(e.ID, LogCancelled, reason, e.PreviousStatus, StatusCancelled, now)
			if err := s.audit.Record(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("referral expiry sweep failed")
		return 0, err
	}

	s.metrics.ReferralsExpired(len(expired), s.now().Sub(start))
	if len(expired) > 0 {
		ids := make([]int64, len(expired))
		for i, e := range expired {
			ids[i] = e.ID
		}
		s.logger.Info().
			Int("count", len(expired)).
			Ints64("referral_ids", ids).
			Time("cutoff", cutoff).
			Msg("referrals auto-expired")
	}
	return len(expired), nil
}

// expireLocked cancels r inside the caller's transaction when it crossed
// the threshold after the last sweep. r must already be locked for update.
func (s *Sweeper) expireLocked(ctx context.Context, r *Referral, now time.Time) (bool, error) {
	if !slices.Contains(expirable, r.Status) || !r.ReferralDate.Before(now.Add(-s.expiry)) {
		return false, nil
	}
	if err := s.repo.UpdateStatus(ctx, r.ID, StatusCancelled, now); err != nil {
		return false, err
	}
	entry := systemEntry(r.ID, LogCancelled, s.expiryReason(), r.Status, StatusCancelled, now)
	if err := s.audit.Record(ctx, entry); err != nil {
		return false, err
	}
	s.logger.Info().
		Int64("referral_id", r.ID).
		Str("previous_status", string(r.Status)).
		Msg("referral auto-expired under lock")
	r.Status = StatusCancelled
	r.UpdatedAt = now
	return true, nil
}

func formatHours(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	}
	return d.String()
}
