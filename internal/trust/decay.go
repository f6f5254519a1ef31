package trust

// Inactivity decay:
//   - Evaluated lazily on every read or mutation of a profile, and by a single
//     sweep tick over all profiles. No per-user timers.
//   - Applies only once a full day has passed since the later of the last
//     activity and the last applied decay (the decay checkpoint). The
//     checkpoint keeps repeated evaluations inside a day from compounding;
//     decay never touches LastActivityTime.
//   - amount = score * decayRate * days, clamped at minimumThreshold.

import (
	"math"
	"time"

	"go.uber.org/zap"
)

const day = 24 * time.Hour

// DefaultSweepInterval is how often StartDecaySweep re-evaluates every profile.
const DefaultSweepInterval = time.Hour

// ComputeDecay returns the raw decay amount and the clamped new score for a
// profile idle for days. No decay applies below one full day.
func ComputeDecay(score, rate, minimumThreshold, days float64) (amount, newScore float64) {
	if days < 1 || rate <= 0 {
		return 0, score
	}
	amount = score * rate * days
	newScore = math.Max(minimumThreshold, score-amount)
	if newScore > score {
		// already under the floor; decay never raises a score
		newScore = score
	}
	return amount, newScore
}

// applyDecayLocked brings p up to date. Caller holds the profile lock.
func (l *Ledger) applyDecayLocked(p *Profile, now time.Time) bool {
	params := l.gov.snapshot()
	if !params.DecayEnabled {
		return false
	}

	ref := p.LastActivityTime
	if p.LastDecayTime.After(ref) {
		ref = p.LastDecayTime
	}
	days := now.Sub(ref).Hours() / 24

	amount, newScore := ComputeDecay(p.TrustScore, params.DecayRate, params.MinimumThreshold, days)
	if newScore == p.TrustScore {
		return false
	}

	prev := p.TrustScore
	p.TrustScore = newScore
	p.LastDecayTime = now

	l.events.emit(Event{
		Type:          EventDecay,
		UserID:        p.UserID,
		Timestamp:     now,
		Amount:        amount,
		PreviousScore: prev,
		NewScore:      newScore,
		Data:          map[string]any{"days_since_activity": days},
	})
	return true
}

// SweepDecay evaluates decay for every profile and returns how many changed.
func (l *Ledger) SweepDecay() int {
	now := l.now()
	updated := 0
	for _, e := range l.store.snapshot() {
		e.mu.Lock()
		if l.applyDecayLocked(e.profile, now) {
			updated++
		}
		e.mu.Unlock()
	}
	return updated
}

// StartDecaySweep runs a sweep now and then every interval until Shutdown.
func (l *Ledger) StartDecaySweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if l.closed.Load() {
		return
	}

	l.logSweep(l.SweepDecay())

	l.sweepWG.Add(1)
	go func() {
		defer l.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.logSweep(l.SweepDecay())
			case <-l.stopCh:
				return
			}
		}
	}()
}

func (l *Ledger) logSweep(updated int) {
	if updated > 0 {
		l.log.Info("decay: swept profiles", zap.Int("updated", updated))
	}
}
