package trust

import (
	"fmt"
	"math"
	"time"
)

// RecoverTrust restores trust once the recovery window has passed since the
// user's most recent burn. A user who was never burned is always eligible.
// Recovery is scaled by recoveryMultiplier and capped at the initial score.
func (l *Ledger) RecoverTrust(userID string, amount float64, reason, validationProof string) (*Profile, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return nil, newError(CodeInvalidArgument, "recovery amount must be a positive number", "amount", formatFloat(amount))
	}
	e, ok := l.store.get(userID)
	if !ok {
		return nil, notFound(userID)
	}

	now := l.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if l.closed.Load() {
		return nil, ErrClosed
	}

	p := e.profile
	l.applyDecayLocked(p, now)
	params := l.gov.snapshot()

	if last, burned := p.lastBurn(); burned {
		window := time.Duration(params.RecoveryWindowHours * float64(time.Hour))
		if elapsed := now.Sub(last.Timestamp); elapsed < window {
			return nil, newError(CodeNotEligible,
				fmt.Sprintf("recovery window not elapsed: %s remaining", (window-elapsed).Round(time.Minute)),
				"user", userID,
				"last_burn", last.Timestamp.Format(time.RFC3339),
				"recovery_window_hours", formatFloat(params.RecoveryWindowHours))
		}
	}

	actual := math.Min(amount*params.RecoveryMultiplier, l.initialScore-p.TrustScore)
	if actual <= 0 {
		return nil, newError(CodeInsufficientHeadroom, "already at initial trust score",
			"user", userID, "trust_score", formatFloat(p.TrustScore))
	}

	prev := p.TrustScore
	p.TrustScore += actual
	p.LastActivityTime = now
	p.RecoveryEvents = append(p.RecoveryEvents, RecoveryEvent{
		Timestamp:       now,
		Amount:          actual,
		PreviousScore:   prev,
		NewScore:        p.TrustScore,
		Reason:          reason,
		ValidationProof: validationProof,
	})

	l.events.emit(Event{
		Type:          EventRecovery,
		UserID:        userID,
		Timestamp:     now,
		Amount:        actual,
		PreviousScore: prev,
		NewScore:      p.TrustScore,
		Reason:        reason,
		Data: map[string]any{
			"requested":        amount,
			"validation_proof": validationProof != "",
		},
	})

	return p.clone(), nil
}
