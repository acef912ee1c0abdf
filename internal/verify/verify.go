// Package verify applies email identity verification to leads, backed by the
// Hunter.io verifier with a persistent lookup cache.
package verify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/kvcache"
	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/store"
	"github.com/sells-group/fleetaudit/pkg/hunter"
)

// Verifier resolves the verified status of lead email addresses. Verification
// is best-effort enrichment: it never returns an error to its caller, and it
// degrades to VerifyUnknown on any upstream failure.
type Verifier struct {
	client hunter.Client
	cache  kvcache.Store
	store  store.Store
}

// New creates a Verifier. client may be nil when no API key is configured,
// in which case verification is a no-op.
func New(client hunter.Client, cache kvcache.Store, st store.Store) *Verifier {
	return &Verifier{client: client, cache: cache, store: st}
}

// Enabled reports whether a verification backend is configured.
func (v *Verifier) Enabled() bool {
	return v.client != nil
}

// Verify resolves the status for a single address. A cache hit issues no
// network call; any client failure (including poll exhaustion) resolves to
// VerifyUnknown.
func (v *Verifier) Verify(ctx context.Context, email string) model.VerifyStatus {
	if v.client == nil || email == "" {
		return model.VerifyPending
	}

	verification, err := v.lookup(ctx, email)
	if err != nil {
		zap.L().Warn("email verification failed",
			zap.String("email", email),
			zap.Error(err))
		return model.VerifyUnknown
	}

	return statusFor(verification.Data)
}

// VerifyLead verifies the address and persists the result onto the lead,
// returning the resolved status. A missing lead is a logged no-op: the lead
// may have been deleted while the verification was in flight.
func (v *Verifier) VerifyLead(ctx context.Context, leadID, email string) model.VerifyStatus {
	if v.client == nil {
		zap.L().Debug("email verification skipped, no api key configured",
			zap.String("lead_id", leadID))
		return model.VerifyPending
	}

	status := v.Verify(ctx, email)
	if status == model.VerifyPending {
		return status
	}

	if err := v.store.SetVerifiedStatus(ctx, leadID, status); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			zap.L().Info("lead gone before verification completed",
				zap.String("lead_id", leadID))
			return status
		}
		zap.L().Error("persist verified status",
			zap.String("lead_id", leadID),
			zap.Error(err))
		return status
	}

	zap.L().Info("lead email verified",
		zap.String("lead_id", leadID),
		zap.String("status", string(status)))
	return status
}

func (v *Verifier) lookup(ctx context.Context, email string) (*hunter.Verification, error) {
	key := kvcache.EmailKey(email)
	if raw, ok := v.cache.Get(key); ok {
		verification, err := hunter.ParseVerification(raw)
		if err == nil {
			return verification, nil
		}
		// Corrupt cache entry; fall through to a fresh lookup.
		zap.L().Warn("discarding unreadable cache entry",
			zap.String("key", key),
			zap.Error(err))
	}

	verification, err := v.client.VerifyEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := v.cache.Put(key, verification.Raw); err != nil {
		zap.L().Warn("cache verification result",
			zap.String("key", key),
			zap.Error(err))
	}
	return verification, nil
}

// statusFor maps a verifier verdict to a lead status. Gibberish and
// disposable addresses are forced invalid regardless of the raw verdict.
func statusFor(data hunter.VerificationData) model.VerifyStatus {
	if data.Gibberish || data.Disposable {
		return model.VerifyInvalid
	}

	switch data.Result {
	case "valid":
		return model.VerifyValid
	case "invalid":
		return model.VerifyInvalid
	case "accept_all":
		return model.VerifyAcceptAll
	default:
		return model.VerifyUnknown
	}
}
