package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/kvcache"
	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/store"
	"github.com/sells-group/fleetaudit/pkg/hunter"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeHunter struct {
	calls  int
	result *hunter.Verification
	err    error
}

func (f *fakeHunter) VerifyEmail(_ context.Context, _ string) (*hunter.Verification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func verification(t *testing.T, result string, gibberish, disposable bool) *hunter.Verification {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"result":     result,
			"score":      80,
			"gibberish":  gibberish,
			"disposable": disposable,
		},
	})
	require.NoError(t, err)
	v, err := hunter.ParseVerification(raw)
	require.NoError(t, err)
	return v
}

type fakeStatusStore struct {
	store.Store
	statuses map[string]model.VerifyStatus
	missing  bool
}

func (f *fakeStatusStore) SetVerifiedStatus(_ context.Context, leadID string, status model.VerifyStatus) error {
	if f.missing {
		return fmt.Errorf("wrap: %w", store.ErrNotFound)
	}
	if f.statuses == nil {
		f.statuses = map[string]model.VerifyStatus{}
	}
	f.statuses[leadID] = status
	return nil
}

func TestVerify_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		result     string
		gibberish  bool
		disposable bool
		want       model.VerifyStatus
	}{
		{name: "valid", result: "valid", want: model.VerifyValid},
		{name: "invalid", result: "invalid", want: model.VerifyInvalid},
		{name: "accept_all", result: "accept_all", want: model.VerifyAcceptAll},
		{name: "unknown", result: "unknown", want: model.VerifyUnknown},
		{name: "gibberish_overrides_valid", result: "valid", gibberish: true, want: model.VerifyInvalid},
		{name: "disposable_overrides_accept_all", result: "accept_all", disposable: true, want: model.VerifyInvalid},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeHunter{result: verification(t, tc.result, tc.gibberish, tc.disposable)}
			v := New(client, kvcache.NewMemoryStore(), nil)

			got := v.Verify(context.Background(), "lead@example.com")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVerify_NoClientIsNoOp(t *testing.T) {
	v := New(nil, kvcache.NewMemoryStore(), nil)

	assert.False(t, v.Enabled())
	assert.Equal(t, model.VerifyPending, v.Verify(context.Background(), "lead@example.com"))
}

func TestVerify_EmptyEmail(t *testing.T) {
	client := &fakeHunter{result: verification(t, "valid", false, false)}
	v := New(client, kvcache.NewMemoryStore(), nil)

	assert.Equal(t, model.VerifyPending, v.Verify(context.Background(), ""))
	assert.Zero(t, client.calls)
}

func TestVerify_ClientFailureIsUnknown(t *testing.T) {
	client := &fakeHunter{err: fmt.Errorf("connection refused")}
	v := New(client, kvcache.NewMemoryStore(), nil)

	assert.Equal(t, model.VerifyUnknown, v.Verify(context.Background(), "lead@example.com"))
}

func TestVerify_PollExhaustionIsUnknown(t *testing.T) {
	client := &fakeHunter{err: hunter.ErrStillProcessing}
	v := New(client, kvcache.NewMemoryStore(), nil)

	assert.Equal(t, model.VerifyUnknown, v.Verify(context.Background(), "lead@example.com"))
}

func TestVerify_CacheHitSkipsUpstream(t *testing.T) {
	client := &fakeHunter{result: verification(t, "valid", false, false)}
	cache := kvcache.NewMemoryStore()
	v := New(client, cache, nil)

	first := v.Verify(context.Background(), "lead@example.com")
	second := v.Verify(context.Background(), "lead@example.com")

	assert.Equal(t, model.VerifyValid, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls, "second lookup should be served from cache")

	_, ok := cache.Get(kvcache.EmailKey("lead@example.com"))
	assert.True(t, ok)
}

func TestVerify_CorruptCacheEntryRefetches(t *testing.T) {
	client := &fakeHunter{result: verification(t, "valid", false, false)}
	cache := kvcache.NewMemoryStore()
	require.NoError(t, cache.Put(kvcache.EmailKey("lead@example.com"), json.RawMessage("{not json")))
	v := New(client, cache, nil)

	got := v.Verify(context.Background(), "lead@example.com")
	assert.Equal(t, model.VerifyValid, got)
	assert.Equal(t, 1, client.calls)
}

func TestVerifyLead_PersistsStatus(t *testing.T) {
	client := &fakeHunter{result: verification(t, "valid", false, false)}
	st := &fakeStatusStore{}
	v := New(client, kvcache.NewMemoryStore(), st)

	got := v.VerifyLead(context.Background(), "lead-1", "lead@example.com")
	assert.Equal(t, model.VerifyValid, got)
	assert.Equal(t, model.VerifyValid, st.statuses["lead-1"])
}

func TestVerifyLead_MissingLeadIsSilent(t *testing.T) {
	client := &fakeHunter{result: verification(t, "valid", false, false)}
	st := &fakeStatusStore{missing: true}
	v := New(client, kvcache.NewMemoryStore(), st)

	// Must not panic or error; the lead was deleted mid-flight.
	got := v.VerifyLead(context.Background(), "lead-gone", "lead@example.com")
	assert.Equal(t, model.VerifyValid, got)
	assert.Empty(t, st.statuses)
}

func TestVerifyLead_NoClientDoesNotTouchStore(t *testing.T) {
	st := &fakeStatusStore{}
	v := New(nil, kvcache.NewMemoryStore(), st)

	got := v.VerifyLead(context.Background(), "lead-1", "lead@example.com")
	assert.Equal(t, model.VerifyPending, got)
	assert.Empty(t, st.statuses)
}
