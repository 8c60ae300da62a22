package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mailrelay/internal/domain"
)

type fakeCredential struct {
	calls   atomic.Int32
	token   string
	expires time.Time
	err     error
	release chan struct{}
	scopes  []string
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	n := f.calls.Add(1)
	f.scopes = opts.Scopes
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return azcore.AccessToken{}, ctx.Err()
		}
	}
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	tok := f.token
	if tok == "" {
		tok = "token-" + string(rune('0'+n))
	}
	return azcore.AccessToken{Token: tok, ExpiresOn: f.expires}, nil
}

func TestNewClientSecretCredential_MissingValues(t *testing.T) {
	tests := []struct {
		name string
		cs   ClientSecret
	}{
		{"missing tenant", ClientSecret{ClientID: "c", ClientSecret: "s"}},
		{"missing client", ClientSecret{TenantID: "t", ClientSecret: "s"}},
		{"missing secret", ClientSecret{TenantID: "t", ClientID: "c"}},
		{"missing all", ClientSecret{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := NewClientSecretCredential(tt.cs)
			assert.Nil(t, cred)
			assert.True(t, domain.IsCode(err, domain.ECONFIG))
		})
	}
}

func TestNewClientSecretCredential_Valid(t *testing.T) {
	cred, err := NewClientSecretCredential(ClientSecret{
		TenantID:     "00000000-0000-0000-0000-000000000001",
		ClientID:     "00000000-0000-0000-0000-000000000002",
		ClientSecret: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, cred)
}

func TestCredentialSource_Token(t *testing.T) {
	cred := &fakeCredential{token: "abc", expires: time.Now().Add(time.Hour)}
	src := NewCredentialSource(cred, "")

	for i := 0; i < 2; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", tok)
	}

	assert.Equal(t, int32(2), cred.calls.Load(), "uncached source acquires on every call")
	assert.Equal(t, []string{DefaultScope}, cred.scopes)
}

func TestCredentialSource_ProviderError(t *testing.T) {
	cred := &fakeCredential{err: errors.New("AADSTS7000215: Invalid client secret provided")}
	src := NewCredentialSource(cred, DefaultScope)

	_, err := src.Token(context.Background())
	assert.True(t, domain.IsCode(err, domain.EAUTH))
}

func TestCredentialSource_EmptyToken(t *testing.T) {
	src := NewCredentialSource(credFunc(func() (azcore.AccessToken, error) {
		return azcore.AccessToken{}, nil
	}), DefaultScope)

	_, err := src.Token(context.Background())
	assert.True(t, domain.IsCode(err, domain.EAUTH))
}

func TestCredentialSource_Timeout(t *testing.T) {
	cred := &fakeCredential{release: make(chan struct{})}
	src := NewCredentialSource(cred, DefaultScope)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := src.Token(ctx)
	assert.True(t, domain.IsCode(err, domain.EAUTH))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedSource_ReusesToken(t *testing.T) {
	cred := &fakeCredential{token: "abc", expires: time.Now().Add(time.Hour)}
	src := NewCachedSource(cred, "", 0)

	for i := 0; i < 5; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "abc", tok)
	}

	assert.Equal(t, int32(1), cred.calls.Load())
}

func TestCachedSource_RefreshesBeforeExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := &fakeCredential{expires: now.Add(10 * time.Minute)}
	src := NewCachedSource(cred, DefaultScope, 0)
	src.now = func() time.Time { return now }

	first, err := src.Token(context.Background())
	require.NoError(t, err)

	// still outside the refresh margin
	now = now.Add(7 * time.Minute)
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, tok)
	assert.Equal(t, int32(1), cred.calls.Load())

	// inside the refresh margin
	now = now.Add(2 * time.Minute)
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, tok)
	assert.Equal(t, int32(2), cred.calls.Load())
}

func TestCachedSource_ErrorIsNotCached(t *testing.T) {
	cred := &fakeCredential{err: errors.New("network unreachable")}
	src := NewCachedSource(cred, DefaultScope, 0)

	_, err := src.Token(context.Background())
	assert.True(t, domain.IsCode(err, domain.EAUTH))

	cred.err = nil
	cred.token = "recovered"
	cred.expires = time.Now().Add(time.Hour)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", tok)
	assert.Equal(t, int32(2), cred.calls.Load())
}

func TestCachedSource_ConcurrentCallersShareOneAcquisition(t *testing.T) {
	cred := &fakeCredential{
		token:   "shared",
		expires: time.Now().Add(time.Hour),
		release: make(chan struct{}),
	}
	src := NewCachedSource(cred, DefaultScope, 0)

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := src.Token(context.Background())
			if err == nil {
				results[i] = tok
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(cred.release)
	wg.Wait()

	assert.Equal(t, int32(1), cred.calls.Load())
	for _, tok := range results {
		assert.Equal(t, "shared", tok)
	}
}

func TestCachedSource_CancelledCallerDoesNotFailOthers(t *testing.T) {
	cred := &fakeCredential{
		token:   "shared",
		expires: time.Now().Add(time.Hour),
		release: make(chan struct{}),
	}
	src := NewCachedSource(cred, DefaultScope, time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Token(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return cred.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		tok string
		err error
	}
	second := make(chan result, 1)
	go func() {
		tok, err := src.Token(context.Background())
		second <- result{tok, err}
	}()

	cancelFirst()
	err := <-firstErr
	assert.True(t, domain.IsCode(err, domain.EAUTH))
	assert.ErrorIs(t, err, context.Canceled)

	close(cred.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "shared", res.tok)
	assert.Equal(t, int32(1), cred.calls.Load())

	// the detached acquisition still filled the cache
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shared", tok)
	assert.Equal(t, int32(1), cred.calls.Load())
}

func TestCachedSource_AcquisitionTimeout(t *testing.T) {
	cred := &fakeCredential{release: make(chan struct{})}
	src := NewCachedSource(cred, DefaultScope, 10*time.Millisecond)

	_, err := src.Token(context.Background())
	assert.True(t, domain.IsCode(err, domain.EAUTH))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnavailableAndNone(t *testing.T) {
	cfgErr := domain.Config("auth.credential", "missing TENANT_ID")

	_, err := Unavailable{Err: cfgErr}.Token(context.Background())
	assert.Equal(t, cfgErr, err)

	tok, err := None{}.Token(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, tok)
}

type credFunc func() (azcore.AccessToken, error)

func (f credFunc) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return f()
}
