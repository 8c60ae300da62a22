// Package auth acquires bearer tokens for the mail API using the OAuth2
// client-credential grant.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/mailrelay/internal/domain"
)

// DefaultScope is the application-permission scope of the Graph mail API.
const DefaultScope = "https://graph.microsoft.com/.default"

// refreshMargin is how long before expiry a cached token is replaced.
const refreshMargin = 2 * time.Minute

// DefaultAcquireTimeout bounds a shared token acquisition in CachedSource.
const DefaultAcquireTimeout = 10 * time.Second

// TokenSource returns a bearer token for the mail API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ClientSecret is the app registration used for the client-credential grant.
type ClientSecret struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// NewClientSecretCredential builds the identity-provider credential.
// Missing values are a configuration error and no credential is created.
func NewClientSecretCredential(cs ClientSecret) (azcore.TokenCredential, error) {
	const op = "auth.credential"

	var missing []string
	if cs.TenantID == "" {
		missing = append(missing, "TENANT_ID")
	}
	if cs.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if cs.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, domain.Config(op, "missing "+strings.Join(missing, ", "))
	}

	cred, err := azidentity.NewClientSecretCredential(cs.TenantID, cs.ClientID, cs.ClientSecret, nil)
	if err != nil {
		return nil, domain.Auth(err, op, "failed to create client secret credential")
	}
	return cred, nil
}

// CredentialSource requests a new token on every call.
type CredentialSource struct {
	cred  azcore.TokenCredential
	scope string
}

// NewCredentialSource wraps cred. An empty scope means DefaultScope.
func NewCredentialSource(cred azcore.TokenCredential, scope string) *CredentialSource {
	if scope == "" {
		scope = DefaultScope
	}
	return &CredentialSource{cred: cred, scope: scope}
}

// Token implements TokenSource.
func (s *CredentialSource) Token(ctx context.Context) (string, error) {
	tok, err := acquire(ctx, s.cred, s.scope)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// CachedSource reuses a token until shortly before it expires. Concurrent
// callers that find the cache stale share a single acquisition, which is
// detached from any one caller's cancellation and bounded by its own timeout.
// Each caller still stops waiting when its own context ends.
type CachedSource struct {
	cred    azcore.TokenCredential
	scope   string
	timeout time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	token azcore.AccessToken

	group singleflight.Group
}

// NewCachedSource wraps cred with an in-memory token cache. An empty scope
// means DefaultScope and a non-positive timeout means DefaultAcquireTimeout.
func NewCachedSource(cred azcore.TokenCredential, scope string, timeout time.Duration) *CachedSource {
	if scope == "" {
		scope = DefaultScope
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &CachedSource{cred: cred, scope: scope, timeout: timeout, now: time.Now}
}

// Token implements TokenSource.
func (s *CachedSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	ch := s.group.DoChan(s.scope, func() (any, error) {
		// another caller may have refreshed while we waited
		if tok, ok := s.cached(); ok {
			return tok, nil
		}

		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		tok, err := acquire(actx, s.cred, s.scope)
		if err != nil {
			return "", err
		}

		s.mu.Lock()
		s.token = tok
		s.mu.Unlock()
		return tok.Token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", tokenError(ctx.Err(), "auth.token")
	}
}

func (s *CachedSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token.Token == "" {
		return "", false
	}
	if !s.now().Before(s.token.ExpiresOn.Add(-refreshMargin)) {
		return "", false
	}
	return s.token.Token, true
}

func acquire(ctx context.Context, cred azcore.TokenCredential, scope string) (azcore.AccessToken, error) {
	const op = "auth.token"

	tok, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return azcore.AccessToken{}, tokenError(err, op)
	}
	if tok.Token == "" {
		return azcore.AccessToken{}, domain.Auth(nil, op, "identity provider returned an empty token")
	}
	return tok, nil
}

func tokenError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Auth(err, op, "token request timed out")
	}
	return domain.Auth(err, op, "token request failed")
}

// Unavailable is used when the credential could not be built. It always
// returns the construction error.
type Unavailable struct {
	Err error
}

// Token implements TokenSource.
func (u Unavailable) Token(context.Context) (string, error) {
	return "", u.Err
}

// None is the TokenSource for transports that do not authenticate.
type None struct{}

// Token implements TokenSource.
func (None) Token(context.Context) (string, error) {
	return "", nil
}
