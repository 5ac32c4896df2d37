package validator

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nmos-controlflow/ncp/pkg/ncp/metrics"
)

const testIssuer = "https://auth.example.com"

type staticKeyFetcher struct {
	jwksJSON []byte
	err      error
}

func (f staticKeyFetcher) FetchIssuerKeys(ctx context.Context, issuerURI string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.jwksJSON, nil
}

func newSignedToken(t *testing.T, priv *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	key, err := jwk.FromRaw(priv)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))

	headers := jws.NewHeaders()
	require.NoError(t, headers.Set("typ", "JWT"))

	signed, err := jws.Sign(payload, jws.WithKey(jwa.RS512, key, jws.WithProtectedHeaders(headers)))
	require.NoError(t, err)
	return string(signed)
}

func newKeyFetcher(t *testing.T, priv *rsa.PrivateKey, kid string) staticKeyFetcher {
	t.Helper()
	pub, err := jwk.FromRaw(&priv.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, kid))
	require.NoError(t, pub.Set(jwk.AlgorithmKey, jwa.RS512))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	data, err := json.Marshal(set)
	require.NoError(t, err)
	return staticKeyFetcher{jwksJSON: data}
}

func baseClaims(now time.Time) map[string]any {
	return map[string]any{
		"iss":       testIssuer,
		"sub":       "user-1",
		"aud":       "api.example.com",
		"exp":       now.Add(time.Hour).Unix(),
		"iat":       now.Unix(),
		"client_id": "nodeA",
		"scope":     "registration",
		"x-nmos-registration": map[string]any{
			"read": []string{"*"},
		},
	}
}

func TestValidateAcceptsWellFormedToken(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetcher := newKeyFetcher(t, priv, "key-1")

	v := New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
	defer v.Close()

	token := newSignedToken(t, priv, "key-1", baseClaims(time.Now()))
	claims, err := v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.NoError(t, err)
	require.Equal(t, "nodeA", claims.ClientID)
}

// Validate records one outcome per call when a Metrics sink is attached.
func TestValidateRecordsOutcomeMetrics(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetcher := newKeyFetcher(t, priv, "key-1")

	v := New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
	defer v.Close()
	m := metrics.New()
	v.SetMetrics(m)

	token := newSignedToken(t, priv, "key-1", baseClaims(time.Now()))
	_, err = v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(metrics.OutcomeOK)))

	_, err = v.Validate(context.Background(), token, http.MethodPost, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.Error(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(metrics.OutcomeInsufficientScope)))
}

// Read-only permission: write is refused, matching read succeeds.
func TestValidateReadOnlyPermissionRejectsWriteButAcceptsRead(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetcher := newKeyFetcher(t, priv, "key-1")

	v := New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
	defer v.Close()

	token := newSignedToken(t, priv, "key-1", baseClaims(time.Now()))

	_, err = v.Validate(context.Background(), token, http.MethodPost, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.ErrorContains(t, err, "insufficient scope")

	_, err = v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.NoError(t, err)
}

// Missing client_id and azp fails validation.
func TestValidateMissingClientIDAndAzpFails(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetcher := newKeyFetcher(t, priv, "key-1")

	v := New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
	defer v.Close()

	claims := baseClaims(time.Now())
	delete(claims, "client_id")
	token := newSignedToken(t, priv, "key-1", claims)

	_, err = v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.ErrorContains(t, err, "missing client_id or azp")
}

func TestValidateExpiredTokenFails(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fetcher := newKeyFetcher(t, priv, "key-1")

	v := New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
	defer v.Close()

	claims := baseClaims(time.Now().Add(-2 * time.Hour))
	token := newSignedToken(t, priv, "key-1", claims)

	_, err = v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.ErrorContains(t, err, "expired")
}

func TestValidateUnknownIssuerYieldsNoMatchingKeys(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := New(Config{
		Audience: "api.example.com",
		Scope:    "registration",
		Keys:     staticKeyFetcher{err: errors.New("jwks endpoint unreachable")},
	})
	defer v.Close()

	token := newSignedToken(t, priv, "key-1", baseClaims(time.Now()))
	_, err = v.Validate(context.Background(), token, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
	require.ErrorContains(t, err, "no key set known")
}

func TestMatchAudienceWildcard(t *testing.T) {
	require.True(t, matchAudience("api.example.com", "api.example.com"))
	require.True(t, matchAudience("api.example.com", "*.example.com"))
	require.True(t, matchAudience("api.example.com", "*.com"))
	require.False(t, matchAudience("api.example.com", "other.example.com"))
	require.False(t, matchAudience("api.example.com", "example.com"))
}
