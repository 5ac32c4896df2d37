package validator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/nmos-controlflow/ncp/pkg/ncp/embedder"
	"github.com/nmos-controlflow/ncp/pkg/ncp/metrics"
	"github.com/nmos-controlflow/ncp/pkg/ncp/ncperrors"
)

const defaultKeyFetchTimeout = 5 * time.Second
const defaultKeySetTTL = 10 * time.Minute

// Config fixes the resource server identity an Access-Token Validator
// admits tokens against.
type Config struct {
	// Audience is this resource server's own audience value, matched
	// against the token's aud claim (see matchAudience).
	Audience string
	// Scope is the API-scope name this validator enforces, e.g.
	// "registration"; it names both the required scope token and the
	// x-nmos-<scope> private claim.
	Scope string
	// Keys resolves an issuer's current key set on a cache miss.
	Keys embedder.IssuerKeyFetcher
	// KeyFetchTimeout bounds a single key-set fetch; zero selects 5s.
	KeyFetchTimeout time.Duration
	// KeySetTTL bounds how long a fetched key set is trusted before the
	// next use re-fetches it; zero selects 10m.
	KeySetTTL time.Duration
}

// Validator runs the seven-step admission check over bearer tokens
// presented at session open (and at mid-session renewal).
type Validator struct {
	cfg     Config
	keys    *ttlcache.Cache[string, jwk.Set]
	metrics *metrics.Metrics
}

// SetMetrics attaches a counter sink; nil (the default) disables recording.
func (v *Validator) SetMetrics(m *metrics.Metrics) {
	v.metrics = m
}

func New(cfg Config) *Validator {
	if cfg.KeyFetchTimeout <= 0 {
		cfg.KeyFetchTimeout = defaultKeyFetchTimeout
	}
	if cfg.KeySetTTL <= 0 {
		cfg.KeySetTTL = defaultKeySetTTL
	}
	v := &Validator{
		cfg:  cfg,
		keys: ttlcache.New[string, jwk.Set](ttlcache.WithTTL[string, jwk.Set](cfg.KeySetTTL)),
	}
	go v.keys.Start()
	return v
}

// Close stops the key-set cache's background eviction loop.
func (v *Validator) Close() {
	v.keys.Stop()
}

type jwsHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Validate runs all seven steps against rawToken for a request with the
// given HTTP method and relative URI. A non-nil error is always one of
// ncperrors.ErrInsufficientScope, ncperrors.ErrNoMatchingKeys or
// ncperrors.ErrNotReady; the message carries the human-readable reason.
func (v *Validator) Validate(ctx context.Context, rawToken, method, requestPath string) (claims *Claims, err error) {
	if v.metrics != nil {
		defer func() {
			v.metrics.RecordValidatorOutcome(outcomeLabel(err))
		}()
	}

	segments := strings.Split(rawToken, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: token is not a three-segment JWS", ncperrors.ErrInsufficientScope)
	}

	headerJSON, err := decodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed header: %v", ncperrors.ErrInsufficientScope, err)
	}
	var header jwsHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: malformed header: %v", ncperrors.ErrInsufficientScope, err)
	}
	if header.Alg != jwa.RS512.String() {
		return nil, fmt.Errorf("%w: unsupported alg %q", ncperrors.ErrInsufficientScope, header.Alg)
	}
	if !strings.EqualFold(header.Typ, "JWT") {
		return nil, fmt.Errorf("%w: unsupported typ %q", ncperrors.ErrInsufficientScope, header.Typ)
	}

	payloadJSON, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ncperrors.ErrInsufficientScope, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(payloadJSON, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ncperrors.ErrInsufficientScope, err)
	}

	claims, err = parsePayloadSchema(raw, v.cfg.Scope)
	if err != nil {
		return nil, err
	}

	if err := v.verifySignature(ctx, rawToken, claims.Issuer); err != nil {
		return nil, err
	}

	if err := checkTemporal(claims); err != nil {
		return nil, err
	}

	if !audienceAdmits(v.cfg.Audience, claims.Audience) {
		return nil, fmt.Errorf("%w: audience %v does not admit %q", ncperrors.ErrInsufficientScope, claims.Audience, v.cfg.Audience)
	}

	if claims.HasScopeClaim && !claims.hasScope(v.cfg.Scope) {
		return nil, fmt.Errorf("%w: scope claim does not include %q", ncperrors.ErrInsufficientScope, v.cfg.Scope)
	}

	if err := v.checkPathPermission(claims, method, requestPath); err != nil {
		return nil, err
	}

	return claims, nil
}

// outcomeLabel classifies err into one of the Metrics outcome labels; a nil
// err is success and anything that isn't one of the three sentinels
// Validate documents falls back to the insufficient-scope bucket, since
// that's the catch-all category the seven-step pipeline itself uses.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ncperrors.ErrNotReady):
		return metrics.OutcomeNotReady
	case errors.Is(err, ncperrors.ErrNoMatchingKeys):
		return metrics.OutcomeNoMatchingKeys
	default:
		return metrics.OutcomeInsufficientScope
	}
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(seg)
}

func parsePayloadSchema(raw map[string]any, scope string) (*Claims, error) {
	iss, ok := raw["iss"].(string)
	if !ok || iss == "" {
		return nil, fmt.Errorf("%w: missing iss", ncperrors.ErrInsufficientScope)
	}
	sub, ok := raw["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ncperrors.ErrInsufficientScope)
	}

	aud, err := audienceList(raw["aud"])
	if err != nil {
		return nil, err
	}

	exp, ok := asNumber(raw["exp"])
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-integer exp", ncperrors.ErrInsufficientScope)
	}
	iat, ok := asNumber(raw["iat"])
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-integer iat", ncperrors.ErrInsufficientScope)
	}

	var nbf *int64
	if v, present := raw["nbf"]; present {
		n, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: non-integer nbf", ncperrors.ErrInsufficientScope)
		}
		nbf = &n
	}

	var scopes []string
	hasScopeClaim := false
	if v, present := raw["scope"]; present {
		hasScopeClaim = true
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: scope claim is not a string", ncperrors.ErrInsufficientScope)
		}
		if s != "" {
			scopes = strings.Fields(s)
		}
	}

	clientID, _ := raw["client_id"].(string)
	azp, _ := raw["azp"].(string)
	if clientID == "" && azp == "" {
		return nil, fmt.Errorf("%w: missing client_id or azp", ncperrors.ErrInsufficientScope)
	}
	if clientID != "" && azp != "" && clientID != azp {
		return nil, fmt.Errorf("%w: client_id and azp disagree", ncperrors.ErrInsufficientScope)
	}
	if clientID == "" {
		clientID = azp
	}

	claims := &Claims{
		Issuer:        iss,
		Subject:       sub,
		Audience:      aud,
		ExpiresAt:     exp,
		IssuedAt:      iat,
		NotBefore:     nbf,
		ClientID:      clientID,
		HasScopeClaim: hasScopeClaim,
		Scopes:        scopes,
	}

	if value, present := raw["x-nmos-"+scope]; present {
		if obj, ok := value.(map[string]any); ok {
			claims.PathClaim = &PathPermissions{
				Read:  stringSlice(obj["read"]),
				Write: stringSlice(obj["write"]),
			}
		}
	}

	return claims, nil
}

func audienceList(v any) ([]string, error) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil, fmt.Errorf("%w: empty aud", ncperrors.ErrInsufficientScope)
		}
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, entry := range val {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%w: aud array contains a non-string entry", ncperrors.ErrInsufficientScope)
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: empty aud array", ncperrors.ErrInsufficientScope)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: missing or malformed aud", ncperrors.ErrInsufficientScope)
	}
}

func asNumber(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func checkTemporal(c *Claims) error {
	now := time.Now().Unix()
	if c.NotBefore != nil && *c.NotBefore > now {
		return fmt.Errorf("%w: token not yet valid", ncperrors.ErrInsufficientScope)
	}
	if now >= c.ExpiresAt {
		return fmt.Errorf("%w: token expired", ncperrors.ErrInsufficientScope)
	}
	return nil
}

func audienceAdmits(configured string, aud []string) bool {
	for _, entry := range aud {
		if matchAudience(configured, entry) {
			return true
		}
	}
	return false
}

// verifySignature resolves iss's key set (fetching and caching it on a
// miss) and tries RS512 verification against every key in it.
func (v *Validator) verifySignature(ctx context.Context, rawToken, iss string) error {
	var set jwk.Set
	if item := v.keys.Get(iss); item != nil {
		set = item.Value()
	}
	if set == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, v.cfg.KeyFetchTimeout)
		defer cancel()

		data, err := v.cfg.Keys.FetchIssuerKeys(fetchCtx, iss)
		if err != nil {
			if fetchCtx.Err() != nil {
				return fmt.Errorf("%w: key-set fetch for issuer %q timed out", ncperrors.ErrNotReady, iss)
			}
			return fmt.Errorf("%w: no key set known for issuer %q: %v", ncperrors.ErrNoMatchingKeys, iss, err)
		}
		parsed, err := jwk.Parse(data)
		if err != nil {
			return fmt.Errorf("%w: issuer %q key set is malformed: %v", ncperrors.ErrNoMatchingKeys, iss, err)
		}
		v.keys.Set(iss, parsed, ttlcache.DefaultTTL)
		set = parsed
	}

	if _, err := jws.Verify([]byte(rawToken), jws.WithKeySet(set)); err != nil {
		return fmt.Errorf("%w: signature verification failed for issuer %q", ncperrors.ErrNoMatchingKeys, iss)
	}
	return nil
}

func (v *Validator) checkPathPermission(c *Claims, method, requestPath string) error {
	candidate := stripAPIPrefix(requestPath, v.cfg.Scope)
	isRead := readMethods[method]
	isWrite := writeMethods[method]

	if c.PathClaim != nil {
		switch {
		case isRead && globMatches(c.PathClaim.Read, candidate):
			return nil
		case isWrite && globMatches(c.PathClaim.Write, candidate):
			return nil
		default:
			return fmt.Errorf("%w: %s %q matches no x-nmos-%s permission", ncperrors.ErrInsufficientScope, method, candidate, v.cfg.Scope)
		}
	}

	if isWrite {
		return fmt.Errorf("%w: no x-nmos-%s write permissions for %q", ncperrors.ErrInsufficientScope, v.cfg.Scope, candidate)
	}
	if isRead && c.HasScopeClaim {
		return nil
	}
	return fmt.Errorf("%w: no x-nmos-%s claim and no scope claim", ncperrors.ErrInsufficientScope, v.cfg.Scope)
}
