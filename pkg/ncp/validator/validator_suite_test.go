package validator

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nmos-controlflow/ncp/pkg/ncp/metrics"
)

var suiteT *testing.T

func TestValidatorSuite(t *testing.T) {
	suiteT = t
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validator Suite")
}

// The Access-Token Validator's admission pipeline behaves like a small
// state machine driven entirely by its inputs (no mutable session state of
// its own): a request is admitted, refused for insufficient scope, or
// refused because no matching keys were found for the token's issuer — and
// every one of those transitions is counted when a Metrics sink is
// attached.
var _ = Describe("Validator admission pipeline", func() {
	var (
		priv    *rsa.PrivateKey
		fetcher staticKeyFetcher
		v       *Validator
		m       *metrics.Metrics
	)

	BeforeEach(func() {
		var err error
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).NotTo(HaveOccurred())
		fetcher = newKeyFetcher(suiteT, priv, "key-1")

		v = New(Config{Audience: "api.example.com", Scope: "registration", Keys: fetcher})
		m = metrics.New()
		v.SetMetrics(m)
	})

	AfterEach(func() {
		v.Close()
	})

	token := func(mutate func(map[string]any)) string {
		claims := baseClaims(time.Now())
		if mutate != nil {
			mutate(claims)
		}
		return newSignedToken(suiteT, priv, "key-1", claims)
	}

	Context("given a well-formed, in-scope token", func() {
		It("admits the request and records an ok outcome", func() {
			_, err := v.Validate(context.Background(), token(nil), http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcomeCount(m, metrics.OutcomeOK)).To(Equal(float64(1)))
		})
	})

	Context("given a token whose scope lacks write permission", func() {
		It("refuses a write request and records an insufficient-scope outcome, then admits a read on the same token", func() {
			tok := token(nil)

			_, err := v.Validate(context.Background(), tok, http.MethodPost, "/x-nmos/registration/v1.3/health/nodes/abc")
			Expect(err).To(HaveOccurred())
			Expect(outcomeCount(m, metrics.OutcomeInsufficientScope)).To(Equal(float64(1)))

			_, err = v.Validate(context.Background(), tok, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("given an issuer whose keys cannot be fetched", func() {
		It("refuses the request and records a no-matching-keys outcome", func() {
			v2 := New(Config{
				Audience: "api.example.com",
				Scope:    "registration",
				Keys:     staticKeyFetcher{err: context.DeadlineExceeded},
			})
			defer v2.Close()
			v2.SetMetrics(m)

			_, err := v2.Validate(context.Background(), token(nil), http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
			Expect(err).To(HaveOccurred())
			Expect(outcomeCount(m, metrics.OutcomeNoMatchingKeys)).To(Equal(float64(1)))
		})
	})

	Context("given an expired token", func() {
		It("refuses the request", func() {
			expired := token(func(c map[string]any) {
				c["exp"] = time.Now().Add(-time.Hour).Unix()
				c["iat"] = time.Now().Add(-2 * time.Hour).Unix()
			})
			_, err := v.Validate(context.Background(), expired, http.MethodGet, "/x-nmos/registration/v1.3/health/nodes/abc")
			Expect(err).To(HaveOccurred())
		})
	})
})

func outcomeCount(m *metrics.Metrics, outcome string) float64 {
	return testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(outcome))
}
