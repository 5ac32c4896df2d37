package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersEveryCollector(t *testing.T) {
	m := New()

	m.SessionsOpened.Inc()
	m.SessionsActive.Inc()
	m.CommandsProcessed.WithLabelValues("3.1").Inc()
	m.NotificationsSent.Inc()
	m.NotificationsDropped.Inc()
	m.RecordValidatorOutcome(OutcomeOK)
	m.RecordValidatorOutcome(OutcomeInsufficientScope)

	require.Equal(t, float64(1), testutil.ToFloat64(m.SessionsOpened))
	require.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CommandsProcessed.WithLabelValues("3.1")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsSent))
	require.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsDropped))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(OutcomeOK)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(OutcomeInsufficientScope)))

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRecordValidatorOutcomeIsCumulative(t *testing.T) {
	m := New()

	m.RecordValidatorOutcome(OutcomeNotReady)
	m.RecordValidatorOutcome(OutcomeNotReady)
	m.RecordValidatorOutcome(OutcomeNoMatchingKeys)

	require.Equal(t, float64(2), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(OutcomeNotReady)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ValidatorOutcomes.WithLabelValues(OutcomeNoMatchingKeys)))
}
