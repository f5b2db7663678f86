package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"Areopagus/internal/domain/models"
)

func TestRecorderCounters(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordDecision("BTC/USDT", models.OutcomeBuy, models.VotingWeighted)
	r.RecordDecision("BTC/USDT", models.OutcomeBuy, models.VotingWeighted)
	r.RecordRejection("BTC/USDT", "aristotle")
	r.RecordIntent("BTC/USDT", models.OutcomeBuy)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("BTC/USDT", "buy", "weighted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("BTC/USDT", "aristotle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.intents.WithLabelValues("BTC/USDT", "buy")))
}

func TestRecorderGauges(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordRegime("ETH/USDT", models.RegimeWar, 0.02)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.regime.WithLabelValues("ETH/USDT")))
	assert.Equal(t, 0.02, testutil.ToFloat64(r.volatility.WithLabelValues("ETH/USDT")))

	r.RecordRegime("ETH/USDT", models.RegimePeace, 0.001)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.regime.WithLabelValues("ETH/USDT")))

	r.RecordKillSwitch(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.killSwitch))

	r.RecordAgentWeight("TrendAgent", 0.79)
	assert.Equal(t, 0.79, testutil.ToFloat64(r.agentWeight.WithLabelValues("TrendAgent")))
}

func TestRecordersDoNotCollideAcrossRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
