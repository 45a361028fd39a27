package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Initialize())
}

func TestCountersIncrement(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.NotificationDeliveries.WithLabelValues("direct"))
	m.NotificationDeliveries.WithLabelValues("direct").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.NotificationDeliveries.WithLabelValues("direct")))
}
