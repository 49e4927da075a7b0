package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersByLabel(t *testing.T) {
	RequestsTotal.WithLabelValues("search", "ACK").Inc()
	RequestsTotal.WithLabelValues("search", "ACK").Inc()
	RequestsTotal.WithLabelValues("search", "NACK").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("search", "ACK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestsTotal.WithLabelValues("search", "NACK")))
}
