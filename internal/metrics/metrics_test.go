package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func getCounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestRecordTokenExchange(t *testing.T) {
	ok := TokenExchangesTotal.WithLabelValues("refresh_token", "success")
	failed := TokenExchangesTotal.WithLabelValues("refresh_token", "failure")
	okBefore, failedBefore := getCounterValue(ok), getCounterValue(failed)

	RecordTokenExchange("refresh_token", nil)
	RecordTokenExchange("refresh_token", errors.New("boom"))

	require.Equal(t, okBefore+1, getCounterValue(ok))
	require.Equal(t, failedBefore+1, getCounterValue(failed))
}

func TestRecordUpstream(t *testing.T) {
	c := UpstreamRequestsTotal.WithLabelValues("partner_center", "4xx")
	before := getCounterValue(c)

	RecordUpstream("partner_center", 404)

	require.Equal(t, before+1, getCounterValue(c))
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", StatusClass(200))
	require.Equal(t, "5xx", StatusClass(504))
	require.Equal(t, "error", StatusClass(0))
}
