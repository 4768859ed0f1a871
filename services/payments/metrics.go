package payments

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "consultcheckout"

type metrics struct {
	ordersCreated    *prometheus.CounterVec
	couponsValidated *prometheus.CounterVec
	verifications    *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_created_total",
			Help:      "Payment orders created, by gateway provider.",
		}, []string{"provider"}),
		couponsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "coupons_validated_total",
			Help:      "Coupon validations, by result.",
		}, []string{"result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verifications, by result.",
		}, []string{"result"}),
	}

	for _, collector := range []prometheus.Collector{m.ordersCreated, m.couponsValidated, m.verifications} {
		err := registerer.Register(collector)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
