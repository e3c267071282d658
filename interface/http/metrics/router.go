package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/salushome/controller/interface/http/auth"
	"github.com/salushome/controller/state"
)

func ConstructRouter(mapper state.GatewayMapper, organiser *state.DeviceOrganiser, ap auth.AuthenticationProvider) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(mapper, organiser))

	return ap.AuthenticationMiddleware(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
