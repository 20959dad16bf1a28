package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace         = "elevator"
	elevatorNameLabel = "elevator"
)

var (
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    namespace + "_request_duration_seconds",
			Help:    "Duration of elevator request processing",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{elevatorNameLabel},
	)

	ioState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: namespace + "_io_state",
			Help: "Current cabio state kind per elevator (0=idle,1=moving_up,2=moving_down,3=doors_open)",
		},
		[]string{elevatorNameLabel},
	)

	routeLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: namespace + "_route_length",
			Help: "Number of pending route keys per elevator",
		},
		[]string{elevatorNameLabel},
	)

	vetoedRides = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: namespace + "_vetoed_rides_total",
			Help: "Total rides refused by a strategy's veto hook",
		},
		[]string{elevatorNameLabel},
	)
)

func init() {
	prometheus.MustRegister(requestDuration, ioState, routeLength, vetoedRides)
}

func RequestDurationHistogram(elevatorName string, seconds float64) {
	requestDuration.With(prometheus.Labels{elevatorNameLabel: elevatorName}).Observe(seconds)
}

// SetIOState records the current cabio.Kind (as its integer value) for elevatorName.
func SetIOState(elevatorName string, kind int) {
	ioState.With(prometheus.Labels{elevatorNameLabel: elevatorName}).Set(float64(kind))
}

// SetRouteLength records the current pending route length for elevatorName.
func SetRouteLength(elevatorName string, length int) {
	routeLength.With(prometheus.Labels{elevatorNameLabel: elevatorName}).Set(float64(length))
}

// IncVetoedRides increments the vetoed-ride counter for elevatorName.
func IncVetoedRides(elevatorName string) {
	vetoedRides.With(prometheus.Labels{elevatorNameLabel: elevatorName}).Inc()
}
