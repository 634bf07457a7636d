package inotify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inotify",
		Subsystem: "decoder",
		Name:      "polls_total",
		Help:      "Total number of poll calls",
	})
	metricBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inotify",
		Subsystem: "decoder",
		Name:      "read_bytes_total",
		Help:      "Total number of bytes read from inotify queues",
	})
	metricEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inotify",
		Subsystem: "decoder",
		Name:      "events_total",
		Help:      "Total number of decoded events",
	})
	metricMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inotify",
		Subsystem: "decoder",
		Name:      "malformed_streams_total",
		Help:      "Total number of polls aborted on undecodable data",
	})
)
