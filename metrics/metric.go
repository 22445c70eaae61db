// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package metrics holds the Prometheus collectors the tablet node
// exposes for its consensus metadata store and rowset directory.
// GRPCMetrics is gone with the RPC layer this module doesn't own; what
// remains is registered the same way the teacher registers its own
// collectors, against a package-level Registry rather than the global
// default one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tabletnode"

var (
	Registry = prometheus.NewRegistry()

	flushDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cmeta",
		Name:      "flush_duration_seconds",
		Help:      "Time spent writing a consensus metadata container file to disk.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tablet_id"})

	flushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cmeta",
		Name:      "flush_total",
		Help:      "Number of consensus metadata flushes performed.",
	}, []string{"tablet_id"})

	onDiskSizeBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cmeta",
		Name:      "on_disk_size_bytes",
		Help:      "Size in bytes of the last-flushed consensus metadata container file.",
	}, []string{"tablet_id"})

	rowsetCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rsd",
		Name:      "rowset_count",
		Help:      "Number of rowsets currently cataloged in a tablet's RowSetTree.",
	}, []string{"tablet_id"})

	swapDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "rsd",
		Name:      "swap_duration_seconds",
		Help:      "Time the rowset directory spent inside an atomic compaction swap.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tablet_id"})
)

func init() {
	Registry.MustRegister(
		flushDurationSeconds,
		flushTotal,
		onDiskSizeBytes,
		rowsetCount,
		swapDurationSeconds,
	)
}

// ObserveFlush records how long a consensus metadata flush took.
func ObserveFlush(tabletID string, d time.Duration) {
	flushDurationSeconds.WithLabelValues(tabletID).Observe(d.Seconds())
}

// IncFlushCount increments the flush counter for tabletID.
func IncFlushCount(tabletID string) {
	flushTotal.WithLabelValues(tabletID).Inc()
}

// SetOnDiskSize records the size of the last-flushed container file.
func SetOnDiskSize(tabletID string, size uint64) {
	onDiskSizeBytes.WithLabelValues(tabletID).Set(float64(size))
}

// SetRowSetCount records the number of rowsets currently cataloged
// for a tablet's directory.
func SetRowSetCount(tabletID string, n int) {
	rowsetCount.WithLabelValues(tabletID).Set(float64(n))
}

// ObserveSwap records how long an atomic rowset swap held the
// directory's single mutation path.
func ObserveSwap(tabletID string, d time.Duration) {
	swapDurationSeconds.WithLabelValues(tabletID).Observe(d.Seconds())
}
