// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package deadlinewheel

import "github.com/prometheus/client_golang/prometheus"

// Descriptors for the Collector exposed by Monitor.Collector().
var (
	tasksAddedDesc = prometheus.NewDesc(
		"deadlinewheel_tasks_added_total",
		"Total tasks successfully added.", nil, nil)
	tasksRemovedDesc = prometheus.NewDesc(
		"deadlinewheel_tasks_removed_total",
		"Total tasks cancelled via Remove.", nil, nil)
	tasksFiredDesc = prometheus.NewDesc(
		"deadlinewheel_tasks_fired_total",
		"Total tasks whose callback fired (including the fallback path).", nil, nil)
	tasksRejectedDesc = prometheus.NewDesc(
		"deadlinewheel_tasks_rejected_total",
		"Total Add() calls rejected.", nil, nil)
	tasksLiveDesc = prometheus.NewDesc(
		"deadlinewheel_tasks_live",
		"Current number of registered tasks (Count()).", nil, nil)
	queueDepthDesc = prometheus.NewDesc(
		"deadlinewheel_callback_queue_depth",
		"Current callback queue depth.", nil, nil)
)

// monitorCollector adapts a Monitor to prometheus.Collector.
type monitorCollector struct {
	m *Monitor
}

// Collector returns a prometheus.Collector exposing the monitor's
// operational counters and gauges, for registration into a process-wide
// prometheus.Registry.
func (m *Monitor) Collector() prometheus.Collector {
	return monitorCollector{m: m}
}

func (c monitorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- tasksAddedDesc
	ch <- tasksRemovedDesc
	ch <- tasksFiredDesc
	ch <- tasksRejectedDesc
	ch <- tasksLiveDesc
	ch <- queueDepthDesc
}

func (c monitorCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.m
	ch <- prometheus.MustNewConstMetric(
		tasksAddedDesc, prometheus.CounterValue, float64(m.metrics.added.Load()))
	ch <- prometheus.MustNewConstMetric(
		tasksRemovedDesc, prometheus.CounterValue, float64(m.metrics.removed.Load()))
	ch <- prometheus.MustNewConstMetric(
		tasksFiredDesc, prometheus.CounterValue, float64(m.metrics.fired.Load()))
	ch <- prometheus.MustNewConstMetric(
		tasksRejectedDesc, prometheus.CounterValue, float64(m.metrics.rejected.Load()))
	ch <- prometheus.MustNewConstMetric(
		tasksLiveDesc, prometheus.GaugeValue, float64(m.Count()))
	ch <- prometheus.MustNewConstMetric(
		queueDepthDesc, prometheus.GaugeValue, float64(m.queue.depth()))
}
