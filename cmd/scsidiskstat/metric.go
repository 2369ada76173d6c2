// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

type metricCollector struct {
	m []prometheus.Metric
}

func (mc *metricCollector) Collect(c chan<- prometheus.Metric) {
	for _, m := range mc.m {
		c <- m
	}
}

func (mc *metricCollector) Describe(c chan<- *prometheus.Desc) {
}

var (
	mDiskInfo = prometheus.NewDesc(
		"scsi_disk_info",
		"Info metric regarding the detected disks",
		[]string{"device", "vendor", "product", "serial", "revision"}, nil,
	)
	mCapacity = prometheus.NewDesc(
		"scsi_disk_capacity_bytes",
		"Capacity of the disk as reported by READ CAPACITY",
		[]string{"device"}, nil,
	)
	mLogicalBlockSize = prometheus.NewDesc(
		"scsi_disk_logical_block_size_bytes",
		"Size of one logical block",
		[]string{"device"}, nil,
	)
	mTemperature = prometheus.NewDesc(
		"scsi_disk_temperature_celsius",
		"Current temperature from the temperature log page",
		[]string{"device"}, nil,
	)
	mSelfTestResult = prometheus.NewDesc(
		"scsi_disk_self_test_result",
		"Result code of the most recent self-test, 0 means it completed without error",
		[]string{"device"}, nil,
	)
	mSelfTestPowerOnHours = prometheus.NewDesc(
		"scsi_disk_self_test_power_on_hours",
		"Accumulated power on hours when the most recent self-test completed",
		[]string{"device"}, nil,
	)
)

func collect(state Devices) *metricCollector {
	mc := &metricCollector{}
	for _, s := range state {
		mc.m = append(mc.m,
			prometheus.MustNewConstMetric(mDiskInfo, prometheus.GaugeValue, 1,
				s.Device, s.Vendor, s.Product, s.Serial, s.Revision))
		if c := s.Capacity; c != nil {
			mc.m = append(mc.m,
				prometheus.MustNewConstMetric(mCapacity, prometheus.GaugeValue, float64(c.Bytes()), s.Device),
				prometheus.MustNewConstMetric(mLogicalBlockSize, prometheus.GaugeValue, float64(c.LogicalBlockLength), s.Device))
		}
		if s.Temperature != nil {
			mc.m = append(mc.m, prometheus.MustNewConstMetric(mTemperature, prometheus.GaugeValue, float64(*s.Temperature), s.Device))
		}
		// Only visible for disks that have run a self-test
		if t := s.SelfTest; t != nil {
			mc.m = append(mc.m,
				prometheus.MustNewConstMetric(mSelfTestResult, prometheus.GaugeValue, float64(t.Result), s.Device),
				prometheus.MustNewConstMetric(mSelfTestPowerOnHours, prometheus.GaugeValue, float64(t.PowerOnHours), s.Device))
		}
	}
	return mc
}

func outputMetrics(w io.Writer, state Devices) error {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(collect(state))

	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to serialize metrics: %v", err)
		}
	}
	return nil
}
