package models

import (
	"time"

	"github.com/google/uuid"
)

// MetricName enumerates the business metrics computed from domain events.
type MetricName string

const (
	MetricTimeToGreet         MetricName = "time_to_greet"
	MetricRackTime            MetricName = "rack_time"
	MetricLobbyOccupancy      MetricName = "lobby_occupancy"
	MetricDriveThroughput     MetricName = "drive_throughput"
	MetricOilChangeCycleTime  MetricName = "oil_change_cycle_time"
	MetricAfterHoursCrossings MetricName = "after_hours_crossings"
)

// WindowSize labels the aggregation window a metric value belongs to.
type WindowSize string

const (
	WindowOneMinute      WindowSize = "1m"
	WindowFiveMinutes    WindowSize = "5m"
	WindowFifteenMinutes WindowSize = "15m"
	WindowOneHour        WindowSize = "1h"
	WindowOneDay         WindowSize = "1d"
)

// MetricValue is an immutable computed metric sample.
type MetricValue struct {
	MetricID    uuid.UUID         `json:"metric_id"`
	TenantID    uuid.UUID         `json:"tenant_id"`
	SiteID      uuid.UUID         `json:"site_id"`
	Name        MetricName        `json:"metric_name"`
	WindowStart time.Time         `json:"window_start"`
	WindowSize  WindowSize        `json:"window_size"`
	Value       float64           `json:"value"`
	Unit        string            `json:"unit"`
	Dimensions  map[string]string `json:"dimensions,omitempty"`

	// IsEstimated marks values computed without ground-truth confirmation,
	// e.g. rack time before the service-order system is integrated.
	IsEstimated bool      `json:"is_estimated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Aggregation summarises a set of metric values over a query window.
type Aggregation struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}
