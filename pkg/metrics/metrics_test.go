// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	// Test disabling
	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	// Test enabling
	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordCeremony(t *testing.T) {
	Enable()

	// Reset counters before test
	CeremoniesTotal.Reset()
	CeremonyDuration.Reset()

	// Record a successful ceremony
	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.5)

	// Verify counter incremented
	count := testutil.CollectAndCount(CeremoniesTotal)
	if count != 1 {
		t.Errorf("Expected 1 ceremony recorded, got %d", count)
	}

	// Verify histogram updated
	histCount := testutil.CollectAndCount(CeremonyDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", histCount)
	}

	// Record a failed ceremony
	RecordCeremony(CeremonyLogin, StatusError, 0.1)

	// Verify counter incremented again
	count = testutil.CollectAndCount(CeremoniesTotal)
	if count != 2 {
		t.Errorf("Expected 2 ceremonies recorded, got %d", count)
	}
}

func TestRecordCeremonyWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	CeremoniesTotal.Reset()

	// Record ceremony while disabled
	RecordCeremony(CeremonyRegistration, StatusSuccess, 0.5)

	// Verify nothing was recorded
	count := testutil.CollectAndCount(CeremoniesTotal)
	if count != 0 {
		t.Errorf("Expected 0 ceremonies when disabled, got %d", count)
	}
}

func TestRecordCeremonyError(t *testing.T) {
	Enable()

	// Reset counters
	ErrorsTotal.Reset()

	// Record an error
	RecordCeremonyError(CeremonyLogin, "declined")

	// Verify counter incremented
	count := testutil.CollectAndCount(ErrorsTotal)
	if count != 1 {
		t.Errorf("Expected 1 error recorded, got %d", count)
	}

	// Record another error
	RecordCeremonyError(CeremonyConditional, "no_selection")

	// Verify counter incremented again
	count = testutil.CollectAndCount(ErrorsTotal)
	if count != 2 {
		t.Errorf("Expected 2 errors recorded, got %d", count)
	}
}

func TestRecordCeremonyErrorWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset counters
	ErrorsTotal.Reset()

	// Record error while disabled
	RecordCeremonyError(CeremonyLogin, "declined")

	// Verify nothing was recorded
	count := testutil.CollectAndCount(ErrorsTotal)
	if count != 0 {
		t.Errorf("Expected 0 errors when disabled, got %d", count)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()

	// Reset metrics
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	// Record HTTP request
	RecordHTTPRequest("GET", "200", 0.05)

	// Verify metrics recorded
	count := testutil.CollectAndCount(HTTPRequestsTotal)
	if count != 1 {
		t.Errorf("Expected 1 HTTP request recorded, got %d", count)
	}

	histCount := testutil.CollectAndCount(HTTPRequestDuration)
	if histCount != 1 {
		t.Errorf("Expected 1 HTTP histogram sample, got %d", histCount)
	}
}

func TestActiveCeremonies(t *testing.T) {
	Enable()

	// Reset gauge
	ActiveCeremonies.Set(0)

	// Open two ceremonies
	IncrementActiveCeremonies()
	IncrementActiveCeremonies()

	if got := testutil.ToFloat64(ActiveCeremonies); got != 2 {
		t.Errorf("Expected 2 active ceremonies, got %v", got)
	}

	// Close one
	DecrementActiveCeremonies()

	if got := testutil.ToFloat64(ActiveCeremonies); got != 1 {
		t.Errorf("Expected 1 active ceremony, got %v", got)
	}
}

func TestActiveCeremoniesWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	// Reset gauge
	ActiveCeremonies.Set(0)

	// Increment while disabled
	IncrementActiveCeremonies()

	if got := testutil.ToFloat64(ActiveCeremonies); got != 0 {
		t.Errorf("Expected 0 active ceremonies when disabled, got %v", got)
	}
}

func TestCeremonyConstants(t *testing.T) {
	// Verify ceremony constants are defined
	ceremonies := []string{
		CeremonyRegistration, CeremonyLogin,
		CeremonyConditional, CeremonyVerification,
	}

	for _, ceremony := range ceremonies {
		if ceremony == "" {
			t.Error("Ceremony constant is empty")
		}
	}
}

func TestStatusConstants(t *testing.T) {
	// Verify status constants are defined
	if StatusSuccess == "" {
		t.Error("StatusSuccess constant is empty")
	}
	if StatusError == "" {
		t.Error("StatusError constant is empty")
	}
}

func TestLabelConstants(t *testing.T) {
	// Verify label constants are defined
	labels := []string{
		LabelCeremony, LabelStatus, LabelReason,
		LabelMethod, LabelStatusCode,
	}

	for _, label := range labels {
		if label == "" {
			t.Error("Label constant is empty")
		}
	}
}

func TestMetricsNamespace(t *testing.T) {
	if Namespace == "" {
		t.Error("Namespace constant is empty")
	}
	if Namespace != "passkey" {
		t.Errorf("Expected namespace 'passkey', got '%s'", Namespace)
	}
}

func TestResourceGauges(t *testing.T) {
	Enable()

	// Verify all resource gauges can be set without panicking
	Goroutines.Set(100)
	MemoryAllocBytes.Set(1024 * 1024)
	MemorySysBytes.Set(10 * 1024 * 1024)
	GCPauseTotalSeconds.Set(0.5)
	ServerUptime.Set(3600)

	// Verify gauges are collecting
	collectors := []prometheus.Collector{
		Goroutines, MemoryAllocBytes, MemorySysBytes,
		GCPauseTotalSeconds, ServerUptime,
	}

	for _, collector := range collectors {
		count := testutil.CollectAndCount(collector)
		if count == 0 {
			t.Errorf("Expected gauge %v to be collecting", collector)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	Enable()

	// Reset metrics
	CeremoniesTotal.Reset()

	// Concurrently record ceremonies
	done := make(chan bool)
	ceremonies := 100

	for i := 0; i < ceremonies; i++ {
		go func() {
			RecordCeremony(CeremonyRegistration, StatusSuccess, 0.1)
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < ceremonies; i++ {
		<-done
	}

	// Verify ceremonies were recorded without panicking
	count := testutil.CollectAndCount(CeremoniesTotal)
	if count == 0 {
		t.Error("Expected ceremonies to be recorded concurrently")
	}
}

func BenchmarkRecordCeremony(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordCeremony(CeremonyRegistration, StatusSuccess, 0.001)
	}
}

func BenchmarkRecordCeremonyError(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordCeremonyError(CeremonyLogin, "declined")
	}
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		RecordHTTPRequest("GET", "200", 0.001)
	}
}

func BenchmarkIncrementActiveCeremonies(b *testing.B) {
	Enable()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		IncrementActiveCeremonies()
	}
}
