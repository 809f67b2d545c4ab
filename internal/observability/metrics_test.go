package observability

import (
	"testing"
	"time"

	"github.com/danmuck/boatlink/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("boatlink", "GET", "/health", 200, 12*time.Millisecond)
	RecordHandshake("/dev/ttyUSB0", "connected")
	RecordFrame("/dev/ttyUSB0", "boat_data")
	RecordTransfer("/dev/ttyUSB0", "acknowledged", 3)

	testlog.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestProtocolErrorCounter(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(protocolErrors.WithLabelValues("COM7"))
	RecordProtocolError("COM7")
	RecordProtocolError("COM7")
	if got := testutil.ToFloat64(protocolErrors.WithLabelValues("COM7")); got != before+2 {
		t.Fatalf("expected %v, got %v", before+2, got)
	}
}

func TestSetActiveLinks(t *testing.T) {
	testlog.Start(t)
	SetActiveLinks(3)
	if got := testutil.ToFloat64(linksActive); got != 3 {
		t.Fatalf("expected 3 active links, got %v", got)
	}
	SetActiveLinks(0)
}
