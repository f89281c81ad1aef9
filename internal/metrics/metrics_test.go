package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベルに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// 同じレジストリへの二重登録はパニックする
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordTokenVerification_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenVerification("verified")
	c.RecordTokenVerification("verified")
	c.RecordTokenVerification("rejected")

	if v := findMetric(t, reg, "rfsbase_token_verifications_total", map[string]string{"result": "verified"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("verified = %v, want 2", v)
	}
	if v := findMetric(t, reg, "rfsbase_token_verifications_total", map[string]string{"result": "rejected"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("rejected = %v, want 1", v)
	}
}

func TestRecordMagicLinkIssued_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMagicLinkIssued()

	if v := findMetric(t, reg, "rfsbase_magic_links_issued_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("issued = %v, want 1", v)
	}
}

func TestRecordMagicLinkRedemption_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMagicLinkRedemption("success")
	c.RecordMagicLinkRedemption("invalid")
	c.RecordMagicLinkRedemption("invalid")

	if v := findMetric(t, reg, "rfsbase_magic_link_redemptions_total", map[string]string{"result": "invalid"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("invalid = %v, want 2", v)
	}
}

func TestRecordMagicLinksDeleted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMagicLinksDeleted(3)
	c.RecordMagicLinksDeleted(4)

	if v := findMetric(t, reg, "rfsbase_magic_links_deleted_total", nil).GetCounter().GetValue(); v != 7 {
		t.Errorf("deleted = %v, want 7", v)
	}
}

func TestRecordHTTPRequest_RecordsStatusAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 50*time.Millisecond)
	c.RecordHTTPRequest(401, 10*time.Millisecond)

	if v := findMetric(t, reg, "rfsbase_http_status_total", map[string]string{"status_code": "401"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("401 count = %v, want 1", v)
	}
	h := findMetric(t, reg, "rfsbase_http_request_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
}
