package aggregate

import (
	"math"
	"testing"

	"github.com/pagelift/pagelift/internal/telemetry"
)

func pat(id, url string, engagement float64, frustration int) telemetry.PatternSession {
	return telemetry.PatternSession{
		SessionID:             id,
		PageURL:               url,
		EngagementScore:       engagement,
		FrustrationIndicators: frustration,
	}
}

func biz(id, url string, conversion, revenue float64, stage telemetry.FunnelStage) telemetry.BusinessSession {
	return telemetry.BusinessSession{
		SessionID:              id,
		PageURL:                url,
		ConversionProbability:  conversion,
		EstimatedRevenueImpact: revenue,
		FunnelStage:            stage,
	}
}

func TestByPage_PatternOnlyPage(t *testing.T) {
	pattern := []telemetry.PatternSession{
		pat("s1", "/landing", 80, 0),
		pat("s2", "/landing", 60, 2),
	}

	pages := ByPage(pattern, nil)
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	p := pages["/landing"]
	if p == nil {
		t.Fatal("missing /landing aggregate")
	}
	if p.AvgEngagement != 70.0 {
		t.Errorf("AvgEngagement = %v, want 70.0", p.AvgEngagement)
	}
	if p.AvgFrustration != 1.0 {
		t.Errorf("AvgFrustration = %v, want 1.0", p.AvgFrustration)
	}
	// No business sessions: business rollups are exactly zero, not absent.
	if p.AvgConversion != 0 {
		t.Errorf("AvgConversion = %v, want exactly 0", p.AvgConversion)
	}
	if p.TotalRevenueImpact != 0 {
		t.Errorf("TotalRevenueImpact = %v, want exactly 0", p.TotalRevenueImpact)
	}
	if p.DominantFunnelStage != telemetry.StageEntry {
		t.Errorf("DominantFunnelStage = %q, want entry default", p.DominantFunnelStage)
	}
	if p.SessionCount != 2 {
		t.Errorf("SessionCount = %d, want 2", p.SessionCount)
	}
}

func TestByPage_UnionsSessionIDsAcrossSources(t *testing.T) {
	pattern := []telemetry.PatternSession{
		pat("s1", "/checkout", 50, 1),
		pat("s2", "/checkout", 55, 0),
	}
	business := []telemetry.BusinessSession{
		biz("s2", "/checkout", 0.5, 100, telemetry.StageIntent), // shared with pattern
		biz("s3", "/checkout", 0.7, 250, telemetry.StageConversion),
	}

	p := ByPage(pattern, business)["/checkout"]
	if p.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3 (union of s1, s2, s3)", p.SessionCount)
	}
	want := []string{"s1", "s2", "s3"}
	if len(p.SessionIDs) != len(want) {
		t.Fatalf("SessionIDs = %v, want %v", p.SessionIDs, want)
	}
	for i, id := range want {
		if p.SessionIDs[i] != id {
			t.Errorf("SessionIDs[%d] = %q, want %q (sorted union)", i, p.SessionIDs[i], id)
		}
	}
}

func TestByPage_BusinessRollups(t *testing.T) {
	business := []telemetry.BusinessSession{
		biz("s1", "/pricing", 0.5, 300, telemetry.StageIntent),
		biz("s2", "/pricing", 0.7, 400, telemetry.StageIntent),
		biz("s3", "/pricing", 0.3, 100, telemetry.StageEntry),
	}

	p := ByPage(nil, business)["/pricing"]
	if !almostEqual(p.AvgConversion, 0.5) {
		t.Errorf("AvgConversion = %v, want 0.5", p.AvgConversion)
	}
	if p.TotalRevenueImpact != 800 {
		t.Errorf("TotalRevenueImpact = %v, want 800", p.TotalRevenueImpact)
	}
	if p.DominantFunnelStage != telemetry.StageIntent {
		t.Errorf("DominantFunnelStage = %q, want intent", p.DominantFunnelStage)
	}
	if p.FunnelStageDistribution[telemetry.StageIntent] != 2 {
		t.Errorf("intent count = %d, want 2", p.FunnelStageDistribution[telemetry.StageIntent])
	}
	if p.FunnelStageDistribution[telemetry.StageEntry] != 1 {
		t.Errorf("entry count = %d, want 1", p.FunnelStageDistribution[telemetry.StageEntry])
	}
}

func TestByPage_DominantStageTieBreaksToFirstSeen(t *testing.T) {
	// exit and intent both appear twice; exit appears first in input order.
	business := []telemetry.BusinessSession{
		biz("s1", "/p", 0.5, 0, telemetry.StageExit),
		biz("s2", "/p", 0.5, 0, telemetry.StageIntent),
		biz("s3", "/p", 0.5, 0, telemetry.StageExit),
		biz("s4", "/p", 0.5, 0, telemetry.StageIntent),
	}
	p := ByPage(nil, business)["/p"]
	if p.DominantFunnelStage != telemetry.StageExit {
		t.Errorf("DominantFunnelStage = %q, want exit (first seen on tie)", p.DominantFunnelStage)
	}
}

func TestByPage_SkipsRecordsMissingKeys(t *testing.T) {
	pattern := []telemetry.PatternSession{
		pat("", "/p", 90, 0),  // no session ID
		pat("s1", "", 90, 0),  // no page URL
		pat("s2", "/p", 40, 1),
	}
	pages := ByPage(pattern, nil)
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	p := pages["/p"]
	if p.SessionCount != 1 {
		t.Errorf("SessionCount = %d, want 1", p.SessionCount)
	}
	if len(p.PatternSessions) != 1 {
		t.Errorf("PatternSessions = %d, want 1", len(p.PatternSessions))
	}
}

func TestByPage_EmptyInputs(t *testing.T) {
	pages := ByPage(nil, nil)
	if len(pages) != 0 {
		t.Errorf("expected empty map, got %d pages", len(pages))
	}
}

func TestByPage_MaxFrustration(t *testing.T) {
	pattern := []telemetry.PatternSession{
		pat("s1", "/p", 50, 1),
		pat("s2", "/p", 50, 5),
		pat("s3", "/p", 50, 2),
	}
	p := ByPage(pattern, nil)["/p"]
	if p.MaxFrustration != 5 {
		t.Errorf("MaxFrustration = %d, want 5", p.MaxFrustration)
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
