package search

import "testing"

func TestFuseOverlapBoost(t *testing.T) {
	cfg := DefaultFusionConfig()
	vector := []SourceHit{{ID: 1, Rank: 1}, {ID: 2, Rank: 2}}
	fts := []SourceHit{{ID: 1, Rank: 1}, {ID: 3, Rank: 2}}

	out := Fuse(vector, fts, cfg)
	if len(out) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(out))
	}
	if out[0].ID != 1 {
		t.Fatalf("expected id 1 (present in both sources) to rank first, got %d", out[0].ID)
	}
	if out[0].VectorRank != 1 || out[0].FTSRank != 1 {
		t.Fatalf("expected id 1 to carry both ranks, got vector=%d fts=%d", out[0].VectorRank, out[0].FTSRank)
	}

	unboosted := cfg.VectorWeight*rrfTerm(cfg.K, 1) + cfg.FTSWeight*rrfTerm(cfg.K, 1)
	want := unboosted * cfg.OverlapBoost
	if out[0].CombinedScore != want {
		t.Fatalf("expected overlap-boosted score %v, got %v", want, out[0].CombinedScore)
	}
}

func TestFuseSourceOnlyContributesWhenPresent(t *testing.T) {
	cfg := DefaultFusionConfig()
	vector := []SourceHit{{ID: 1, Rank: 1}}
	out := Fuse(vector, nil, cfg)
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if out[0].FTSScore != 0 || out[0].FTSRank != 0 {
		t.Fatalf("expected no fts contribution, got rank=%d score=%v", out[0].FTSRank, out[0].FTSScore)
	}
}

func TestRRFTermZeroRank(t *testing.T) {
	if rrfTerm(60, 0) != 0 {
		t.Fatalf("expected zero contribution for absent rank")
	}
}
