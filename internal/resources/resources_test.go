package resources

import "testing"

func TestLogicalCoresAtLeastOne(t *testing.T) {
	o := Oracle{}
	if o.LogicalCores() < 1 {
		t.Fatalf("LogicalCores() = %d, want >= 1", o.LogicalCores())
	}
}

func TestAvailableMemoryBytesNonZero(t *testing.T) {
	o := Oracle{}
	if o.AvailableMemoryBytes() == 0 {
		t.Fatalf("AvailableMemoryBytes() = 0, want a positive fallback or real reading")
	}
}

// fakeOracle lets the sizing-formula tests pin cores/memory without
// depending on the host the tests run on. Its recommend method repeats the
// formula of Oracle.RecommendWorkers, so the TestRecommendWorkers* tests
// below check that copy; they do not call Oracle.RecommendWorkers itself.
type fakeOracle struct {
	cores     int
	available uint64
}

func (f fakeOracle) recommend(userRequest int) (int, error) {
	def := maxInt(1, f.cores/2)
	cap_ := maxInt(1, f.cores*3/4)
	memCapRaw := int(f.available / PerWorkerMemory)
	if memCapRaw < 1 {
		return 0, ErrInsufficientResources
	}
	want := def
	if userRequest > 0 {
		want = userRequest
	}
	result := minInt(want, cap_, memCapRaw)
	if result < 1 {
		return 0, ErrInsufficientResources
	}
	return result, nil
}

func TestRecommendWorkersFormula(t *testing.T) {
	f := fakeOracle{cores: 8, available: 32 * 1024 * 1024 * 1024} // 32 GiB, 8 cores
	got, err := f.recommend(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// default = max(1, 8/2) = 4; cap = max(1, 8*3/4) = 6; memCap = 32/4 = 8
	if got != 4 {
		t.Fatalf("recommend(0) = %d, want 4", got)
	}
}

func TestRecommendWorkersUserRequestCapped(t *testing.T) {
	f := fakeOracle{cores: 8, available: 32 * 1024 * 1024 * 1024}
	got, err := f.recommend(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// user_request capped by cores*3/4 = 6
	if got != 6 {
		t.Fatalf("recommend(100) = %d, want 6 (capped)", got)
	}
}

func TestRecommendWorkersInsufficientMemory(t *testing.T) {
	f := fakeOracle{cores: 8, available: 3 * 1024 * 1024 * 1024} // 3 GiB < 4 GiB per worker
	_, err := f.recommend(0)
	if err != ErrInsufficientResources {
		t.Fatalf("err = %v, want ErrInsufficientResources", err)
	}
}
