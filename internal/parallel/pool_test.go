package parallel

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_DefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -3} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	pool.ExecuteAll(nil)
	pool.ExecuteAll([]func(){})
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// Worker 0 gets the slow items; the others should drain them.
	var counter atomic.Int64
	work := make([]func(), 16)
	for i := range work {
		slow := i%4 == 0
		work[i] = func() {
			if slow {
				time.Sleep(5 * time.Millisecond)
			}
			counter.Add(1)
		}
	}
	pool.ExecuteAll(work)

	if counter.Load() != 16 {
		t.Errorf("counter = %d, want 16", counter.Load())
	}
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}

	ran := false
	pool.ExecuteAll([]func(){func() { ran = true }})
	if ran {
		t.Error("ExecuteAll on a closed pool must not run work")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		n, parts int
		want     []Span
	}{
		{0, 4, nil},
		{-1, 4, nil},
		{3, 0, []Span{{0, 3}}},
		{3, 8, []Span{{0, 1}, {1, 2}, {2, 3}}},
		{10, 3, []Span{{0, 4}, {4, 7}, {7, 10}}},
		{8, 4, []Span{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
	}
	for _, tt := range tests {
		got := Split(tt.n, tt.parts)
		if len(got) != len(tt.want) {
			t.Fatalf("Split(%d, %d) = %v, want %v", tt.n, tt.parts, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Split(%d, %d)[%d] = %v, want %v", tt.n, tt.parts, i, got[i], tt.want[i])
			}
		}
	}
}

func TestGather(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	type acc struct{ sum, count int }
	total := 0
	items := 0
	Gather(pool, 1000, 7,
		func() *acc { return &acc{} },
		func(s Span, a *acc) {
			for i := s.Lo; i < s.Hi; i++ {
				a.sum += i
				a.count++
			}
		},
		func(a *acc) {
			total += a.sum
			items += a.count
		},
	)

	if items != 1000 {
		t.Errorf("items = %d, want 1000", items)
	}
	if want := 999 * 1000 / 2; total != want {
		t.Errorf("total = %d, want %d", total, want)
	}
}

func TestGather_NilPool(t *testing.T) {
	var merged []Span
	Gather[*[]int](nil, 5, 2,
		func() *[]int { return new([]int) },
		func(s Span, a *[]int) { *a = append(*a, s.Lo, s.Hi) },
		func(a *[]int) { merged = append(merged, Span{(*a)[0], (*a)[1]}) },
	)
	want := []Span{{0, 3}, {3, 5}}
	if len(merged) != len(want) || merged[0] != want[0] || merged[1] != want[1] {
		t.Errorf("merged = %v, want %v", merged, want)
	}
}

func BenchmarkWorkerPool_ExecuteAll(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	work := make([]func(), 256)
	for i := range work {
		work[i] = func() {}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.ExecuteAll(work)
	}
}
