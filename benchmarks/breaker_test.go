package benchmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/solace/pkg/solace/breaker"
)

// BenchmarkBreaker_ExecuteClosed measures the overhead of a successful call.
func BenchmarkBreaker_ExecuteClosed(b *testing.B) {
	br := breaker.New("bench", breaker.Config{})
	ctx := context.Background()
	fn := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = breaker.Execute(ctx, br, fn)
	}
}

// BenchmarkBreaker_RejectOpen measures rejection by an open breaker.
func BenchmarkBreaker_RejectOpen(b *testing.B) {
	br := breaker.New("bench", breaker.Config{RecoveryTimeout: time.Hour})
	br.Trip()
	ctx := context.Background()
	fn := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = breaker.Execute(ctx, br, fn)
	}
}

// BenchmarkBreaker_FailureCounting alternates failures and successes so the
// breaker never opens.
func BenchmarkBreaker_FailureCounting(b *testing.B) {
	br := breaker.New("bench", breaker.Config{FailureThreshold: 3})
	errBoom := errors.New("boom")
	ok := func() error { return nil }
	fail := func() error { return errBoom }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i%2 == 0 {
			_ = br.Call(fail)
		} else {
			_ = br.Call(ok)
		}
	}
}

// BenchmarkBreaker_Parallel measures contention on one shared breaker.
func BenchmarkBreaker_Parallel(b *testing.B) {
	br := breaker.New("bench", breaker.Config{})
	ctx := context.Background()
	fn := func(context.Context) (int, error) { return 1, nil }

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = breaker.Execute(ctx, br, fn)
		}
	})
}

// BenchmarkRegistry_Get measures lookup of an existing breaker.
func BenchmarkRegistry_Get(b *testing.B) {
	reg := breaker.NewRegistry(breaker.Config{})
	reg.Get(breaker.NameGeneration)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Get(breaker.NameGeneration)
	}
}
