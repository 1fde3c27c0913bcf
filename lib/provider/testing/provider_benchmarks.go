package testing

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/dCol/lib/record"
)

// RunProviderBenchmarks runs all benchmarks for a provider implementation
func RunProviderBenchmarks(b *testing.B, name string, factory ProviderFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("InsertOne", func(b *testing.B) {
			benchmarkInsertOne(b, factory)
		})

		b.Run("FindByID", func(b *testing.B) {
			benchmarkFindByID(b, factory)
		})

		b.Run("FindOne", func(b *testing.B) {
			benchmarkFindOne(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func seed(b *testing.B, factory ProviderFactory, n int) ([]string, func(string) record.Record) {
	p := started(b, factory)
	col := mustCollection(b, p, "bench")
	items := make([]record.Record, n)
	for i := range items {
		items[i] = record.Record{"key": fmt.Sprintf("key-%d", i), "n": i}
	}
	recs, err := col.InsertByBatches(context.Background(), items, 500)
	if err != nil {
		b.Fatalf("seeding failed: %v", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = mustID(b, r)
	}
	return ids, func(id string) record.Record {
		rec, err := col.FindByID(context.Background(), id, nil)
		if err != nil {
			b.Fatalf("FindByID failed: %v", err)
		}
		return rec
	}
}

// Benchmark for InsertOne operation
func benchmarkInsertOne(b *testing.B, factory ProviderFactory) {
	p := started(b, factory)
	col := mustCollection(b, p, "bench")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := col.InsertOne(ctx, record.Record{"n": i}); err != nil {
			b.Fatalf("InsertOne failed: %v", err)
		}
	}
}

// Benchmark for FindByID operation on existing records
func benchmarkFindByID(b *testing.B, factory ProviderFactory) {
	ids, find := seed(b, factory, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if find(ids[i%len(ids)]) == nil {
			b.Fatalf("record not found")
		}
	}
}

// Benchmark for FindOne by a non identity field
func benchmarkFindOne(b *testing.B, factory ProviderFactory) {
	p := started(b, factory)
	col := mustCollection(b, p, "bench")
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		mustInsert(b, col, record.Record{"key": fmt.Sprintf("key-%d", i)})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := col.FindOne(ctx, record.Condition{"key": fmt.Sprintf("key-%d", i%1000)}, nil); err != nil {
			b.Fatalf("FindOne failed: %v", err)
		}
	}
}

// Benchmark for a realistic mix of 80% reads, 15% updates and 5% inserts
func benchmarkMixedUsage(b *testing.B, factory ProviderFactory) {
	p := started(b, factory)
	col := mustCollection(b, p, "bench")
	ctx := context.Background()
	recs := mustInsert(b, col, record.Record{"n": 0})
	ids := []string{mustID(b, recs[0])}
	rng := rand.New(rand.NewSource(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := ids[rng.Intn(len(ids))]
		switch r := rng.Intn(100); {
		case r < 80:
			if _, err := col.FindByID(ctx, id, nil); err != nil {
				b.Fatalf("FindByID failed: %v", err)
			}
		case r < 95:
			if _, err := col.Update(ctx, record.Record{"id": id, "n": i}); err != nil {
				b.Fatalf("Update failed: %v", err)
			}
		default:
			rec, err := col.InsertOne(ctx, record.Record{"n": i})
			if err != nil {
				b.Fatalf("InsertOne failed: %v", err)
			}
			ids = append(ids, mustID(b, rec))
		}
	}
}
