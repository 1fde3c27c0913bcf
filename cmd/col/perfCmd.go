package col

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dCol/cmd/util"
	"github.com/ValentinKolb/dCol/lib/record"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for a configured collection",
		Long:    "Runs insert, find-by-id, find-one, update and remove benchmarks against a collection of the selected database. The collection is dropped afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfCollection = "__perf"
	perfNumThreads = 10
	perfRecords    = 100
	perfSkip       = make([]string, 0)
)

// perfTests are the benchmarks in execution order
var perfTests = []string{"insert", "find-by-id", "find-one", "update", "remove"}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,update)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "records"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different records the read and update tests use"))
	key = "collection"
	perfTestCmd.Flags().String(key, "__perf", util.WrapString("Collection used for the benchmark, it is dropped afterwards"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfRecords = max(viper.GetInt("records"), 1)
	perfCollection = viper.GetString("collection")
	perfSkip = splitList(viper.GetString("skip"))
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	d := db()

	fmt.Println("Performance testing tool for dcol collections")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Database: %s\n", d.Name())
	fmt.Printf("Collection: %s\n", perfCollection)
	if conf := util.GetClientConfig(); conf != nil {
		fmt.Println(conf.String())
	}
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// start from an empty collection and leave none behind
	if _, err := d.Drop(ctx, perfCollection); err != nil {
		return err
	}
	defer func() {
		if _, err := d.Drop(ctx, perfCollection); err != nil {
			log.Printf("error dropping %s: %v\n", perfCollection, err)
		}
	}()

	// seed the records the read and update tests work on
	ids, err := seedRecords(ctx)
	if err != nil {
		return err
	}

	fmt.Println("starting tests...")
	results := make(map[string]testing.BenchmarkResult)

	benchmarks := map[string]func(i int) error{
		"insert": func(i int) error {
			_, err := d.InsertOne(ctx, perfCollection, record.Record{"name": fmt.Sprintf("insert-%d", i), "kind": "insert"})
			return err
		},
		"find-by-id": func(i int) error {
			_, err := d.FindByID(ctx, perfCollection, ids[i%len(ids)], nil)
			return err
		},
		"find-one": func(i int) error {
			_, err := d.FindOne(ctx, perfCollection, record.Condition{"name": seedName(i % len(ids))}, nil)
			return err
		},
		"update": func(i int) error {
			_, err := d.Update(ctx, perfCollection, record.Record{record.IDField: ids[i%len(ids)], "counter": i})
			return err
		},
		"remove": func(i int) error {
			_, err := d.Remove(ctx, perfCollection, record.Condition{"kind": "insert"}, true)
			return err
		},
	}

	for _, test := range perfTests {
		result := benchmark(test, benchmarks[test])
		results[test] = result
		printResult(test, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func seedName(i int) string {
	return fmt.Sprintf("seed-%d", i)
}

func seedRecords(ctx context.Context) ([]string, error) {
	items := make([]record.Record, perfRecords)
	for i := range items {
		items[i] = record.Record{"name": seedName(i), "kind": "seed"}
	}
	inserted, err := db().InsertByBatches(ctx, perfCollection, items, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(inserted))
	for _, rec := range inserted {
		if id, ok := rec.ID(); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no records seeded")
	}
	return ids, nil
}

// benchmark runs op in parallel, errors are logged and do not stop the test
func benchmark(test string, op func(i int) error) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}
		var counter atomic.Int64
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := op(int(counter.Add(1))); err != nil {
					log.Printf("(%s) - error: %v\n", test, err)
				}
			}
		})
	})
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Database", "Collection", "SharedEndpoints", "Serializer",
		"Threads", "Records",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	endpoints := ""
	if conf := util.GetClientConfig(); conf != nil {
		endpoints = strings.Join(conf.Endpoints, ";")
	}

	for _, test := range perfTests {
		result := results[test]
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			viper.GetString("database"),
			perfCollection,
			endpoints,
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfRecords),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}
	return nil
}
