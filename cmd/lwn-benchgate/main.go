// Command lwn-benchgate compares two `go test -bench` outputs and exits
// non-zero when a tracked engine benchmark regresses past the threshold.
//
//	go test -run '^$' -bench 'Login|Plan|Metrics' -count 6 . > new.txt
//	lwn-benchgate -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// defaultTracked lists the benchmarks on the login hot path and the units
// gated for each.
var defaultTracked = map[string][]string{
	"BenchmarkLogin":                         {"ns/op", "allocs/op"},
	"BenchmarkPlan":                          {"ns/op", "allocs/op"},
	"BenchmarkMetricsIncParallel":            {"ns/op"},
	"BenchmarkMetricsObserveLatencyParallel": {"ns/op"},
}

// samples maps benchmark name to unit to the values seen across -count runs.
type samples map[string]map[string][]float64

type row struct {
	Benchmark string
	Unit      string
	Baseline  float64
	Candidate float64
	Delta     float64
}

type report struct {
	Rows     []row
	Failures []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lwn-benchgate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baselinePath := fs.String("baseline", "", "path to baseline benchmark output")
	candidatePath := fs.String("candidate", "", "path to candidate benchmark output")
	threshold := fs.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	track := fs.String("track", "", "comma-separated Benchmark[:unit] overrides, e.g. BenchmarkLogin:ns/op")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *baselinePath == "" || *candidatePath == "" {
		fmt.Fprintln(stderr, "-baseline and -candidate are required")
		return 2
	}
	if *threshold < 0 {
		fmt.Fprintln(stderr, "-threshold must be >= 0")
		return 2
	}

	tracked := defaultTracked
	if *track != "" {
		tracked = parseTrack(*track)
	}

	baseline, err := parseFile(*baselinePath, tracked)
	if err != nil {
		fmt.Fprintf(stderr, "parse baseline: %v\n", err)
		return 1
	}
	candidate, err := parseFile(*candidatePath, tracked)
	if err != nil {
		fmt.Fprintf(stderr, "parse candidate: %v\n", err)
		return 1
	}

	rep := compare(baseline, candidate, tracked, *threshold)

	fmt.Fprintln(stdout, "benchmark unit baseline candidate delta")
	for _, r := range rep.Rows {
		fmt.Fprintf(stdout, "%s %s %.3f %.3f %+0.2f%%\n", r.Benchmark, r.Unit, r.Baseline, r.Candidate, r.Delta*100)
	}
	if len(rep.Failures) > 0 {
		fmt.Fprintln(stderr, "performance regression threshold exceeded:")
		for _, f := range rep.Failures {
			fmt.Fprintf(stderr, "  - %s\n", f)
		}
		return 1
	}
	return 0
}

// parseTrack reads "BenchmarkA:ns/op,BenchmarkB". A bare name gates ns/op.
func parseTrack(spec string) map[string][]string {
	out := map[string][]string{}
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, unit, ok := strings.Cut(item, ":")
		if !ok {
			unit = "ns/op"
		}
		out[name] = append(out[name], unit)
	}
	return out
}

func compare(baseline, candidate samples, tracked map[string][]string, threshold float64) report {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var rep report
	for _, name := range names {
		for _, unit := range tracked[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				rep.Failures = append(rep.Failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian, candMedian := median(base), median(cand)
			if baseMedian <= 0 {
				rep.Failures = append(rep.Failures, fmt.Sprintf("invalid baseline median for %s %s", name, unit))
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			rep.Rows = append(rep.Rows, row{Benchmark: name, Unit: unit, Baseline: baseMedian, Candidate: candMedian, Delta: delta})
			if delta > threshold {
				rep.Failures = append(rep.Failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return rep
}

func parseFile(path string, tracked map[string][]string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f, tracked)
}

func parse(r io.Reader, tracked map[string][]string) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := stripProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// stripProcs drops the -GOMAXPROCS suffix go test appends.
func stripProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
