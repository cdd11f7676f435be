package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/warpdrive/fstrace/pkg/iotrace"
)

// opStats aggregates the traced records of one operation.
type opStats struct {
	Operation string
	Count     int
	Errors    int
	Bytes     int64
	latencies []int64 // microseconds, sorted by summarize
}

func (s *opStats) avg() float64 {
	if len(s.latencies) == 0 {
		return 0
	}
	var total int64
	for _, l := range s.latencies {
		total += l
	}
	return float64(total) / float64(len(s.latencies))
}

// summarize groups records by operation, ordered by operation name.
func summarize(records []iotrace.Record) []*opStats {
	byOp := make(map[string]*opStats)
	for _, rec := range records {
		s, ok := byOp[rec.Operation]
		if !ok {
			s = &opStats{Operation: rec.Operation}
			byOp[rec.Operation] = s
		}
		s.Count++
		if !rec.OK() {
			s.Errors++
		}
		if rec.Type == iotrace.TypeLen || rec.Type == iotrace.TypeLenAndOffset {
			s.Bytes += int64(rec.Len)
		}
		s.latencies = append(s.latencies, int64(rec.Latency))
	}

	out := make([]*opStats, 0, len(byOp))
	for _, s := range byOp {
		sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

func printPhases(w io.Writer, phases []phaseResult) {
	fmt.Fprintf(w, "Phases\n")
	fmt.Fprintf(w, "-----------------------------------\n")
	for _, p := range phases {
		secs := p.Elapsed.Seconds()
		var throughput, iops float64
		if secs > 0 {
			throughput = float64(p.Bytes) / secs
			iops = float64(p.Ops) / secs
		}
		fmt.Fprintf(w, "%-16s %10s  %12s/s  %8.0f IOPS  %d errors\n",
			p.Name, p.Elapsed.Truncate(time.Millisecond), humanBytes(int64(throughput)), iops, p.Errors)
	}
	fmt.Fprintf(w, "-----------------------------------\n\n")
}

func printOps(w io.Writer, stats []*opStats) {
	fmt.Fprintf(w, "Traced Operations (latency in us)\n")
	fmt.Fprintf(w, "-----------------------------------\n")
	fmt.Fprintf(w, "%-20s %8s %6s %12s %10s %8s %8s %8s\n",
		"OPERATION", "COUNT", "ERRS", "BYTES", "AVG", "P50", "P95", "P99")
	for _, s := range stats {
		fmt.Fprintf(w, "%-20s %8d %6d %12s %10.1f %8d %8d %8d\n",
			s.Operation, s.Count, s.Errors, humanBytes(s.Bytes), s.avg(),
			percentile(s.latencies, 50), percentile(s.latencies, 95), percentile(s.latencies, 99))
	}
	fmt.Fprintf(w, "-----------------------------------\n")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(pct)/100.0*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	suffix := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.2f %s", float64(b)/float64(div), suffix[exp])
}
