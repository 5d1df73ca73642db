// Package observability tracks planning statistics: how tables were pruned and
// which columns keep being left to the scan as residual predicates.
package observability

import (
	"sort"
	"sync"
	"time"
)

// PlanStats aggregates planning outcomes. Frequently residual columns are
// candidates for a secondary index or a different partition key.
type PlanStats struct {
	mu           sync.RWMutex
	residualFreq map[string]*ColumnStats // keyed by column name
	kinds        map[string]int64
	plans        int64
	splits       int64
	window       time.Duration
}

// ColumnStats holds residual statistics for one column name across tables.
// Tables breaks the frequency down per schema.table.
type ColumnStats struct {
	Column    string         `json:"column"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Tables    map[string]int `json:"tables"`
}

// Snapshot is a point-in-time copy of PlanStats.
type Snapshot struct {
	Plans           int64            `json:"plans"`
	Splits          int64            `json:"splits"`
	Kinds           map[string]int64 `json:"kinds"`
	ResidualColumns []ColumnStats    `json:"residual_columns"`
}

// NewPlanStats creates a tracker whose residual entries expire after window.
func NewPlanStats(window time.Duration) *PlanStats {
	return &PlanStats{
		residualFreq: make(map[string]*ColumnStats),
		kinds:        make(map[string]int64),
		window:       window,
	}
}

// RecordPlan records one pruning outcome for table (schema.table).
// This method is thread-safe.
func (p *PlanStats) RecordPlan(table, kind string, residualColumns []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.plans++
	p.kinds[kind]++

	now := time.Now()
	for _, col := range residualColumns {
		stats, exists := p.residualFreq[col]
		if !exists {
			stats = &ColumnStats{Column: col, Tables: make(map[string]int)}
			p.residualFreq[col] = stats
		}
		stats.Frequency++
		stats.LastSeen = now
		stats.Tables[table]++
	}
}

// RecordSplits adds n produced splits.
func (p *PlanStats) RecordSplits(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.splits += int64(n)
}

// TopResidualColumns returns the n most frequently residual columns,
// sorted by frequency (descending).
func (p *PlanStats) TopResidualColumns(n int) []ColumnStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.topLocked(n)
}

func (p *PlanStats) topLocked(n int) []ColumnStats {
	if n <= 0 || len(p.residualFreq) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(p.residualFreq))
	for _, s := range p.residualFreq {
		cp := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Tables:    make(map[string]int, len(s.Tables)),
		}
		for t, c := range s.Tables {
			cp.Tables[t] = c
		}
		stats = append(stats, cp)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Snapshot copies the current counters and the top 10 residual columns.
func (p *PlanStats) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	kinds := make(map[string]int64, len(p.kinds))
	for k, v := range p.kinds {
		kinds[k] = v
	}
	return Snapshot{
		Plans:           p.plans,
		Splits:          p.splits,
		Kinds:           kinds,
		ResidualColumns: p.topLocked(10),
	}
}

// Prune removes residual entries not seen within the window.
// This should be called periodically (e.g., every 5 minutes).
func (p *PlanStats) Prune() {
	p.mu.Lock()
	defer p.mu.Unlock()

	threshold := time.Now().Add(-p.window)
	for col, stats := range p.residualFreq {
		if stats.LastSeen.Before(threshold) {
			delete(p.residualFreq, col)
		}
	}
}
