package domain

// PerformanceMetrics is the cached per-staff resolution aggregate.
type PerformanceMetrics struct {
	TotalIssues  int `json:"totalIssues"`
	SolvedIssues int `json:"solvedIssues"`
	Percentage   int `json:"percentage"`
}

// Percentage returns round-half-up(100*solved/total), or 0 when total is 0.
func Percentage(solved, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*solved + total) / (2 * total)
}

// NewPerformanceMetrics builds a consistent aggregate from raw counts.
func NewPerformanceMetrics(total, solved int) PerformanceMetrics {
	if total < 0 {
		total = 0
	}
	if solved < 0 {
		solved = 0
	}
	if solved > total {
		solved = total
	}
	return PerformanceMetrics{
		TotalIssues:  total,
		SolvedIssues: solved,
		Percentage:   Percentage(solved, total),
	}
}

// Record returns the aggregate after one more resolved issue.
func (m PerformanceMetrics) Record(solved bool) PerformanceMetrics {
	inc := 0
	if solved {
		inc = 1
	}
	return NewPerformanceMetrics(m.TotalIssues+1, m.SolvedIssues+inc)
}
