package keywords

// Comparison is the set overlap between job and résumé keywords.
type Comparison struct {
	Matched   Set     `json:"matched"`
	Missing   Set     `json:"missing"`
	Extra     Set     `json:"extra"`
	MatchRate float64 `json:"match_rate"`
}

// Compare flattens both sides and computes the overlap. MatchRate is a
// percentage of the job keywords and is 0 when the job side is empty.
func Compare(job, resume Keywords) Comparison {
	return CompareSets(job.Flatten(), resume.Flatten())
}

// CompareSets is Compare over already flattened sets. Matched and Missing
// keep the job order, Extra keeps the résumé order.
func CompareSets(job, resume Set) Comparison {
	c := Comparison{
		Matched: job.Intersect(resume),
		Missing: job.Minus(resume),
		Extra:   resume.Minus(job),
	}
	if job.Len() > 0 {
		c.MatchRate = 100 * float64(c.Matched.Len()) / float64(job.Len())
	}
	return c
}
