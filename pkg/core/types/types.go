// Package types holds the small value types shared by the distance, vector
// store, graph and oracle packages.
package types

// SearchResult is a single hit returned by a query, ordered by Distance
// ascending and then by ID ascending.
type SearchResult struct {
	ID       uint32  `json:"id"`
	Distance float64 `json:"distance"`
}

// Candidate is the internal HNSW work item: an internal ID and its distance
// to the current query.
type Candidate struct {
	Id       uint32
	Distance float64
}

// Closer reports whether a should be ranked before b. Equal distances are
// broken by ID so that identical inputs always produce identical orderings.
func Closer(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Id < b.Id
}

// IndexInfo describes an index for logs and the bench CLI.
type IndexInfo struct {
	Name           string `json:"name" yaml:"name"`
	Dimension      int    `json:"dimension" yaml:"dimension"`
	Metric         string `json:"metric" yaml:"metric"`
	Precision      string `json:"precision" yaml:"precision"`
	M              int    `json:"m" yaml:"m"`
	M0             int    `json:"m0" yaml:"m0"`
	EfConstruction int    `json:"ef_construction" yaml:"ef_construction"`
	VectorCount    int    `json:"vector_count" yaml:"vector_count"`
	TopLevel       int    `json:"top_level" yaml:"top_level"`
}
