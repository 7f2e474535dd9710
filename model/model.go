// Package model defines the value types shared across the gesel API.
package model

// Gene is one entry of a species' gene table. The ID is the dense internal
// identifier, stable within a database release; Synonyms holds every
// external identifier (symbol, Ensembl, Entrez, ...) mapping to it.
type Gene struct {
	ID       uint32
	Synonyms []string
}

// Set describes one reference gene set. Membership is not materialized
// here; it is decoded on demand from the posting files.
type Set struct {
	ID          uint32
	Name        string
	Description string
	// Size is the number of member genes.
	Size int
	// Collection is the ID of the owning collection.
	Collection uint32
}

// Collection is a named group of related gene sets from one source. Sets
// are grouped contiguously by collection: the collection owns set IDs
// [Start, Start+Size).
type Collection struct {
	ID          uint32
	Title       string
	Description string
	Species     string
	Maintainer  string
	Source      string
	Start       uint32
	Size        int
}

// Overlap is one overlap-search candidate: a set sharing at least one gene
// with the query list.
type Overlap struct {
	// ID of the candidate set.
	ID uint32
	// Count is the number of distinct query genes inside the set.
	Count int
	// Size is the total number of genes in the set.
	Size int
	// PValue is the upper-tail hypergeometric probability of an overlap at
	// least this large. Raw, uncorrected for multiple testing.
	PValue float64
}
