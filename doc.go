// Package gesel is a client-resident query engine for gene set enrichment.
//
// Given a list of genes, it finds the reference gene sets that overlap the
// list, ranks them by exact hypergeometric p-value, and supports free-text
// search over set metadata with ? and * wildcards. All computation happens
// in the client: the only server requirement is static hosting of the
// prebuilt database files, optionally with HTTP range support.
//
// # Quick start
//
// Bulk mode, downloading each species' database once:
//
//	client, _ := gesel.New(gesel.WithBaseURL("https://example.com/gesel-db"))
//	ids, _ := client.ResolveGenes(ctx, "9606", []string{"SNAP25", "NEUROD6"})
//	overlaps, _ := client.FindOverlaps(ctx, "9606", flatten(ids))
//
// Range mode, fetching only the byte ranges a query touches:
//
//	client, _ := gesel.New(
//	    gesel.WithBaseURL("https://example.com/gesel-db"),
//	    gesel.WithMode(gesel.ModeRange),
//	)
//
// Both modes cache every response for the client's lifetime, so repeated
// queries do not refetch. Results carry raw p-values; multiple-testing
// correction and sorting are left to the caller.
//
// Databases are produced by the dbbuild package and addressed per species
// under a common base URL. Alternative storage backends (local directories,
// S3-compatible buckets) plug in through datasource.Source.
package gesel
