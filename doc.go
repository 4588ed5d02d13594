// Package subsample partitions one large delimited data file into many
// overlapping-but-distinct row/column subsets ("training sets") plus
// disjoint "validation sets" for a later machine learning step.
//
// The tool is built around one scarce resource: simultaneously open file
// handles. Every set produced in a run holds its output stream open for
// the whole source pass, so a run writes at most as many sets as the
// open-file budget admits and the job continues across invocations with
// durable, write-once pool state keeping the draws consistent.
//
// # Workflow
//
// Profile the source once, then create sets in as many runs as needed:
//
//	subsample profile -i data.csv -o data.meta.json
//	subsample create -i data.csv --metadata data.meta.json \
//	    --training-row-count 500 --validation-row-count 100 \
//	    --column-count 20 --case-column 0 --outcome-column 1 \
//	    --set-count 32 --mode pool-split --training-fraction 0.8 \
//	    --out-dir sets/
//
// Each training or validation set is written as a data file (case
// column, outcome column, then the selected attribute columns in
// original order) with row-ordinal and column-ordinal sidecar files for
// the downstream learning step.
//
// # Validation modes
//
//   - single: one shared validation set, drawn once and persisted; every
//     training set avoids its rows.
//   - per-training: one validation set per training set, disjoint from
//     its partner and sharing its columns.
//   - pool-split: the row universe is split once into disjoint training
//     and validation pools, persisted, and all sets draw from their pool.
package subsample
