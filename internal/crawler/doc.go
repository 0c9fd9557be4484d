// Package crawler defines the data model shared by the harvest pipeline:
// frontier nodes, crawl scope, extracted user records, engagement records,
// the collaborator interfaces that the pipeline drives, and the error
// taxonomy used to isolate per-node and per-record failures.
package crawler
