// Package crawler defines the core types, errors, and collaborator interfaces
// shared by the crawl engine: the budget, tasks, page results, the session
// summary, and the typed fetch failures.
package crawler
