// Package cms is the boundary with the headless content store. The store
// owns schema and rendering; this side consumes it through a small client
// interface (query, create, patch, delete, asset upload) plus a thin post
// service for the author workflow.
//
// Two client implementations exist: an HTTP client for a Sanity-style
// content API and an in-memory client for tests and local development.
package cms
