// Package sdk provides a Go client for the semdex HTTP API.
//
// The client talks to a running semdex server over HTTP/JSON and covers
// the whole API surface: similarity search, extractive question answering,
// index statistics, reindexing, and health.
//
//	client := sdk.New("http://localhost:8000")
//	resp, err := client.Search(ctx, sdk.SearchRequest{
//	    Query: "attention mechanism transformer",
//	    TopK:  5,
//	})
//
// Answers produced by QA are extractive: sentences selected from the
// retrieved documents, never generated text.
package sdk
