// Package semdex embeds the semantic retrieval engine in-process: the same
// index, document store, and orchestration the HTTP server runs, wired
// behind a single Client for library consumers.
//
//	client, _ := semdex.New(semdex.WithDataDir("data"))
//	defer client.Close()
//
//	_, _ = client.Add(ctx, papers)
//	results, _ := client.Search(ctx, semdex.Query{Text: "attention mechanism", TopK: 5})
//	answer, _ := client.Answer(ctx, "What is an attention mechanism?")
//
// The default embedder is the deterministic feature-hashing encoder, which
// runs fully offline; production deployments swap in OpenAI or Ollama via
// options. Answers are extractive — sentences selected from retrieved
// documents, never generated.
package semdex
