// Package guardrag provides an embedded Go client for the guardrag
// role-gated retrieval engine.
//
// Every ingested document is split into chunks, each chunk is labeled by a
// layered security pipeline (deterministic hard filters, an advisory
// semantic sentinel, a keyword heuristic fallback), and the label is
// persisted next to the vector. At query time candidates are ranked by
// similarity and filtered against the persisted labels before any text
// reaches the generator; guests never see admin-labeled content.
//
//	client, _ := guardrag.New(
//	    guardrag.WithDataDir("data"),
//	    guardrag.WithEmbedderFunc(embed),
//	    guardrag.WithGeneratorFunc(generate),
//	)
//	client.Ingest(ctx, "handbook", "handbook.txt", text)
//	res, _ := client.Query(ctx, "What is the vacation policy?", "guest")
package guardrag
