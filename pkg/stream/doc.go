// Package stream implements the lazy pagination engine: a demand-driven
// sequence of resources spanning the pages of one next-link chain.
//
// A Sequence produces elements only when pulled. Pages are fetched one
// link at a time; while the current page drains, the next page is already
// being fetched, and no URL is ever fetched twice concurrently. An element
// cap bounds how many resources the sequence yields, independent of how
// many are buffered, and AddMore raises the cap without refetching.
//
// # Basic Usage
//
//	seq := stream.New(stream.Config{
//		Fetch:    fetcher.Fetch,
//		StartURL: "https://api.example.org/books",
//		Limit:    stream.Unlimited,
//	})
//
//	cont, err := seq.Consume(ctx, func(res *document.Resource, _ stream.Relationships) error {
//		fmt.Println(res.Type, res.ID)
//		return nil
//	})
//	if err != nil {
//		return err
//	}
//	if cont != nil {
//		// The cap stopped delivery; raise it and consume again.
//		cont(10)
//	}
//
// # Relationship Expansion
//
//	seq := stream.New(stream.Config{
//		Fetch:         fetcher.Fetch,
//		StartURL:      url,
//		Limit:         stream.Unlimited,
//		Relationships: []stream.RelationshipSpec{stream.Rel("author")},
//	})
//
//	_, err := seq.Consume(ctx, func(res *document.Resource, rels stream.Relationships) error {
//		_, err := rels["author"].Consume(ctx, printAuthor)
//		return err
//	})
//
// Relationship expansion recurses: a RelationshipSpec may carry nested
// specs, and the nested sequences expand those on their own elements.
//
// # Manual Pulling
//
// Consume covers most callers. Next pulls one element at a time, blocking
// on page fetches; TryPull is the non-blocking primitive underneath, with
// Wait to block until an in-flight fetch resolves.
//
// A Sequence is not safe for concurrent use; drive it from one goroutine.
package stream
