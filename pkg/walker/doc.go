// Package walker implements sequential pagination of the SPLegis listing API.
//
// The portal serves search results through a DataTables-style AJAX endpoint:
// each request carries a draw counter, a zero-based start offset and a fixed
// page length, and each response reports the filtered total used to decide
// whether another page exists.
//
// Example usage:
//
//	w, err := walker.New(walker.Config{
//		Source:  proposicao.Source{House: "...", UF: "SP", Slug: "sp-sao-paulo"},
//		BaseURL: "https://splegisconsulta.saopaulo.sp.leg.br",
//		Limit:   500,
//	})
//	summary, err := w.Run(ctx, fetchClient, pipeline)
//
// The walker:
//   - Builds page requests with properly encoded query parameters
//   - Derives one proposal record per listing row that carries a process code
//   - Enforces the record limit per row, so a limit can cut a page short
//   - Threads immutable Step state through each parse, keeping walks re-entrant
//   - Delegates all I/O to the Fetcher and Sink collaborators
//
// The walk is inherently sequential: the next request depends on the current
// response's filtered total. Independent walks (e.g. different date ranges)
// are safe to run concurrently since no state is shared between them.
package walker
