// Package pagination walks IGDB endpoints in parallel batches.
//
// IGDB has no page count header: a resource is read with `limit`/`offset`
// clauses until fewer items come back than were asked for. A batch is
// MaxParallel (4) concurrent calls at consecutive offsets, each limited to
// PageSize (500) items, which matches the upstream ceiling of four requests
// per second. The driver sleeps PaceDelay (1s) between batches.
//
// Example usage:
//
//	driver := pagination.NewDriver(igdbClient, pagination.DefaultDriverConfig())
//	games, err := driver.FetchAll(ctx, catalog.KindGames, "fields name,cover.image_id;")
//
// The driver:
//   - Appends `limit 500;sort id;` to the query once
//   - Sends each call with `offset N;sort id;` appended
//   - Decodes every page strictly (see package catalog)
//   - Stops after the first batch holding fewer than 2000 items
//   - Fails the whole walk on the first failed call or decode error
package pagination
