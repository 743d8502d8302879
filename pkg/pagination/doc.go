// Package pagination collects a bounded number of records from a paginated
// upstream listing.
//
// The cursor is a plain page counter starting at 0 and incremented by one
// after every full page. It is not an opaque server token: the collector
// assumes page boundaries are stable between calls, so a listing that
// shifts while it is being walked may yield duplicates or gaps. Replace the
// PageFetcher (not the loop) if the upstream hands out continuation tokens.
//
// Example usage:
//
//	products, err := pagination.Collect(ctx, pagination.PageFunc[Product](fetch), pagination.Config{
//		PageSize: 70,
//		Target:   1000,
//	})
//
// The loop stops when:
//   - a page comes back empty (listing exhausted)
//   - Target records have been accumulated
//   - a page is shorter than PageSize (treated as the last page)
//   - MaxPages pages have been fetched (guard against a misbehaving upstream)
package pagination
