// Package pagination walks the pages of a code search lazily.
//
// Every page is looked up in the response cache before the API is called.
// A freshly fetched page is stored in the cache and its Link header decides
// whether another page exists; a page served from the cache is trusted as-is.
//
// Example usage:
//
//	p, err := pagination.New(apiClient, store, pagination.Config{Query: q, MaxResults: 1000}, logger)
//	if err != nil {
//		return err
//	}
//	for item, err := range p.All(ctx) {
//		if err != nil {
//			return err
//		}
//		// use item
//	}
//
// Pagination stops when a page reports total_count 0, when a page has no
// items, or after a freshly fetched page without a rel="next" link. Breaking
// out of the range loop stops all further requests.
package pagination
