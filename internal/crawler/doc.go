// Package crawler explores a single website to a bounded depth looking for
// contact email addresses.
//
// A crawl fetches the landing page first and stops as soon as a page yields
// an address. When the landing page has none it tries the first same-site
// link mentioning "contact", then sweeps the unvisited same-site links level
// by level (depth 2, then depth 3) until one page yields an address or the
// depth budget runs out. Every URL is fetched at most once per crawl.
package crawler
