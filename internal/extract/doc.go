// Package extract turns container pages into lists of hoster download links.
//
// An Extractor owns a Registry of Strategy implementations. Hosts are matched
// in registration order (filecrypt first) and anything unmatched falls through
// to the generic strategy, which collects direct hoster anchors. Discovery
// stops early when a page asks for a password or shows a captcha; the Result
// then carries the gate instead of links.
//
// All network access goes through a rate-limited Fetcher. Failures are typed:
// *FetchError for transport, timeout and HTTP status problems, *ParseError for
// unusable URLs or markup.
package extract
