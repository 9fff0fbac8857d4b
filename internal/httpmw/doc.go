// Package httpmw contains the HTTP middleware used by the gateway:
// security headers, cache control, request identity, access logging,
// body limits and panic recovery. Each middleware is a plain
// func(http.Handler) http.Handler so chains stay explicit at the
// composition site.
package httpmw
