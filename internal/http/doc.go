// Package http provides the HTTP client shared by every streetgrab component.
//
// The Client in this package handles:
//   - User-Agent headers (required by Nominatim)
//   - Timeout handling and a dedicated connection pool
//   - Non-2xx responses as *StatusError, including a parsed Retry-After
//
// # Basic Usage
//
//	client := http.NewClient(http.WithTimeout(20 * time.Second))
//	defer client.Close()
//
//	// Raw bytes (image downloads)
//	data, err := client.Get(ctx, imageURL, nil)
//
//	// JSON APIs
//	err = client.GetJSON(ctx, searchURL, header, &page)
//
// # Retry Classification
//
// Classify turns an error from the client into a retry.Outcome:
//
//	outcome := http.Classify(err)
//	// 429 / 5xx / timeouts -> retry.Transient
//	// other 4xx / malformed -> retry.Permanent
package http
