// Package httputil holds the handful of net/http helpers shared by the
// helpdesk and knowledgebase adapters — both are small hand-rolled REST
// clients (no vendor SDK exists for either service in the retrieval
// corpus; see DESIGN.md) and would otherwise duplicate this boilerplate.
package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// NewRequest builds an *http.Request with an optional JSON body reader.
func NewRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	return http.NewRequestWithContext(ctx, method, url, reader)
}

// BodySnippet reads and returns up to 2KB of a response body for
// inclusion in a remote_failure error, without risking an unbounded read.
func BodySnippet(resp *http.Response) string {
	const maxSnippet = 2048
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxSnippet))
	return string(data)
}
