package pantheon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiErrorBody is the error envelope the API returns. Some endpoints use a
// single message, others a list of errors; both can appear in 2xx bodies.
type apiErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (b *apiErrorBody) joined() string {
	msgs := b.Errors
	if b.Message != "" {
		msgs = append([]string{b.Message}, msgs...)
	}
	return strings.Join(msgs, "; ")
}

// decodeResponse checks the response for errors and, when out is non-nil,
// decodes the body into it.
func decodeResponse(service string, resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body apiErrorBody
		if json.Unmarshal(data, &body) == nil && body.joined() != "" {
			return fmt.Errorf("%s: API returned status %d: %s", service, resp.StatusCode, body.joined())
		}
		return fmt.Errorf("%s: API returned status %d: %s", service, resp.StatusCode, resp.Status)
	}

	var body apiErrorBody
	if json.Unmarshal(data, &body) == nil && len(body.Errors) > 0 {
		return fmt.Errorf("%s: %s", service, body.joined())
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", service, err)
	}
	return nil
}
