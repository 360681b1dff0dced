package twitter

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// encodeCookies serializes a session's cookies into the opaque blob stored
// on the user row.
func encodeCookies(cookies []*http.Cookie) (string, error) {
	data, err := json.Marshal(cookies)
	if err != nil {
		return "", fmt.Errorf("error marshaling cookies: %w", err)
	}
	return string(data), nil
}

// decodeCookies restores cookies from the stored blob.
func decodeCookies(blob string) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	if err := json.Unmarshal([]byte(blob), &cookies); err != nil {
		return nil, fmt.Errorf("error unmarshaling cookies: %w", err)
	}
	return cookies, nil
}
