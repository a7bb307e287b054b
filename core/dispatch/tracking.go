package dispatch

import (
	"encoding/base64"
	"fmt"
	"html"
	"strconv"
	"strings"
)

// TrackingID encodes a draft id for the open-tracking pixel.
func TrackingID(draftID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(draftID, 10)))
}

// ParseTrackingID reverses TrackingID. Padded standard encodings are
// accepted as well.
func ParseTrackingID(id string) (int64, error) {
	id = strings.TrimRight(strings.TrimSpace(id), "=")
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(id)
	}
	if err != nil {
		return 0, fmt.Errorf("tracking id: %w", err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("tracking id: invalid draft id %q", raw)
	}
	return n, nil
}

func trackingPixel(baseURL string, draftID int64) string {
	src := strings.TrimRight(baseURL, "/") + "/track?id=" + TrackingID(draftID)
	return `<img src="` + html.EscapeString(src) + `" width="1" height="1" style="display:none" alt="" />`
}

// withPixel places the pixel before </body> when the document has one.
func withPixel(body, pixel string) string {
	if i := strings.LastIndex(strings.ToLower(body), "</body>"); i >= 0 {
		return body[:i] + pixel + body[i:]
	}
	return body + pixel
}
