package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RawScan is one attendance log entry as read from the device. A zero
// RecordTime or empty BiometricID marks a malformed entry.
type RawScan struct {
	BiometricID string    `json:"biometric_id"`
	RecordTime  time.Time `json:"record_time"`
}

// Malformed reports whether the entry lacks an id or a timestamp.
func (s RawScan) Malformed() bool {
	return strings.TrimSpace(s.BiometricID) == "" || s.RecordTime.IsZero()
}

// Client reads attendance logs from the HTTP gateway in front of the
// biometric device.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
	loc     *time.Location
}

// New creates a client. timeout bounds connect and read of every call;
// timestamps without an offset are read in loc.
func New(baseURL string, timeout time.Duration, skip bool, loc *time.Location) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
		loc:     loc,
	}
}

// wireScan accepts the field spellings different gateway firmwares emit.
type wireScan struct {
	DeviceUserID any    `json:"deviceUserId"`
	UID          any    `json:"uid"`
	UserID       any    `json:"userId"`
	RecordTime   string `json:"recordTime"`
	Timestamp    string `json:"timestamp"`
	Time         string `json:"time"`
}

// FetchRawScans returns the logs currently stored on the device.
func (c *Client) FetchRawScans(ctx context.Context) ([]RawScan, error) {
	if c.Skip {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/attendances", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("device error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		Data []wireScan `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode device logs: %w", err)
	}

	scans := make([]RawScan, 0, len(out.Data))
	for _, w := range out.Data {
		scans = append(scans, RawScan{
			BiometricID: firstID(w.DeviceUserID, w.UID, w.UserID),
			RecordTime:  c.parseTime(firstNonEmpty(w.RecordTime, w.Timestamp, w.Time)),
		})
	}
	return scans, nil
}

// Health checks if the gateway is reachable.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("device unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("device unhealthy: %s", resp.Status)
	}
	return nil
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func (c *Client) parseTime(s string) time.Time { return ParseTime(s, c.loc) }

// ParseTime reads a scan timestamp: RFC 3339 with an offset, or one of the
// gateway's naive layouts interpreted in loc. It returns the zero time for
// anything unreadable.
func ParseTime(s string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstID(values ...any) string {
	for _, v := range values {
		switch id := v.(type) {
		case string:
			if s := strings.TrimSpace(id); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
