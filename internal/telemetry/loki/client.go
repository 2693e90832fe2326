// Package loki pushes auth events to Grafana Loki's push API.
package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// Job is the job label on every pushed stream.
const Job = "campus-auth"

var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// eventFields are the parts of a telemetry.Event JSON used for labels and the timestamp.
type eventFields struct {
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client pushes to one Loki instance.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("loki: base URL is empty")
	}
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{http: c}, nil
}

// PushEventJSON pushes a Kafka message value. Event type and source become labels and
// createdAt the entry time; unparseable input is pushed as-is at the current time.
func (c *Client) PushEventJSON(ctx context.Context, raw []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var f eventFields
	if err := json.Unmarshal(raw, &f); err == nil {
		if f.EventType != "" {
			labels["event_type"] = f.EventType
		}
		if f.Source != "" {
			labels["source"] = f.Source
		}
		if !f.CreatedAt.IsZero() {
			ts = f.CreatedAt
		}
	}
	return c.Push(ctx, ts, string(raw), labels)
}

// Push sends one log line with the given labels plus job=campus-auth.
func (c *Client) Push(ctx context.Context, ts time.Time, line string, labels map[string]string) error {
	stream := map[string]string{"job": Job}
	for k, v := range labels {
		if s := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); s != "" {
			stream[k] = s
		}
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(PushRequest{Streams: []Stream{{
			Stream: stream,
			Values: [][]string{{strconv.FormatInt(ts.UnixNano(), 10), line}},
		}}}).
		Post("/loki/api/v1/push")
	if err != nil {
		return fmt.Errorf("loki: push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("loki: push returned %s", resp.Status())
	}
	return nil
}
