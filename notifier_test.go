package dataload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.nownabe.dev/dataload"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(f roundTripperFunc) *http.Client {
	return &http.Client{Transport: f}
}

func TestSlackNotifier(t *testing.T) {
	var sent map[string]string

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf(`Authorization should be "Bearer token", but %q`, got)
		}
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"ok":true}`)),
			Header:     http.Header{},
		}, nil
	})

	n := &dataload.SlackNotifier{
		Channel:    "#channel",
		Token:      "token",
		IconEmoji:  ":emoji:",
		Username:   "username",
		HTTPClient: client,
	}

	r := &dataload.Result{Dataset: "solar", Period: "2023", Rows: 8760}

	if err := n.Notify(context.Background(), r); err != nil {
		t.Fatalf("unexpected slack.Notify error: %s", err)
	}

	if sent["channel"] != "#channel" {
		t.Errorf(`channel should be "#channel", but %q`, sent["channel"])
	}

	if !strings.Contains(sent["text"], "8760 rows") {
		t.Errorf("text should contain row count, but %q", sent["text"])
	}
}

func TestSlackNotifier_notOK(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString(`{"ok":false,"error":"channel_not_found"}`)),
			Header:     http.Header{},
		}, nil
	})

	n := &dataload.SlackNotifier{Channel: "#nowhere", Token: "token", HTTPClient: client}
	r := &dataload.Result{Dataset: "wind", Period: "2023", Error: errors.New("boom")}

	err := n.Notify(context.Background(), r)
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected channel_not_found error, but %v", err)
	}
}

func TestPubSubNotifier(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project", option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "runs")
	if err != nil {
		t.Fatal(err)
	}
	defer topic.Stop()

	n := &dataload.PubSubNotifier{Topic: topic}
	r := &dataload.Result{
		RunID:   "run-1",
		Dataset: "wind",
		Period:  "2023",
		Rows:    3,
		Error:   errors.New("load failed"),
	}

	if err := n.Notify(ctx, r); err != nil {
		t.Fatalf("unexpected Notify error: %v", err)
	}

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("1 message should be published, but %d", len(msgs))
	}

	if got := msgs[0].Attributes["status"]; got != "failure" {
		t.Errorf(`status attribute should be "failure", but %q`, got)
	}

	var body struct {
		RunID string `json:"run_id"`
		Rows  int    `json:"rows"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(msgs[0].Data, &body); err != nil {
		t.Fatal(err)
	}

	if body.RunID != "run-1" || body.Rows != 3 || body.Error != "load failed" {
		t.Errorf("unexpected message body: %+v", body)
	}
}
