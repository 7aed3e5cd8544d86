package dataload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Notifier notifies results for each pipeline run.
type Notifier interface {
	Notify(context.Context, *Result) error
}

// Result is a result for each pipeline run.
type Result struct {
	RunID   string
	Dataset string
	Period  string

	// Rows is the row count of the persisted table.
	Rows      int
	Artifacts []Artifact

	// Objects are URIs of uploaded artifacts.
	Objects []string

	// LoadURI is the source URI of the warehouse load, empty when nothing was loaded.
	LoadURI string

	Elapsed time.Duration
	Error   error
}

func (r *Result) summary() string {
	if r.Error != nil {
		return fmt.Sprintf(`%s pipeline failed for %s: %s`, r.Dataset, r.Period, r.Error)
	}
	return fmt.Sprintf(`%s pipeline successfully loaded %d rows for %s`, r.Dataset, r.Rows, r.Period)
}

// SlackNotifier is a notifier for Slack.
type SlackNotifier struct {
	Channel    string
	IconEmoji  string
	Username   string
	Token      string
	HTTPClient *http.Client
}

type slackMessage struct {
	Channel   string `json:"channel"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Notify notifies results to Slack channel.
func (n *SlackNotifier) Notify(ctx context.Context, r *Result) error {
	l := log.Ctx(ctx)

	m := &slackMessage{
		Channel:   n.Channel,
		IconEmoji: n.IconEmoji,
		Text:      r.summary(),
		Username:  n.Username,
	}
	l.Debug().Msgf("m = %+v", m)

	if err := n.postMessage(ctx, m); err != nil {
		return xerrors.Errorf("slack postMessage failed: %w", err)
	}

	return nil
}

func (n *SlackNotifier) postMessage(ctx context.Context, m *slackMessage) error {
	l := log.Ctx(ctx)

	reqJSON, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://slack.com/api/chat.postMessage", bytes.NewReader(reqJSON))
	if err != nil {
		return xerrors.Errorf("failed to build http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.Token)

	c := n.HTTPClient
	if c == nil {
		c = http.DefaultClient
	}

	resp, err := c.Do(req)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("failed to read response body: %w", err)
	}

	l.Debug().Msgf("body = %s", body)

	if resp.StatusCode >= 400 {
		return xerrors.Errorf(
			"slack request failed with status code %d (%s)", resp.StatusCode, body)
	}

	var sres slackResponse
	if err := json.Unmarshal(body, &sres); err != nil {
		return xerrors.Errorf("failed to unmarshal response body: %w", err)
	}

	if !sres.OK {
		return xerrors.Errorf("failed to send message: %s", sres.Error)
	}

	return nil
}

// PubSubNotifier publishes results as JSON messages to a Pub/Sub topic.
type PubSubNotifier struct {
	Topic *pubsub.Topic
}

type resultMessage struct {
	RunID     string     `json:"run_id"`
	Dataset   string     `json:"dataset"`
	Period    string     `json:"period"`
	Rows      int        `json:"rows"`
	Artifacts []Artifact `json:"artifacts"`
	Objects   []string   `json:"objects"`
	LoadURI   string     `json:"load_uri,omitempty"`
	ElapsedMS int64      `json:"elapsed_ms"`
	Error     string     `json:"error,omitempty"`
}

// Notify publishes r and waits for the server to acknowledge it.
func (n *PubSubNotifier) Notify(ctx context.Context, r *Result) error {
	m := resultMessage{
		RunID:     r.RunID,
		Dataset:   r.Dataset,
		Period:    r.Period,
		Rows:      r.Rows,
		Artifacts: r.Artifacts,
		Objects:   r.Objects,
		LoadURI:   r.LoadURI,
		ElapsedMS: r.Elapsed.Milliseconds(),
	}
	status := "success"
	if r.Error != nil {
		m.Error = r.Error.Error()
		status = "failure"
	}

	data, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal json: %w", err)
	}

	res := n.Topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"dataset": r.Dataset, "status": status},
	})

	id, err := res.Get(ctx)
	if err != nil {
		return xerrors.Errorf("failed to publish result: %w", err)
	}
	log.Ctx(ctx).Debug().Msgf("published result message %s", id)

	return nil
}
