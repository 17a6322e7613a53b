// Package ingest turns webhook deliveries into jobs: it decodes incoming
// message events, drops stale and duplicate ones, and windows each sender's
// image burst into a single job via the batching coordinator.
package ingest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a decoded incoming-message event.
type Event struct {
	Sender      string
	MsgID       string
	Timestamp   time.Time
	Text        string
	Attachments []string // raw JSON descriptors, attachment order preserved
}

// webhookPayload mirrors the gateway's incoming-message notification shape.
type webhookPayload struct {
	TypeWebhook string `json:"typeWebhook"`
	Timestamp   int64  `json:"timestamp"`
	IDMessage   string `json:"idMessage"`
	SenderData  struct {
		ChatID string `json:"chatId"`
	} `json:"senderData"`
	MessageData struct {
		TypeMessage      string          `json:"typeMessage"`
		ImageMessageData json.RawMessage `json:"imageMessageData"`
		FileMessageData  json.RawMessage `json:"fileMessageData"`
		TextMessageData  struct {
			TextMessage string `json:"textMessage"`
		} `json:"textMessageData"`
		Medias []json.RawMessage `json:"medias"`
	} `json:"messageData"`
}

// DecodeWebhook parses one webhook body into an Event. Attachment
// descriptors are kept as raw JSON; only the fetcher interprets them.
func DecodeWebhook(body []byte) (*Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if p.TypeWebhook == "" {
		return nil, fmt.Errorf("webhook payload missing typeWebhook")
	}
	if p.SenderData.ChatID == "" {
		return nil, fmt.Errorf("webhook payload missing sender chat id")
	}
	if p.IDMessage == "" {
		return nil, fmt.Errorf("webhook payload missing message id")
	}

	ev := &Event{
		Sender: p.SenderData.ChatID,
		MsgID:  p.IDMessage,
		Text:   p.MessageData.TextMessageData.TextMessage,
	}
	if p.Timestamp > 0 {
		ev.Timestamp = time.Unix(p.Timestamp, 0)
	}

	for _, m := range p.MessageData.Medias {
		ev.Attachments = append(ev.Attachments, string(m))
	}
	if len(ev.Attachments) == 0 {
		if len(p.MessageData.ImageMessageData) > 0 {
			ev.Attachments = append(ev.Attachments, string(p.MessageData.ImageMessageData))
		} else if len(p.MessageData.FileMessageData) > 0 {
			ev.Attachments = append(ev.Attachments, string(p.MessageData.FileMessageData))
		}
	}
	return ev, nil
}
