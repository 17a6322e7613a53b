package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWebhook(t *testing.T) {
	t.Run("image message", func(t *testing.T) {
		body := []byte(`{
			"typeWebhook": "incomingMessageReceived",
			"timestamp": 1700000000,
			"idMessage": "ABCDEF",
			"senderData": {"chatId": "94771234567@c.us"},
			"messageData": {
				"typeMessage": "imageMessage",
				"imageMessageData": {"downloadUrl": "https://x/img.jpg", "fileName": "img.jpg"}
			}
		}`)

		ev, err := DecodeWebhook(body)
		require.NoError(t, err)

		assert.Equal(t, "94771234567@c.us", ev.Sender)
		assert.Equal(t, "ABCDEF", ev.MsgID)
		assert.Equal(t, time.Unix(1700000000, 0), ev.Timestamp)
		require.Len(t, ev.Attachments, 1)
		assert.Contains(t, ev.Attachments[0], "downloadUrl")
	})

	t.Run("album uses the medias list", func(t *testing.T) {
		body := []byte(`{
			"typeWebhook": "incomingMessageReceived",
			"idMessage": "ALBUM1",
			"senderData": {"chatId": "94771234567@c.us"},
			"messageData": {
				"typeMessage": "imageMessage",
				"imageMessageData": {"downloadUrl": "https://x/cover.jpg"},
				"medias": [
					{"downloadUrl": "https://x/1.jpg"},
					{"downloadUrl": "https://x/2.jpg"},
					{"downloadUrl": "https://x/3.jpg"}
				]
			}
		}`)

		ev, err := DecodeWebhook(body)
		require.NoError(t, err)

		require.Len(t, ev.Attachments, 3)
		assert.Contains(t, ev.Attachments[0], "1.jpg")
		assert.Contains(t, ev.Attachments[2], "3.jpg")
	})

	t.Run("text message", func(t *testing.T) {
		body := []byte(`{
			"typeWebhook": "incomingMessageReceived",
			"idMessage": "TXT1",
			"senderData": {"chatId": "94771234567@c.us"},
			"messageData": {
				"typeMessage": "textMessage",
				"textMessageData": {"textMessage": "hello"}
			}
		}`)

		ev, err := DecodeWebhook(body)
		require.NoError(t, err)

		assert.Equal(t, "hello", ev.Text)
		assert.Empty(t, ev.Attachments)
		assert.True(t, ev.Timestamp.IsZero())
	})

	t.Run("document message", func(t *testing.T) {
		body := []byte(`{
			"typeWebhook": "incomingMessageReceived",
			"idMessage": "DOC1",
			"senderData": {"chatId": "94771234567@c.us"},
			"messageData": {
				"typeMessage": "documentMessage",
				"fileMessageData": {"downloadUrl": "https://x/scan.jpg", "fileName": "scan.jpg"}
			}
		}`)

		ev, err := DecodeWebhook(body)
		require.NoError(t, err)
		require.Len(t, ev.Attachments, 1)
		assert.Contains(t, ev.Attachments[0], "scan.jpg")
	})

	t.Run("missing typeWebhook", func(t *testing.T) {
		_, err := DecodeWebhook([]byte(`{"idMessage": "X", "senderData": {"chatId": "94771234567@c.us"}}`))
		assert.Error(t, err)
	})

	t.Run("missing chat id", func(t *testing.T) {
		_, err := DecodeWebhook([]byte(`{"typeWebhook": "incomingMessageReceived", "idMessage": "X", "senderData": {}}`))
		assert.Error(t, err)
	})

	t.Run("missing message id", func(t *testing.T) {
		_, err := DecodeWebhook([]byte(`{"typeWebhook": "incomingMessageReceived", "senderData": {"chatId": "94771234567@c.us"}}`))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeWebhook([]byte("not json"))
		assert.Error(t, err)
	})
}
