// Package deliver hands finished documents to the messaging gateway. The
// gateway exposes per-instance HTTP methods; a document is delivered by
// uploading the file, then sending the hosted URL to the destination chat.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Janithmanodaya/pdf-relay/internal/domain"
)

// Sink accepts a finished document for a destination chat.
type Sink interface {
	Deliver(ctx context.Context, destination, documentPath, caption string) (string, error)
	SendText(ctx context.Context, destination, message string) error
}

// Client is the gateway HTTP client.
type Client struct {
	baseURL    string
	instanceID string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client for one messaging instance.
func NewClient(baseURL, instanceID, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		instanceID: instanceID,
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, c.instanceID, method, c.token)
}

// Deliver uploads the document and sends its hosted URL to the destination.
// Returns the gateway's message id as the acknowledgment.
func (c *Client) Deliver(ctx context.Context, destination, documentPath, caption string) (string, error) {
	fileURL, err := c.uploadFile(ctx, documentPath)
	if err != nil {
		return "", &domain.DeliveryError{Err: err}
	}

	msgID, err := c.sendFileByURL(ctx, destination, fileURL, filepath.Base(documentPath), caption)
	if err != nil {
		return "", &domain.DeliveryError{Err: err}
	}

	c.logger.Info("Document delivered",
		slog.String("destination", destination),
		slog.String("document", filepath.Base(documentPath)),
		slog.String("message_id", msgID),
	)
	return msgID, nil
}

// SendText sends a plain text notice, best effort.
func (c *Client) SendText(ctx context.Context, destination, message string) error {
	payload := map[string]string{
		"chatId":  destination,
		"message": message,
	}
	var resp struct {
		IDMessage string `json:"idMessage"`
	}
	if err := c.postJSON(ctx, c.methodURL("sendMessage"), payload, &resp); err != nil {
		return &domain.DeliveryError{Err: err}
	}
	return nil
}

// uploadFile posts the document as multipart form data and returns the
// hosted file URL.
func (c *Client) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("uploadFile"), &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var result struct {
		URLFile string `json:"urlFile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.URLFile == "" {
		return "", fmt.Errorf("upload response missing urlFile")
	}
	return result.URLFile, nil
}

// sendFileByURL instructs the gateway to send the hosted file to a chat.
func (c *Client) sendFileByURL(ctx context.Context, chatID, fileURL, fileName, caption string) (string, error) {
	payload := map[string]string{
		"chatId":   chatID,
		"urlFile":  fileURL,
		"fileName": fileName,
		"caption":  caption,
	}
	var result struct {
		IDMessage string `json:"idMessage"`
	}
	if err := c.postJSON(ctx, c.methodURL("sendFileByUrl"), payload, &result); err != nil {
		return "", err
	}
	if result.IDMessage == "" {
		return "", fmt.Errorf("send response missing idMessage")
	}
	return result.IDMessage, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
