package genclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const dataMarker = "data: "

// FilePart is one already-decoded attachment shipped alongside the JSON
// metadata part. Content is held in memory so the body can be rebuilt on
// retry.
type FilePart struct {
	Name        string
	ContentType string
	Content     []byte
}

// multipartBody assembles the streamed multipart request: one JSON
// metadata field followed by a raw part per file.
func multipartBody(metadata interface{}, files []FilePart) (io.ReadCloser, string, error) {
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata part: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		writeErr := func() error {
			field, err := writer.CreateFormField("metadata")
			if err != nil {
				return err
			}
			if _, err := field.Write(metadataBytes); err != nil {
				return err
			}

			for i, file := range files {
				header := make(textproto.MIMEHeader)
				header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file_%d"; filename=%q`, i, file.Name))
				if file.ContentType != "" {
					header.Set("Content-Type", file.ContentType)
				}
				part, err := writer.CreatePart(header)
				if err != nil {
					return err
				}
				if _, err := part.Write(file.Content); err != nil {
					return err
				}
			}

			return writer.Close()
		}()
		pw.CloseWithError(writeErr)
	}()

	return pr, writer.FormDataContentType(), nil
}

// openStream issues a multipart POST expecting an SSE response, retrying
// transient statuses with linear backoff. A non-retryable status aborts
// immediately with the body captured.
func (c *Client) openStream(ctx context.Context, path string, metadata interface{}, files []FilePart) (io.ReadCloser, error) {
	// The shared client enforces a whole-request timeout which would cut
	// long streams short, so streaming requests run on a bare client and
	// are governed by ctx alone.
	streamClient := &http.Client{}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * c.retryDelay
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		body, contentType, err := multipartBody(metadata, files)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
		if err != nil {
			body.Close()
			return nil, fmt.Errorf("create stream request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := streamClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("backend request failed: %w", err)
			c.log.Warn("GenClient", "Stream request failed, will retry", map[string]interface{}{
				"path":    path,
				"attempt": attempt,
				"error":   err.Error(),
			})
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}

		if !isRetryableStatus(resp.StatusCode) {
			return nil, statusErr
		}

		lastErr = statusErr
		c.log.Warn("GenClient", "Backend returned retryable status", map[string]interface{}{
			"path":    path,
			"attempt": attempt,
			"status":  resp.StatusCode,
		})
	}

	return nil, fmt.Errorf("backend unavailable after %d attempts: %w", c.maxAttempts, lastErr)
}

// readEvents consumes an SSE body record by record. Records are
// separated by blank lines; lines without the data marker are ignored
// and malformed JSON payloads are logged and skipped. The handler
// returns true to stop reading early.
func (c *Client) readEvents(ctx context.Context, body io.Reader, handle func(*Event) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data bytes.Buffer

	flush := func() bool {
		if data.Len() == 0 {
			return false
		}
		payload := data.Bytes()
		data.Reset()

		event, err := DecodeEvent(payload)
		if err != nil {
			c.log.Warn("GenClient", "Skipping malformed stream payload", map[string]interface{}{
				"error": err.Error(),
			})
			return false
		}
		return handle(event)
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Text()
		if line == "" {
			if flush() {
				return nil
			}
			continue
		}
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(strings.TrimPrefix(line, dataMarker))
	}

	// Trailing record without a closing blank line.
	flush()

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
