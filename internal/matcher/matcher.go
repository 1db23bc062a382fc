// Package matcher sends captured frames to the remote face-matching service.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// maxResponseSize caps how much of a matcher response is read.
const maxResponseSize = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL    string
	EntryPath  string
	ExitPath   string
	Timeout    time.Duration
	CaptureDir string // optional directory for raw response captures
}

// Client is the dispatcher for one matcher service. It is safe for concurrent
// use; each Send performs exactly one HTTP request and never retries.
type Client struct {
	baseURL    *url.URL
	entryPath  string
	exitPath   string
	timeout    time.Duration
	captureDir string
	client     *http.Client
}

// NewClient creates a matcher client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultMatcherURL
	}
	parsed, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid matcher URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid matcher URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.EntryPath == "" {
		cfg.EntryPath = constants.DefaultEntryMatchPath
	}
	if cfg.ExitPath == "" {
		cfg.ExitPath = constants.DefaultExitMatchPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultMatchTimeout
	}

	c := &Client{
		baseURL:   parsed,
		entryPath: cfg.EntryPath,
		exitPath:  cfg.ExitPath,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
	}
	if cfg.CaptureDir != "" {
		if err := c.SetCaptureDir(cfg.CaptureDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// endpoint returns the full URL for a direction.
func (c *Client) endpoint(dir attendance.Direction) string {
	path := c.entryPath
	if dir == attendance.Exit {
		path = c.exitPath
	}
	return c.baseURL.JoinPath(path).String()
}

// Send encodes the frame, posts it with the direction tag and decodes the
// response. A non-2xx status, a transport failure or a timeout is returned as
// an error; a 2xx body that is not a JSON object yields a malformed response
// together with the decode error.
func (c *Client) Send(ctx context.Context, frame image.Image, dir attendance.Direction) (*attendance.MatchResponse, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(dir))
	}

	imageData, err := EncodeFrame(frame, constants.MaxImageSize, constants.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return c.SendImage(ctx, imageData, dir)
}

// SendImage posts an already encoded JPEG. Used by the match command for
// still images from disk.
func (c *Client) SendImage(ctx context.Context, imageData []byte, dir attendance.Direction) (*attendance.MatchResponse, error) {
	body, contentType, err := buildForm(imageData, dir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(dir), body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	c.captureResponse(dir, respBody)

	return attendance.DecodeResponse(respBody)
}

// buildForm builds the multipart body: the frame as part "file" and the
// direction as field "Type".
func buildForm(imageData []byte, dir attendance.Direction) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.WriteField("Type", dir.String()); err != nil {
		return nil, "", fmt.Errorf("failed to write direction field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// SetCaptureDir enables response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves a matcher response to a file if capturing is enabled.
func (c *Client) captureResponse(dir attendance.Direction, body []byte) {
	if c.captureDir == "" {
		return
	}

	timestamp := time.Now().Format("20060102_150405.000")
	filename := fmt.Sprintf("%s_match_%s.json", strings.ToLower(dir.String()), timestamp)
	path := filepath.Join(c.captureDir, filename)

	// Pretty-print JSON if possible
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	// WriteFile error is non-critical for capturing - log and continue
	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
