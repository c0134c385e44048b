// Package inference talks to the external sound-classification service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"sound-predict/api/internal/universe"
	"sound-predict/api/internal/util"
)

// DefaultBaseURL is where the service listens in the standard deployment.
const DefaultBaseURL = "http://127.0.0.1:8000"

// FileField is the multipart field the service reads the upload from.
const FileField = "file"

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference %d: %s", e.Code, e.Body)
}

type Client struct {
	BaseURL string
	httpc   *http.Client
}

// New builds a client. A zero timeout means requests wait as long as the
// caller's context allows.
func New(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// sniffLen is how much of an upload is buffered to pick its content type.
const sniffLen = 512

// PredictFile streams an audio file to POST /predict/{segment}. Only the
// first sniffLen bytes are held in memory.
func (c *Client) PredictFile(ctx context.Context, u universe.Universe, filename string, r io.Reader) (Result, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()
	go func() {
		pw.CloseWithError(writeFilePart(mw, filename, head, r))
	}()

	endpoint := c.BaseURL + "/predict/" + u.Segment()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func writeFilePart(mw *multipart.Writer, filename string, head []byte, rest io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, filename))
	h.Set("Content-Type", util.PickMIME("", filename, head))
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, io.MultiReader(bytes.NewReader(head), rest)); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	return mw.Close()
}

// PredictYouTube asks the service to fetch and classify the audio behind link.
// The link travels percent-encoded in the url query parameter; the body is empty.
func (c *Client) PredictYouTube(ctx context.Context, u universe.Universe, link string) (Result, error) {
	q := url.Values{}
	q.Set("url", link)
	endpoint := c.BaseURL + "/predict_youtube/" + u.Segment() + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (Result, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(x))}
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return out, nil
}
