package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/CZERTAINLY/Piper/internal/model"
)

const reportContentType = "text/plain; charset=utf-8"

// ReportUploader POSTs captured output to a collecting endpoint.
type ReportUploader struct {
	requestURL model.URL
	token      string
	client     *http.Client
}

func NewReportUploader(serverURL string, token string) (*ReportUploader, error) {
	var u model.URL
	if err := u.UnmarshalText([]byte(serverURL)); err != nil {
		return nil, err
	}
	parsed := u.AsURL()
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("please define the report url with a scheme and a host, e.g. `http://collector.example.com/logs`")
	}

	if strings.HasPrefix(token, "$") {
		token = os.ExpandEnv(token)
	}

	return &ReportUploader{
		requestURL: u,
		token:      token,
		client:     &http.Client{},
	}, nil
}

func (c *ReportUploader) Upload(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", reportContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := c.checkResponse(resp); err != nil {
		return err
	}
	slog.DebugContext(ctx, "output reported", slog.Int("status", resp.StatusCode))
	return nil
}

func (c *ReportUploader) checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// only the problem detail is surfaced for now, the other RFC 7807
	// fields are ignored
	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err == nil && contentType == "application/problem+json" {
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		return fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return err
	}
	return fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
