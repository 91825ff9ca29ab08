package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apexlend/docpipeline/internal/config"
	"github.com/apexlend/docpipeline/internal/domain"
)

const (
	jobStatusPending    = "pending"
	jobStatusProcessing = "processing"
	jobStatusSucceeded  = "succeeded"
	jobStatusFailed     = "failed"
	jobStatusRejected   = "rejected"
)

// Client is the HTTP implementation of Provider: submit a job, then poll the
// completion endpoint until the provider reports a terminal status.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewClient(cfg config.OCR) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

type submitRequest struct {
	DocumentRef string `json:"document_ref"`
	FileName    string `json:"file_name"`
	TypeHint    string `json:"type_hint"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type jobResponse struct {
	Status string                  `json:"status"`
	Fields *domain.StatementFields `json:"fields,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

func (c *Client) Extract(ctx context.Context, req Request) (*domain.StatementFields, error) {
	jobID, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job, err := c.fetchJob(ctx, jobID)
			if err != nil {
				return nil, err
			}

			switch job.Status {
			case jobStatusSucceeded:
				return job.Fields, nil
			case jobStatusFailed:
				return nil, &domain.TransientIOError{
					Op:  "ocr job " + jobID,
					Err: fmt.Errorf("provider reported failure: %s", job.Error),
				}
			case jobStatusRejected:
				return nil, &domain.PermanentProviderError{Reason: job.Error}
			case jobStatusPending, jobStatusProcessing:
				// keep polling
			default:
				return nil, &domain.TransientIOError{
					Op:  "ocr job " + jobID,
					Err: fmt.Errorf("unknown job status %q", job.Status),
				}
			}

		case <-ctx.Done():
			return nil, &domain.TransientIOError{Op: "ocr job " + jobID, Err: ctx.Err()}
		}
	}
}

func (c *Client) submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(submitRequest{
		DocumentRef: req.DocumentRef,
		FileName:    req.FileName,
		TypeHint:    string(req.TypeHint),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit request: %w", err)
	}

	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", body, &resp); err != nil {
		return "", err
	}

	if resp.JobID == "" {
		return "", &domain.TransientIOError{
			Op:  "ocr submit",
			Err: fmt.Errorf("provider returned empty job id"),
		}
	}

	return resp.JobID, nil
}

func (c *Client) fetchJob(ctx context.Context, jobID string) (*jobResponse, error) {
	var resp jobResponse
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransientIOError{Op: "ocr " + method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.PermanentProviderError{Reason: string(msg)}

	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.TransientIOError{
			Op:  "ocr " + method + " " + path,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransientIOError{Op: "ocr response decode", Err: err}
	}

	return nil
}
