package clowder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxErrorBody = 2048

// Config contains the information required to talk to a Clowder instance.
type Config struct {
	Host       string
	SecretKey  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a small Clowder REST client covering dataset files and
// dataset metadata.
type Client struct {
	host string
	key  string
	http *http.Client
}

// New constructs a Client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		host: strings.TrimRight(cfg.Host, "/"),
		key:  cfg.SecretKey,
		http: hc,
	}
}

// WithCredentials returns a copy bound to a different host or key. Empty
// values keep the current setting.
func (c *Client) WithCredentials(host, key string) *Client {
	cp := *c
	if host != "" {
		cp.host = strings.TrimRight(host, "/")
	}
	if key != "" {
		cp.key = key
	}
	return &cp
}

// Host returns the base URL this client talks to.
func (c *Client) Host() string {
	return c.host
}

// GetDataset fetches dataset info.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	var ds Dataset
	if err := c.getJSON(ctx, "/api/datasets/"+url.PathEscape(datasetID), nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListFiles lists the files of a dataset.
func (c *Client) ListFiles(ctx context.Context, datasetID string) ([]File, error) {
	var files []File
	if err := c.getJSON(ctx, "/api/datasets/"+url.PathEscape(datasetID)+"/files", nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DownloadFile streams a file blob into dst.
func (c *Client) DownloadFile(ctx context.Context, fileID, dst string) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/files/"+url.PathEscape(fileID)+"/blob", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("download file %s: %w", fileID, err)
	}
	return out.Close()
}

// DownloadMetadata lists JSON-LD metadata on a dataset. A non-empty
// extractor restricts the listing to entries authored by that extractor.
func (c *Client) DownloadMetadata(ctx context.Context, datasetID, extractor string) ([]Metadata, error) {
	query := url.Values{}
	if extractor != "" {
		query.Set("extractor", extractor)
	}
	var md []Metadata
	if err := c.getJSON(ctx, "/api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", query, &md); err != nil {
		return nil, err
	}
	return md, nil
}

// UploadMetadata attaches a JSON-LD document to a dataset.
func (c *Client) UploadMetadata(ctx context.Context, datasetID string, md Metadata) error {
	body, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// RemoveMetadata deletes the dataset metadata authored by extractor.
func (c *Client) RemoveMetadata(ctx context.Context, datasetID, extractor string) error {
	query := url.Values{}
	query.Set("extractor", extractor)
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/datasets/"+url.PathEscape(datasetID)+"/metadata.jsonld", query, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// UploadToDataset uploads a local file into a dataset and returns the new
// file id.
func (c *Client) UploadToDataset(ctx context.Context, datasetID, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("File", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/uploadToDataset/"+url.PathEscape(datasetID), nil, pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload %s: empty file id in response", filepath.Base(path))
	}
	return out.ID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.key != "" {
		query.Set("key", c.key)
	}
	target := c.host + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clowder %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}
