package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxFileBytes caps the size of a fetched document.
const MaxFileBytes = 50 << 20

// Fetcher downloads the raw bytes behind a file URL.
type Fetcher interface {
	Fetch(ctx context.Context, fileURL string) (data []byte, contentType string, err error)
}

type s3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// URLFetcher fetches http(s) URLs and, when an S3 client is configured,
// s3://bucket/key URLs.
type URLFetcher struct {
	httpClient *http.Client
	s3         s3GetObjectAPI
}

func NewURLFetcher(timeout time.Duration, s3Client s3GetObjectAPI) *URLFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &URLFetcher{
		httpClient: &http.Client{Timeout: timeout},
		s3:         s3Client,
	}
}

func (f *URLFetcher) Fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	u, err := url.Parse(strings.TrimSpace(fileURL))
	if err != nil {
		return nil, "", fmt.Errorf("ingestion: parse file url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u.String())
	case "s3":
		return f.fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, "", fmt.Errorf("ingestion: unsupported file url scheme %q", u.Scheme)
	}
}

func (f *URLFetcher) fetchHTTP(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("ingestion: build fetch request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("ingestion: fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("ingestion: failed to fetch file: %s", resp.Status)
	}
	data, err := readCapped(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (f *URLFetcher) fetchS3(ctx context.Context, bucket, key string) ([]byte, string, error) {
	if f.s3 == nil {
		return nil, "", fmt.Errorf("ingestion: s3 urls are not configured")
	}
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("ingestion: s3 url needs bucket and key")
	}
	out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("ingestion: get s3 object: %w", err)
	}
	defer out.Body.Close()

	data, err := readCapped(out.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(out.ContentType), nil
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ingestion: read file: %w", err)
	}
	if len(data) > MaxFileBytes {
		return nil, fmt.Errorf("ingestion: file exceeds %d bytes", MaxFileBytes)
	}
	return data, nil
}
