package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qrdesk/qrstudio/internal/config"
	"go.uber.org/zap"
)

// URLSigner issues short-lived GET URLs for stored objects.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, expire time.Duration) (string, error)
}

// LogoClient downloads stored logos through presigned URLs.
type LogoClient struct {
	Signer       URLSigner
	HTTPClient   *http.Client
	SignedURLTTL time.Duration
	MaxBytes     int64
	Logger       *zap.Logger
}

func NewLogoClient(cfg *config.Config, signer URLSigner, log *zap.Logger) *LogoClient {
	timeout := time.Duration(cfg.Logo.FetchTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := time.Duration(cfg.Logo.SignedURLTTLSec) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LogoClient{
		Signer:       signer,
		HTTPClient:   &http.Client{Timeout: timeout},
		SignedURLTTL: ttl,
		MaxBytes:     cfg.Logo.MaxBytes,
		Logger:       log,
	}
}

func (c *LogoClient) FetchLogo(ctx context.Context, path string) ([]byte, error) {
	signed, err := c.Signer.PresignGet(ctx, path, c.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("sign logo url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch logo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch logo: unexpected status %d", resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if c.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, c.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if c.MaxBytes > 0 && int64(len(data)) > c.MaxBytes {
		return nil, fmt.Errorf("logo exceeds %d bytes", c.MaxBytes)
	}

	c.Logger.Sugar().Debugw("fetched logo", "path", path, "bytes", len(data))
	return data, nil
}
