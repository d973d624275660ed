// Package objectstore implements a stateless download/upload client: a
// plain GET against the public-read path, and an OAuth2
// client-credentials-authenticated PUT against the upload path.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ternarybob/statement-agent/internal/common"
	"github.com/ternarybob/statement-agent/internal/domain"
)

// Client is the object-store adapter. Downloads use a bare http.Client;
// uploads are authenticated via an OAuth2 token source built once and
// reused for the lifetime of the process.
type Client struct {
	cfg        common.ObjectStoreConfig
	downloader *http.Client
	uploader   *http.Client
	logger     arbor.ILogger
}

// New builds an object-store client. The upload http.Client wraps an
// oauth2.TokenSource that exchanges ServiceCredential for a bearer
// token against TokenURL using the client-credentials grant; if
// TokenURL is unset, uploads fall back to an unauthenticated client
// (useful for local/dev object-store emulators).
func New(cfg common.ObjectStoreConfig, logger arbor.ILogger) *Client {
	c := &Client{
		cfg:        cfg,
		downloader: &http.Client{},
		logger:     logger,
	}

	if cfg.TokenURL != "" && cfg.ServiceCredential != "" {
		ccCfg := clientcredentials.Config{
			ClientID:     cfg.Bucket,
			ClientSecret: cfg.ServiceCredential,
			TokenURL:     cfg.TokenURL,
		}
		c.uploader = ccCfg.Client(context.Background())
	} else {
		c.uploader = &http.Client{}
	}

	return c
}

// Download fetches bucket/key via the public-read path
// /<bucket>/<KEY>.xlsx.
func (c *Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s.xlsx", strings.TrimRight(c.cfg.BaseURL, "/"), bucket, strings.ToUpper(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.downloader.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download %s returned %d", domain.ErrTransport, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}

	c.logger.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("object downloaded")
	return data, nil
}

// Upload writes bucket/key via the authenticated upload endpoint.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte) error {
	url := fmt.Sprintf("%s/%s/%s.xlsx", strings.TrimRight(c.cfg.UploadURL, "/"), bucket, strings.ToUpper(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	resp, err := c.uploader.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: upload %s returned %d: %s", domain.ErrTransport, url, resp.StatusCode, string(body))
	}

	c.logger.Info().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("object uploaded")
	return nil
}
