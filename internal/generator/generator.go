// Package generator seeds a running docflow service with DRAFT documents
// through its HTTP API.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docflow/docflow/backend/go-services/pkg/logger"
)

type Config struct {
	ServiceURL string
	Count      int
	Author     string
	// ClientID is sent as X-Client-ID so the server rate-limits the generator on its own bucket.
	ClientID string
}

type Summary struct {
	Created int
	Failed  int
	Elapsed time.Duration
}

type createResponse struct {
	ID     int64  `json:"id"`
	Number string `json:"number"`
}

// Generator posts Count documents one after another. Failures are counted,
// never retried.
type Generator struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config, client *http.Client) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	return &Generator{cfg: cfg, client: client}
}

func (g *Generator) Run(ctx context.Context) Summary {
	logger.Infof("document generator started: count=%d target=%s", g.cfg.Count, g.cfg.ServiceURL)
	start := time.Now()
	var sum Summary
	for i := 1; i <= g.cfg.Count; i++ {
		if ctx.Err() != nil {
			sum.Failed += g.cfg.Count - i + 1
			logger.Warnf("generator interrupted at %d/%d", i, g.cfg.Count)
			break
		}
		stepStart := time.Now()
		resp, err := g.create(ctx, fmt.Sprintf("Generated Document #%d", i))
		if err != nil {
			sum.Failed++
			logger.Errorf("creating document %d/%d: %v", i, g.cfg.Count, err)
		} else {
			sum.Created++
			logger.Infof("created [%d/%d] id=%d number=%s in %s", sum.Created, g.cfg.Count, resp.ID, resp.Number, time.Since(stepStart))
		}
		if i%10 == 0 {
			logger.Infof("progress: %d/%d created, %d failed", sum.Created, g.cfg.Count, sum.Failed)
		}
	}
	sum.Elapsed = time.Since(start)
	logger.Infof("generator finished: created=%d/%d failed=%d total=%s", sum.Created, g.cfg.Count, sum.Failed, sum.Elapsed)
	return sum
}

func (g *Generator) create(ctx context.Context, title string) (*createResponse, error) {
	body, err := json.Marshal(map[string]string{"author": g.cfg.Author, "title": title})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.ServiceURL+"/api/documents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.ClientID != "" {
		req.Header.Set("X-Client-ID", g.cfg.ClientID)
	}
	res, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out createResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
