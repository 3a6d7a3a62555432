// Package docintel is a thin REST client for the Azure Document Intelligence
// read model. Analyze never returns a Go error: transport and service
// failures are captured in the Result so a batch can keep moving.
package docintel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	apiVersion   = "2024-11-30"
	defaultModel = "prebuilt-read"
	pollInterval = 2 * time.Second
	maxPolls     = 90
)

// Result is the outcome of one document analysis. Confidence is the mean
// word confidence across all pages, 0.0 when the service reported no words.
type Result struct {
	Content    string
	Confidence float64
	PageCount  int
	Success    bool
	Error      string
}

type Client struct {
	endpoint  string
	key       string
	modelID   string
	httpc     *http.Client
	cache     *gocache.Cache
	pollEvery time.Duration
}

func New(endpoint, key, modelID string) *Client {
	if modelID == "" {
		modelID = defaultModel
	}
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		key:       key,
		modelID:   modelID,
		httpc:     &http.Client{Timeout: 60 * time.Second},
		cache:     gocache.New(30*time.Minute, 10*time.Minute),
		pollEvery: pollInterval,
	}
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Analyze OCRs one PDF. Identical bytes hit the response cache and never
// reach the service twice.
func (c *Client) Analyze(ctx context.Context, fileBytes []byte) Result {
	if c.endpoint == "" || c.key == "" {
		return failure("brak konfiguracji Azure Document Intelligence")
	}

	sum := sha256.Sum256(fileBytes)
	key := hex.EncodeToString(sum[:])
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Result)
	}

	res := c.analyze(ctx, fileBytes)
	if res.Success {
		c.cache.Set(key, res, gocache.DefaultExpiration)
	}
	return res
}

func (c *Client) analyze(ctx context.Context, fileBytes []byte) Result {
	body, err := json.Marshal(map[string]string{
		"base64Source": base64.StdEncoding.EncodeToString(fileBytes),
	})
	if err != nil {
		return failure("encode request: %v", err)
	}

	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s&outputContentFormat=text",
		c.endpoint, c.modelID, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failure("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return failure("document intelligence request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return failure("document intelligence returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return failure("document intelligence did not return an operation location")
	}

	return c.poll(ctx, opURL)
}

type analyzeResponse struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
		Pages   []struct {
			Words []struct {
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"pages"`
	} `json:"analyzeResult"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) poll(ctx context.Context, opURL string) Result {
	for i := 0; i < maxPolls; i++ {
		select {
		case <-ctx.Done():
			return failure("analysis cancelled: %v", ctx.Err())
		case <-time.After(c.pollEvery):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return failure("build poll request: %v", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return failure("poll failed: %v", err)
		}
		var ar analyzeResponse
		err = json.NewDecoder(resp.Body).Decode(&ar)
		resp.Body.Close()
		if err != nil {
			return failure("decode poll response: %v", err)
		}

		switch ar.Status {
		case "succeeded":
			return resultFrom(&ar)
		case "failed":
			return failure("analysis failed: %s %s", ar.Error.Code, ar.Error.Message)
		}
		// "running" / "notStarted": keep polling.
	}
	return failure("analysis timed out after %d polls", maxPolls)
}

func resultFrom(ar *analyzeResponse) Result {
	var sum float64
	var words int
	for _, p := range ar.AnalyzeResult.Pages {
		for _, w := range p.Words {
			sum += w.Confidence
			words++
		}
	}
	confidence := 0.0
	if words > 0 {
		confidence = math.Round(sum/float64(words)*10000) / 10000
	}
	return Result{
		Content:    ar.AnalyzeResult.Content,
		Confidence: confidence,
		PageCount:  len(ar.AnalyzeResult.Pages),
		Success:    true,
	}
}
