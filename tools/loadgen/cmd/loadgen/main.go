// Command loadgen drives synthetic traffic against a running backend.
// It logs in, then hammers the quota and OCR endpoints with a pool of
// harvested parameters: IDs returned by earlier requests are fed back
// into later ones, so the traffic shape resembles real client sessions
// rather than independent random calls.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/documind/tools/loadgen/internal/pool"
)

type options struct {
	baseURL  string
	username string
	password string
	workers  int
	duration time.Duration
	poolKind string
	shards   int
	ttl      time.Duration
	maxPer   int
}

func parseOptions() options {
	var o options
	flag.StringVar(&o.baseURL, "base", "http://localhost:8080", "server base URL")
	flag.StringVar(&o.username, "username", "admin", "login username")
	flag.StringVar(&o.password, "password", "admin123!", "login password")
	flag.IntVar(&o.workers, "workers", 8, "concurrent workers")
	flag.DurationVar(&o.duration, "duration", 30*time.Second, "how long to run")
	flag.StringVar(&o.poolKind, "pool", "sharded", "parameter pool implementation (simple|sharded)")
	flag.IntVar(&o.shards, "shards", 16, "shard count for the sharded pool (power of 2)")
	flag.DurationVar(&o.ttl, "ttl", 5*time.Minute, "TTL for pooled values")
	flag.IntVar(&o.maxPer, "max-per-type", 1000, "max pooled values per semantic type")
	flag.Parse()
	return o
}

func newPool(o options) pool.ParameterPool {
	cfg := pool.PoolConfig{
		DefaultTTL:       o.ttl,
		MaxValuesPerType: o.maxPer,
		EvictionPolicy:   pool.EvictionFIFO,
		CleanupInterval:  time.Minute,
		ShardCount:       o.shards,
	}
	if o.poolKind == "simple" {
		return pool.NewSimpleParameterPool(cfg)
	}
	return pool.NewShardedParameterPool(cfg)
}

// endpointStats aggregates outcomes per scenario.
type endpointStats struct {
	mu        sync.Mutex
	requests  map[string]int64
	failures  map[string]int64
	throttled map[string]int64
	latency   map[string]time.Duration
}

func newEndpointStats() *endpointStats {
	return &endpointStats{
		requests:  make(map[string]int64),
		failures:  make(map[string]int64),
		throttled: make(map[string]int64),
		latency:   make(map[string]time.Duration),
	}
}

func (s *endpointStats) record(name string, status int, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[name]++
	s.latency[name] += elapsed
	switch {
	case err != nil || status >= 500:
		s.failures[name]++
	case status == http.StatusTooManyRequests:
		// Quota exhaustion is an expected outcome under sustained load,
		// not a failure of the server.
		s.throttled[name]++
	}
}

func (s *endpointStats) print() {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.requests))
	for name := range s.requests {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\n--- request summary ---")
	for _, name := range names {
		n := s.requests[name]
		avg := time.Duration(0)
		if n > 0 {
			avg = s.latency[name] / time.Duration(n)
		}
		fmt.Printf("%-28s %6d reqs  %5d failed  %5d throttled  avg %s\n",
			name, n, s.failures[name], s.throttled[name], avg.Round(time.Microsecond))
	}
}

type client struct {
	http    *http.Client
	baseURL string
	params  pool.ParameterPool
	stats   *endpointStats
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// login authenticates and seeds the pool with the access token every
// worker will reuse.
func (c *client) login(ctx context.Context, username, password string) error {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return err
	}
	if data.AccessToken == "" {
		return fmt.Errorf("login response carried no access token")
	}

	token := pool.NewParameterValue(data.AccessToken, pool.SemanticTypeAccessToken, 0).
		WithSource("POST /auth/login", "$.data.access_token")
	_, err = c.params.Add(ctx, token)
	return err
}

func (c *client) bearer(ctx context.Context) (string, bool) {
	v, err := c.params.Get(ctx, pool.SemanticTypeAccessToken)
	if err != nil || v == nil {
		return "", false
	}
	return v.Value.(string), true
}

func (c *client) get(ctx context.Context, name, path string) {
	token, ok := c.bearer(ctx)
	if !ok {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.stats.record(name, 0, 0, err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.stats.record(name, 0, elapsed, err)
		return
	}
	defer resp.Body.Close()
	c.stats.record(name, resp.StatusCode, elapsed, nil)
}

// submitOCRJob uploads a tiny synthetic document and harvests the job
// ID and idempotency key back into the pool.
func (c *client) submitOCRJob(ctx context.Context, seq int64) {
	const name = "POST /ocr/jobs"
	token, ok := c.bearer(ctx)
	if !ok {
		return
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fmt.Sprintf("load-%d.txt", seq))
	if err != nil {
		c.stats.record(name, 0, 0, err)
		return
	}
	fmt.Fprintf(part, "synthetic document %d generated at %s\n", seq, time.Now().Format(time.RFC3339))
	_ = w.WriteField("language_hint", "en")
	if err := w.Close(); err != nil {
		c.stats.record(name, 0, 0, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/ocr/jobs", &buf)
	if err != nil {
		c.stats.record(name, 0, 0, err)
		return
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	idemKey := fmt.Sprintf("loadgen-%d-%d", time.Now().UnixNano(), seq)
	req.Header.Set("Idempotency-Key", idemKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.stats.record(name, 0, elapsed, err)
		return
	}
	defer resp.Body.Close()
	c.stats.record(name, resp.StatusCode, elapsed, nil)
	if resp.StatusCode != http.StatusCreated {
		return
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return
	}
	var data struct {
		Job struct {
			ID string `json:"id"`
		} `json:"job"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Job.ID == "" {
		return
	}

	jobID := pool.NewParameterValue(data.Job.ID, pool.SemanticTypeOCRJobID, 0).
		WithSource(name, "$.data.job.id")
	_, _ = c.params.Add(ctx, jobID)
	key := pool.NewParameterValue(idemKey, pool.SemanticTypeIdempotencyKey, 0).
		WithSource(name, "$.request.header.Idempotency-Key")
	_, _ = c.params.Add(ctx, key)
}

// getOCRJob re-reads a previously created job using an ID from the
// pool, falling back to the list endpoint when nothing is pooled yet.
func (c *client) getOCRJob(ctx context.Context) {
	v, err := c.params.GetRandom(ctx, pool.SemanticTypeOCRJobID)
	if err != nil || v == nil {
		c.get(ctx, "GET /ocr/jobs", "/api/v1/ocr/jobs?page=1&size=10")
		return
	}
	c.get(ctx, "GET /ocr/jobs/:id", "/api/v1/ocr/jobs/"+v.Value.(string))
}

func (c *client) runWorker(ctx context.Context, rng *rand.Rand, seq *counter) {
	for ctx.Err() == nil {
		switch n := rng.Intn(100); {
		case n < 35:
			c.get(ctx, "GET /tenants/current/quota", "/api/v1/tenants/current/quota")
		case n < 55:
			c.submitOCRJob(ctx, seq.next())
		case n < 80:
			c.getOCRJob(ctx)
		case n < 90:
			c.get(ctx, "GET .../usage/events", "/api/v1/tenants/current/usage/events?page=1&page_size=20")
		default:
			c.get(ctx, "GET .../usage/history", "/api/v1/tenants/current/usage/history")
		}
	}
}

type counter struct {
	mu sync.Mutex
	n  int64
}

func (c *counter) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

func printPoolStats(ctx context.Context, p pool.ParameterPool) {
	stats, err := p.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read pool stats: %v\n", err)
		return
	}
	fmt.Println("\n--- parameter pool ---")
	fmt.Printf("values: %d  adds: %d  hit rate: %.1f%%  evicted: %d  expired: %d\n",
		stats.TotalValues, stats.AddCount, stats.HitRate(), stats.EvictionCount, stats.ExpiredCount)
	types := make([]string, 0, len(stats.ValuesByType))
	for st := range stats.ValuesByType {
		types = append(types, string(st))
	}
	sort.Strings(types)
	for _, st := range types {
		fmt.Printf("  %-32s %d\n", st, stats.ValuesByType[pool.SemanticType(st)])
	}
}

func main() {
	opts := parseOptions()

	params := newPool(opts)
	defer params.Close()

	c := &client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: opts.baseURL,
		params:  params,
		stats:   newEndpointStats(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := c.login(ctx, opts.username, opts.password); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	fmt.Printf("running %d workers against %s for %s (%s pool)\n",
		opts.workers, opts.baseURL, opts.duration, opts.poolKind)

	var wg sync.WaitGroup
	seq := &counter{}
	for i := 0; i < opts.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			c.runWorker(runCtx, rng, seq)
		}(i)
	}
	wg.Wait()

	c.stats.print()
	printPoolStats(context.Background(), params)
}
