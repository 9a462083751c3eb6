// README: Smoke cases for the booking flow; includes HTTP, DB, Redis, Mongo, race and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roadside/internal/infra"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	mongo *mongo.Client

	// flow state shared by the ordered booking cases
	userID    string
	requestID string
	offers    []offerBody
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type offerBody struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

type createBody struct {
	ServiceRequestID string      `json:"serviceRequestId"`
	MechanicOffers   []offerBody `json:"mechanicOffers"`
}

type rankedBody struct {
	MechanicID string `json:"mechanicId"`
	Status     string `json:"status"`
}

type confirmBody struct {
	ServiceRequest struct {
		Status     string  `json:"status"`
		MechanicID *string `json:"mechanicId"`
	} `json:"serviceRequest"`
	ChatID string `json:"chatId"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 20 * time.Second},
		userID: "bench-user-" + uuid.NewString(),
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	if r.cfg.MongoURI != "" {
		if client, err := infra.NewMongo(ctx, r.cfg.MongoURI); err == nil {
			r.mongo = client
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.mongo != nil {
		_ = r.mongo.Disconnect(context.Background())
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: MongoDB connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.mongo == nil {
					return Result{Status: "FAIL", Note: "mongo not configured or unreachable"}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: approved mechanics indexed",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.mongo == nil {
					return Result{Status: "SKIP", Note: "mongo not configured"}
				}
				n, err := r.mongo.Database(r.cfg.MongoDatabase).Collection("mechanics").
					CountDocuments(ctx, bson.M{"approved": true, "serviceTypes": r.cfg.ServiceType})
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if n == 0 {
					return Result{Status: "FAIL", Note: "no approved " + r.cfg.ServiceType + " mechanics; run seed-mechanics"}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("count=%d", n)}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "API: health",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodGet, "/health", "", nil, nil, 200)
			},
		},
		{
			Name: "Auth: missing token -> 401",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodPost, "/booking/request", "", map[string]any{}, nil, 401)
			},
		},
		{
			Name: "Booking: missing fields -> 400",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodPost, "/booking/request", r.userID, map[string]any{}, nil, 400)
			},
		},
		{
			Name: "Booking: unknown service type -> 400",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodPost, "/booking/request", r.userID, map[string]any{
					"serviceType": "HELICOPTER",
					"latitude":    r.cfg.Latitude,
					"longitude":   r.cfg.Longitude,
				}, nil, 400)
			},
		},
		{
			Name: "Booking: initiate request",
			Run: func(ctx context.Context, r *Runner) Result {
				var out createBody
				res := r.expect(ctx, http.MethodPost, "/booking/request", r.userID, r.requestPayload(), &out, 201)
				if res.Status != "PASS" {
					return res
				}
				if out.ServiceRequestID == "" || len(out.MechanicOffers) == 0 {
					return Result{Status: "FAIL", Latency: res.Latency, Note: "empty request id or offers"}
				}
				r.requestID = out.ServiceRequestID
				r.offers = out.MechanicOffers
				res.Note = fmt.Sprintf("offers=%d", len(out.MechanicOffers))
				return res
			},
		},
		{
			Name: "Booking: owner reads request",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.requestID == "" {
					return Result{Status: "SKIP", Note: "no request"}
				}
				var out struct {
					Status string `json:"status"`
				}
				res := r.expect(ctx, http.MethodGet, "/booking/request/"+r.requestID, r.userID, nil, &out, 200)
				if res.Status == "PASS" && out.Status != "REQUESTED" {
					return Result{Status: "FAIL", Note: "status=" + out.Status}
				}
				return res
			},
		},
		{
			Name: "Booking: other caller reads request -> 404",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.requestID == "" {
					return Result{Status: "SKIP", Note: "no request"}
				}
				return r.expect(ctx, http.MethodGet, "/booking/request/"+r.requestID, "bench-intruder", nil, nil, 404)
			},
		},
		{
			Name: "Booking: non-mechanic respond -> 403",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.requestID == "" {
					return Result{Status: "SKIP", Note: "no request"}
				}
				return r.expect(ctx, http.MethodPost, "/booking/mechanic/response", r.userID, map[string]any{
					"serviceRequestId": r.requestID,
					"accepted":         true,
				}, nil, 403)
			},
		},
		{
			Name: "Booking: confirm before acceptance -> 400",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				return r.expect(ctx, http.MethodPost, "/booking/confirm", r.userID, map[string]any{
					"serviceRequestId": r.requestID,
					"mechanicId":       r.offers[0].ID,
				}, nil, 400)
			},
		},
		{
			Name: "Booking: mechanic accepts",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				return r.respond(ctx, r.offers[0].ID, r.requestID, true, 200)
			},
		},
		{
			Name: "Booking: mechanic responds twice -> 409",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				return r.respond(ctx, r.offers[0].ID, r.requestID, false, 409)
			},
		},
		{
			Name: "Booking: accepted mechanic ranked first",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				var out []rankedBody
				res := r.expect(ctx, http.MethodGet, "/booking/request/"+r.requestID+"/mechanics", r.userID, nil, &out, 200)
				if res.Status != "PASS" {
					return res
				}
				if len(out) != len(r.offers) {
					return Result{Status: "FAIL", Note: fmt.Sprintf("ranked=%d offers=%d", len(out), len(r.offers))}
				}
				if out[0].MechanicID != r.offers[0].ID || out[0].Status != "CONFIRMED" {
					return Result{Status: "FAIL", Note: fmt.Sprintf("first=%s/%s", out[0].MechanicID, out[0].Status)}
				}
				return res
			},
		},
		{
			Name: "Booking: confirm mechanic",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				var out confirmBody
				res := r.expect(ctx, http.MethodPost, "/booking/confirm", r.userID, map[string]any{
					"serviceRequestId": r.requestID,
					"mechanicId":       r.offers[0].ID,
				}, &out, 200)
				if res.Status != "PASS" {
					return res
				}
				if out.ChatID == "" || out.ServiceRequest.Status != "CONFIRMED" {
					return Result{Status: "FAIL", Note: fmt.Sprintf("chat=%q status=%s", out.ChatID, out.ServiceRequest.Status)}
				}
				return res
			},
		},
		{
			Name: "Booking: confirm twice -> 409",
			Run: func(ctx context.Context, r *Runner) Result {
				if len(r.offers) == 0 {
					return Result{Status: "SKIP", Note: "no offers"}
				}
				return r.expect(ctx, http.MethodPost, "/booking/confirm", r.userID, map[string]any{
					"serviceRequestId": r.requestID,
					"mechanicId":       r.offers[0].ID,
				}, nil, 409)
			},
		},
		{
			Name: "Consistency: one chat per confirmed request",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil || r.requestID == "" {
					return Result{Status: "SKIP", Note: "db or request missing"}
				}
				var status string
				var mechanicID *string
				var chats int
				err := r.db.QueryRow(ctx, `
					SELECT sr.status, sr.mechanic_id,
						   (SELECT COUNT(*) FROM chats c WHERE c.service_request_id = sr.id)
					FROM service_requests sr WHERE sr.id = $1`, r.requestID).Scan(&status, &mechanicID, &chats)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != "CONFIRMED" || mechanicID == nil || chats != 1 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%s chats=%d", status, chats)}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Cache: route estimates stored in Redis",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				keys, _, err := r.redis.Scan(ctx, 0, "routing:route:*", 100).Result()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if len(keys) == 0 {
					return Result{Status: "FAIL", Note: "no cached routes"}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("keys>=%d", len(keys))}
			},
		},
		{
			Name: "Concurrency: same mechanic responds in parallel",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentRespond(ctx, r)
			},
		},
		{
			Name: "Perf: initiate request throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, "/booking/request", r.requestPayload())
			},
		},
	}
}

func (r *Runner) requestPayload() map[string]any {
	return map[string]any{
		"serviceType": r.cfg.ServiceType,
		"latitude":    r.cfg.Latitude,
		"longitude":   r.cfg.Longitude,
		"description": "bench smoke request",
	}
}

func (r *Runner) token(uid, role string) (string, error) {
	if r.cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt-secret not set")
	}
	return infra.IssueToken(r.cfg.JWTSecret, r.cfg.JWTIssuer, uid, role, 10*time.Minute)
}

// do sends one request; an empty uid sends no Authorization header.
func (r *Runner) do(ctx context.Context, method, path, uid, role string, body any) (*http.Response, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		tok, err := r.token(uid, role)
		if err != nil {
			return nil, nil, 0, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp, data, time.Since(start), err
}

func (r *Runner) expect(ctx context.Context, method, path, uid string, body, out any, want int) Result {
	return r.expectAs(ctx, method, path, uid, "", body, out, want)
}

func (r *Runner) expectAs(ctx context.Context, method, path, uid, role string, body, out any, want int) Result {
	resp, data, latency, err := r.do(ctx, method, path, uid, role, body)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if resp.StatusCode != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d body=%s", resp.StatusCode, truncate(data, 160))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return Result{Status: "FAIL", Latency: latency, Note: "decode: " + err.Error()}
		}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
}

func (r *Runner) respond(ctx context.Context, mechanicID, requestID string, accepted bool, want int) Result {
	return r.expectAs(ctx, http.MethodPost, "/booking/mechanic/response", mechanicID, "mechanic", map[string]any{
		"serviceRequestId": requestID,
		"accepted":         accepted,
	}, nil, want)
}

// concurrentRespond opens a fresh request and lets its first mechanic answer
// from many goroutines at once; exactly one answer may win.
func concurrentRespond(ctx context.Context, r *Runner) Result {
	var created createBody
	res := r.expect(ctx, http.MethodPost, "/booking/request", "bench-race-"+uuid.NewString(), r.requestPayload(), &created, 201)
	if res.Status != "PASS" {
		return res
	}
	if len(created.MechanicOffers) == 0 {
		return Result{Status: "FAIL", Note: "no offers"}
	}
	mechanicID := created.MechanicOffers[0].ID

	wg := sync.WaitGroup{}
	mu := sync.Mutex{}
	succ, conflict, other := 0, 0, 0
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _, _, err := r.do(ctx, http.MethodPost, "/booking/mechanic/response", mechanicID, "mechanic", map[string]any{
				"serviceRequestId": created.ServiceRequestID,
				"accepted":         i%2 == 0,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other++
			case resp.StatusCode == http.StatusOK:
				succ++
			case resp.StatusCode == http.StatusConflict:
				conflict++
			default:
				other++
			}
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", succ, conflict, other)
	if succ == 1 && other == 0 {
		return Result{Status: "PASS", Note: note}
	}
	return Result{Status: "FAIL", Note: note}
}

func perfLoad(ctx context.Context, r *Runner, path string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("bench-perf-%d", i)
			for time.Now().Before(end) && ctx.Err() == nil {
				resp, _, _, err := r.do(ctx, http.MethodPost, path, uid, "", payload)
				mu.Lock()
				if err != nil || resp.StatusCode >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("no requests completed errors=%d", errCount)}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
