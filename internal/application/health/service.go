package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"farmdirect-backend/internal/domain"
	"farmdirect-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// GormPinger pings the pool behind a gorm handle.
type GormPinger struct{ DB *gorm.DB }

func (g *GormPinger) Ping() error {
	if g == nil || g.DB == nil {
		return nil
	}
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Collector gathers health data. Probes are optional external URLs (name -> url).
type Collector struct {
	Rdb    *redis.Client
	DB     DBPinger
	Stats  *gorm.DB
	Probes map[string]string
	Client *http.Client
}

// CollectResult is the shape of /health/json and the dashboard payload.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Marketplace  *MarketplaceInfo     `json:"marketplace,omitempty"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	Alloc    int `json:"alloc"`
	HeapUsed int `json:"heapUsed"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

// MarketplaceInfo is a snapshot of live marketplace volumes.
type MarketplaceInfo struct {
	ActiveProducts     int64 `json:"activeProducts"`
	OpenNegotiations   int64 `json:"openNegotiations"`
	PendingOrders      int64 `json:"pendingOrders"`
	ActiveCropListings int64 `json:"activeCropListings"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// Collect gathers health data from Redis, the optional DB, and the configured checks.
func (h *Collector) Collect(ctx context.Context) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbStatus := "disconnected"
	var dbPingMs *int64
	if h.DB != nil {
		start := time.Now()
		if err := h.DB.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPingMs = &ms
			dbStatus = "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPingMs}

	redisStatus := "disconnected"
	var redisPingMs *int64
	result.Traffic = TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()
	if h.Rdb != nil {
		start := time.Now()
		if err := h.Rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPingMs = &ms
			redisStatus = "connected"
			startTimeMs = h.traffic(ctx, &result.Traffic, startTimeMs)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPingMs}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptimeSec := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptimeSec < 0 {
		uptimeSec = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptimeSec,
		Memory:        MemoryInfo{Alloc: int(m.Alloc / 1024 / 1024), HeapUsed: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	if h.Stats != nil && dbStatus == "connected" {
		result.Marketplace = marketplace(h.Stats.WithContext(ctx))
	}

	for name, url := range h.Probes {
		ping := h.httpPing(url)
		status := "unreachable"
		if ping != nil {
			status = "reachable"
		}
		result.Dependencies[name] = DepStatus{Status: status, PingMs: ping}
	}

	if dbStatus == "connected" && redisStatus == "connected" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}

// traffic fills stats from the HealthMarker counters and returns the recorded start time.
func (h *Collector) traffic(ctx context.Context, stats *TrafficInfo, startTimeMs int64) int64 {
	totalReq, _ := h.Rdb.Get(ctx, middleware.KeyReqTotal).Result()
	totalErr, _ := h.Rdb.Get(ctx, middleware.KeyReqErrors).Result()
	totalTime, _ := h.Rdb.Get(ctx, middleware.KeyResTime).Result()
	resCount, _ := h.Rdb.Get(ctx, middleware.KeyResCount).Result()
	startTimeStr, _ := h.Rdb.Get(ctx, middleware.KeyStartTime).Result()
	lastReqStr, _ := h.Rdb.Get(ctx, middleware.KeyLastReq).Result()

	if startTimeStr != "" {
		if t, err := strconv.ParseInt(startTimeStr, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		h.Rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(totalReq)
	stats.FailedCount, _ = strconv.Atoi(totalErr)
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(totalTime, 64)
	countSum, _ := strconv.Atoi(resCount)
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if lastReqStr != "" {
		var lastReq map[string]interface{}
		_ = json.Unmarshal([]byte(lastReqStr), &lastReq)
		stats.LastRequest = lastReq
	}
	return startTimeMs
}

func marketplace(db *gorm.DB) *MarketplaceInfo {
	var out MarketplaceInfo
	db.Model(&domain.Product{}).Where("active = ?", true).Count(&out.ActiveProducts)
	db.Model(&domain.Negotiation{}).
		Where("status IN ?", []domain.NegotiationStatus{domain.NegotiationPending, domain.NegotiationCounter}).
		Count(&out.OpenNegotiations)
	db.Model(&domain.Order{}).Where("status = ?", domain.OrderPending).Count(&out.PendingOrders)
	db.Model(&domain.CropListing{}).Where("status = ?", domain.ListingActive).Count(&out.ActiveCropListings)
	return &out
}

func (h *Collector) httpPing(url string) *int64 {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	start := time.Now()
	resp, err := client.Get(url)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	ms := time.Since(start).Milliseconds()
	return &ms
}
