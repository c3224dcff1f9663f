package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/scenario"
	"threadpool/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Config はAPIサーバーの設定
type Config struct {
	Enabled bool   // 起動するかどうか
	Addr    string // 待ち受けアドレス
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Addr:    "127.0.0.1:9000",
	}
}

// statusInterval はWebSocketへのステータス配信間隔
const statusInterval = time.Second

// Server はAPIサーバー
type Server struct {
	addr     string
	pool     *worker.Pool
	bus      *events.Bus
	gatherer prometheus.Gatherer
	log      *logger.Logger

	mu           sync.RWMutex
	baseCtx      context.Context
	benchRunning bool
	benchName    string
	lastResult   *scenario.Result
	wsClients    map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string, pool *worker.Pool) *Server {
	return &Server{
		addr:      addr,
		pool:      pool,
		gatherer:  prometheus.DefaultGatherer,
		log:       logger.Current(),
		baseCtx:   context.Background(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// SetEventBus はWebSocketへ転送するイベントバスを設定する
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// SetGatherer は/metricsで公開するレジストリを設定する
func (s *Server) SetGatherer(g prometheus.Gatherer) {
	s.gatherer = g
}

// SetLogger はロガーを設定する
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/bench", s.handleBench)
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx がキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.runBackground(ctx)

	s.log.Info("api", "API Server starting on http://%s", ln.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runBackground はイベント転送とステータス配信を開始する
func (s *Server) runBackground(ctx context.Context) {
	if s.bus != nil {
		go s.forwardEvents(ctx, s.bus.Subscribe())
	}
	go s.broadcastLoop(ctx)
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Size         int    `json:"size"`
	Workers      []int  `json:"workers"`
	Busy         int    `json:"busy"`
	QueueLen     int    `json:"queue_len"`
	Stopped      bool   `json:"stopped"`
	BenchRunning bool   `json:"bench_running"`
	BenchName    string `json:"bench_name,omitempty"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	resp := StatusResponse{
		BenchRunning: s.benchRunning,
		BenchName:    s.benchName,
	}
	s.mu.RUnlock()

	if s.pool != nil {
		resp.Size = s.pool.Size()
		resp.Workers = s.pool.Workers()
		resp.Busy = s.pool.Busy()
		resp.QueueLen = s.pool.QueueLen()
		resp.Stopped = s.pool.Stopped()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var snap metrics.Snapshot
	if s.pool != nil {
		snap = s.pool.Metrics().Snapshot()
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil && s.pool.Stopped() {
		s.writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "stopped"})
		return
	}
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Workers     int    `json:"workers"`
	Jobs        int    `json:"jobs"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := scenario.ListPresets()
	presets := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        config.Name,
			Description: config.Description,
			Workers:     config.Workers,
			Jobs:        config.Jobs,
		})
	}

	s.writeJSON(w, presets)
}

// BenchRequest はベンチマーク開始リクエスト
type BenchRequest struct {
	Preset string `json:"preset"`
}

// BenchResponse はベンチマーク状態レスポンス
type BenchResponse struct {
	Running    bool             `json:"running"`
	Name       string           `json:"name,omitempty"`
	LastResult *scenario.Result `json:"last_result,omitempty"`
}

func (s *Server) handleBench(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		resp := BenchResponse{
			Running:    s.benchRunning,
			Name:       s.benchName,
			LastResult: s.lastResult,
		}
		s.mu.RUnlock()
		s.writeJSON(w, resp)
	case http.MethodPost:
		s.startBench(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) startBench(w http.ResponseWriter, r *http.Request) {
	var req BenchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown preset: %s", req.Preset), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.benchRunning {
		s.mu.Unlock()
		http.Error(w, "Bench already running", http.StatusConflict)
		return
	}
	s.benchRunning = true
	s.benchName = config.Name
	ctx := s.baseCtx
	s.mu.Unlock()

	engine := scenario.New(config)
	engine.SetLogger(s.log)

	// バックグラウンドで実行
	go func() {
		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.benchRunning = false
		s.benchName = ""
		if err == nil {
			s.lastResult = result
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error("api", "Bench failed: %v", err)
			return
		}
		s.log.Info("api", "Bench completed: %d jobs executed", result.Executed)

		s.broadcast(map[string]interface{}{
			"type":   "bench_complete",
			"result": result,
		})
	}()

	s.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started", "preset": config.Name})
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中のWebSocketクライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data interface{}) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はバスのイベントをWebSocketへ転送する
func (s *Server) forwardEvents(ctx context.Context, ch <-chan events.Event) {
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]interface{}{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ClientCount() == 0 {
				continue
			}
			s.broadcast(map[string]interface{}{
				"type":   "status",
				"status": s.status(),
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("api", "Failed to encode JSON: %v", err)
	}
}
