package server

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/worker"
)

//go:embed static/*.html
var staticFiles embed.FS

const (
	helloPage    = "hello.html"
	notFoundPage = "404.html"

	// requestBufferSize はリクエスト行を読む最大バイト数
	requestBufferSize = 1024

	statusOK       = "HTTP/1.1 200 OK"
	statusNotFound = "HTTP/1.1 404 NOT FOUND"
)

// Submitter はジョブを受け付けるプール
type Submitter interface {
	Submit(job worker.Job) error
}

// Config はServerの設定
type Config struct {
	Addr        string        // 待ち受けアドレス
	DocRoot     string        // ページのディレクトリ（空で埋め込みページ）
	MaxConns    int           // 受け付ける接続数の上限（0で無制限）
	Sleep       time.Duration // /sleep の待機時間
	ReadTimeout time.Duration // リクエスト行の読み込みタイムアウト
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:7878",
		MaxConns:    0,
		Sleep:       5 * time.Second,
		ReadTimeout: 5 * time.Second,
	}
}

// Server は接続ごとにプールへジョブを投入するTCPサーバー
type Server struct {
	config Config
	pool   Submitter
	pages  map[string][]byte
	log    *logger.Logger
	events *events.Bus

	mu       sync.Mutex
	listener net.Listener

	accepted atomic.Uint64
	served   atomic.Uint64
}

// New は新しいServerを作成する
// ページはここで読み込まれ、欠けている場合はエラーを返す
func New(config Config, pool Submitter) (*Server, error) {
	if pool == nil {
		return nil, errors.New("server: nil pool")
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if config.MaxConns < 0 {
		return nil, errors.Errorf("server: max_conns must be non-negative, got %d", config.MaxConns)
	}

	var pageFS fs.FS
	if config.DocRoot != "" {
		pageFS = os.DirFS(config.DocRoot)
	} else {
		sub, err := fs.Sub(staticFiles, "static")
		if err != nil {
			return nil, errors.Wrap(err, "server: embedded pages")
		}
		pageFS = sub
	}

	pages := make(map[string][]byte, 2)
	for _, name := range []string{helloPage, notFoundPage} {
		data, err := fs.ReadFile(pageFS, name)
		if err != nil {
			return nil, errors.Wrapf(err, "server: failed to read %s", name)
		}
		pages[name] = data
	}

	return &Server{
		config: config,
		pool:   pool,
		pages:  pages,
		log:    logger.Current(),
	}, nil
}

// SetEventBus はイベントバスを設定する
func (s *Server) SetEventBus(bus *events.Bus) {
	s.events = bus
}

// SetLogger はロガーを設定する
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l
}

// Listen は待ち受けを開始する。Serve前に呼ぶとAddrで実アドレスが取れる
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.Wrapf(err, "server: failed to listen on %s", s.config.Addr)
	}
	s.listener = l
	return nil
}

// Addr は待ち受けアドレスを返す。Listen前はnil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve は接続を受け付け、1接続を1ジョブとしてプールに投入する
// ctx のキャンセルか MaxConns 到達で nil を返す
// プールが停止済みの場合は worker.ErrPoolClosed をラップして返す
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	defer l.Close()
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	s.log.Info("server", "Listening on %s", l.Addr())

	for {
		if s.config.MaxConns > 0 && s.accepted.Load() >= uint64(s.config.MaxConns) {
			s.log.Info("server", "Accepted %d connections, shutting down.", s.accepted.Load())
			return nil
		}

		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "server: accept")
		}
		s.accepted.Add(1)

		if err := s.pool.Submit(func() { s.handleConnection(conn) }); err != nil {
			_ = conn.Close()
			return errors.Wrap(err, "server: submit connection")
		}
	}
}

// Accepted は受け付けた接続数を返す
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Served は応答済みの接続数を返す
func (s *Server) Served() uint64 {
	return s.served.Load()
}

// route はリクエスト行から応答を決める
func route(requestLine string) (status, page, path string, sleep bool) {
	switch requestLine {
	case "GET / HTTP/1.1\r\n":
		return statusOK, helloPage, "/", false
	case "GET /sleep HTTP/1.1\r\n":
		return statusOK, helloPage, "/sleep", true
	default:
		return statusNotFound, notFoundPage, "", false
	}
}

// handleConnection は1接続を処理する。ワーカー上で実行される
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	start := time.Now()

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.config.ReadTimeout))
	}

	// 読み込み失敗や長すぎる行は不明なリクエストとして404にする
	reader := bufio.NewReaderSize(conn, requestBufferSize)
	line, _ := reader.ReadSlice('\n')

	status, page, path, sleep := route(string(line))
	if sleep {
		time.Sleep(s.config.Sleep)
	}

	body := s.pages[page]
	response := fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n%s", status, len(body), body)
	if _, err := conn.Write([]byte(response)); err != nil {
		s.log.Warn("server", "Failed to write response to %s: %v", conn.RemoteAddr(), err)
		return
	}
	s.served.Add(1)

	elapsed := time.Since(start)
	code := 200
	if status == statusNotFound {
		code = 404
	}
	s.log.Zap().Debug("connection served",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.String("path", path),
		zap.Int("status", code),
		zap.Duration("elapsed", elapsed),
	)
	if s.events != nil {
		s.events.Publish(events.NewConnectionServedEvent(conn.RemoteAddr().String(), path, code, elapsed))
	}
}
