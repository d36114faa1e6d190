// wsxfer: CLI entry point.
//
// This tool moves files between two machines over a single WebSocket, or over
// a WebRTC DataChannel negotiated through that WebSocket. The sender listens
// and prints a PIN; the receiver dials with it and accepts every offered file.
//
//	wsxfer send [flags] FILE...
//	wsxfer recv -url ws://host:port [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"

	"github.com/1ureka/wsxfer/internal/config"
	"github.com/1ureka/wsxfer/internal/signaling"
	"github.com/1ureka/wsxfer/internal/transfer"
	"github.com/1ureka/wsxfer/internal/transport"
	"github.com/1ureka/wsxfer/internal/util"
)

var version = "dev"

const (
	pinLength     = 6
	statsInterval = 5 * time.Second
)

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	role := config.Role(os.Args[1])
	cfg, count, args, err := parseFlags(role, os.Args[2:])
	if err != nil {
		util.LogError("%v", err)
		os.Exit(2)
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("wsxfer v%s", version))
	pterm.Println()

	switch cfg.Role {
	case config.RoleSend:
		if len(args) == 0 {
			util.LogError("nothing to send: pass at least one FILE")
			os.Exit(2)
		}
		err = runSend(ctx, cfg, args)
	case config.RoleRecv:
		err = runRecv(ctx, cfg, count)
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  wsxfer send [-config f] [-listen addr] [-pin p] [-transport ws|webrtc] [-timeout d] [-debug] FILE...")
	fmt.Fprintln(os.Stderr, "  wsxfer recv [-config f] -url ws://host:port [-pin p] [-out dir] [-count n] [-transport ws|webrtc] [-timeout d] [-debug]")
}

// parseFlags layers Default, then -config, then explicitly set flags. count
// is the recv-only transfer limit; 0 means until the sender leaves.
func parseFlags(role config.Role, argv []string) (cfg config.Config, count int, args []string, err error) {
	fs := flag.NewFlagSet("wsxfer "+string(role), flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file")
	listen := fs.String("listen", "", "signaling listen address (send)")
	wsURL := fs.String("url", "", "signaling URL, e.g. ws://192.168.1.20:8080 (recv)")
	pin := fs.String("pin", "", "PIN; generated when sending without one")
	kind := fs.String("transport", "", "ws or webrtc")
	timeout := fs.Duration("timeout", 0, "idle timeout per transfer")
	outDir := fs.String("out", "", "destination directory (recv)")
	fs.IntVar(&count, "count", 0, "exit after this many transfers (recv)")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(argv); err != nil {
		return config.Config{}, 0, nil, err
	}

	cfg = config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return config.Config{}, 0, nil, err
		}
	}
	cfg.Role = role

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "url":
			cfg.URL = *wsURL
		case "pin":
			cfg.PIN = *pin
		case "transport":
			cfg.Transport = config.TransportKind(*kind)
		case "timeout":
			cfg.Timeout = *timeout
		case "out":
			cfg.OutDir = *outDir
		case "debug":
			cfg.Debug = *debug
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, 0, nil, err
	}
	return cfg, count, fs.Args(), nil
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runSend serves one receiver and sends each file in turn.
func runSend(ctx context.Context, cfg config.Config, files []string) error {
	pin := cfg.PIN
	if pin == "" {
		pin = signaling.GeneratePIN(pinLength)
	}

	srv := signaling.NewServer(pin, cfg.Listen)
	port, err := srv.Start()
	if err != nil {
		return err
	}
	defer srv.Close()

	pterm.DefaultBox.WithTitle("wsxfer signaling").Println(
		fmt.Sprintf("Port      : %d\nPIN       : %s\nTransport : %s", port, pin, cfg.Transport))
	pterm.Println()
	util.LogInfo("waiting for the receiver to connect...")

	ws, err := srv.WaitForClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for receiver: %w", err)
	}
	srv.Close()

	conn, closer, err := openConn(ctx, cfg, ws, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	util.StartStatsReporter(ctx, statsInterval)
	util.LogSuccess("receiver connected over %s", cfg.Transport)

	mux := transfer.NewMux(conn)
	failed := 0
	for _, path := range files {
		if err := sendOne(ctx, cfg, mux, path); err != nil {
			util.LogError("%s: %v", path, err)
			failed++
			if ctx.Err() != nil {
				break
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", failed, len(files))
	}
	return nil
}

func sendOne(ctx context.Context, cfg config.Config, mux *transfer.Mux, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	bar, err := pterm.DefaultProgressbar.
		WithTotal(int(info.Size())).
		WithTitle(filepath.Base(path)).
		Start()
	if err != nil {
		util.LogDebug("progress bar unavailable: %v", err)
		bar = nil
	}
	var shown int64

	opts := transfer.SendOptions{Options: cfg.TransferOptions(), ChunkSize: cfg.ChunkSize}
	opts.Progress = func(p transfer.Progress) {
		if bar != nil {
			bar.Add(int(p.Loaded - shown))
		}
		shown = p.Loaded
	}

	_, err = mux.SendFile(ctx, path, opts)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return err
	}
	util.LogSuccess("sent %s (%s)", filepath.Base(path), strings.TrimSpace(util.FormatBytes(float64(info.Size()))))
	return nil
}

// runRecv dials the sender and accepts every offer into cfg.OutDir.
func runRecv(ctx context.Context, cfg config.Config, count int) error {
	if cfg.URL == "" {
		return fmt.Errorf("missing -url for recv")
	}
	wsURL, err := signalingURL(cfg.URL, cfg.PIN)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	util.LogInfo("connecting to %s ...", cfg.URL)
	ws, err := signaling.Connect(ctx, wsURL)
	if err != nil {
		return err
	}

	conn, closer, err := openConn(ctx, cfg, ws, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	util.StartStatsReporter(ctx, statsInterval)
	util.LogSuccess("connected over %s, waiting for files", cfg.Transport)

	tr := newTracker(count)
	mux := transfer.NewMux(conn)
	detach := mux.Listen(func(o transfer.Offer) {
		if !tr.begin() {
			util.TransferLog(o.ID).Debug("offer after shutdown, ignoring")
			return
		}
		go func() {
			dst := filepath.Join(cfg.OutDir, sanitizeName(o.Meta.Filename, o.ID))
			opts := o.ReceiveOptions()
			opts.Options = cfg.TransferOptions()
			_, err := mux.ReceiveFile(ctx, dst, opts)
			if err != nil {
				util.LogError("%s: %v", dst, err)
			} else {
				util.LogSuccess("received %s (%s)", dst, strings.TrimSpace(util.FormatBytes(float64(o.Meta.Size))))
			}
			tr.end(err)
		}()
	})

	select {
	case <-tr.allDone:
	case <-conn.Done():
		util.LogInfo("sender closed the connection")
	case <-ctx.Done():
	}
	detach()
	finished, failed := tr.shutdown()

	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed", failed, finished)
	}
	return nil
}

// tracker counts receives and lets runRecv wait for the ones in flight.
// Offers that race with shutdown are refused instead of joining the wait.
type tracker struct {
	wg      sync.WaitGroup
	allDone chan struct{} // closed when limit receives have finished

	mu       sync.Mutex
	limit    int
	finished int
	failed   int
	stopped  bool
}

func newTracker(limit int) *tracker {
	return &tracker{limit: limit, allDone: make(chan struct{})}
}

// begin reserves a slot for one receive. It reports false after shutdown.
func (t *tracker) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.wg.Add(1)
	return true
}

func (t *tracker) end(err error) {
	defer t.wg.Done()
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.failed++
	}
	t.finished++
	if t.limit > 0 && t.finished == t.limit {
		close(t.allDone)
	}
}

// shutdown refuses further receives, waits for the running ones and returns
// the totals.
func (t *tracker) shutdown() (finished, failed int) {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished, t.failed
}

// openConn returns the transfer connection for an authenticated WebSocket,
// upgrading it to a WebRTC DataChannel when configured.
func openConn(ctx context.Context, cfg config.Config, ws *websocket.Conn, offerer bool) (transfer.Conn, io.Closer, error) {
	if cfg.Transport == config.TransportWS {
		c := transport.NewWebSocket(ws, cfg.Timeout)
		return c, c, nil
	}

	establish := signaling.EstablishAsAnswerer
	if offerer {
		establish = signaling.EstablishAsOfferer
	}
	peer, err := establish(ctx, ws, cfg.ICEServers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish WebRTC: %w", err)
	}
	return peer, peer, nil
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// signalingURL validates raw and returns the /ws endpoint carrying pin.
func signalingURL(raw, pin string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "ws"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "wss"
	}
	q := url.Values{}
	if pin == "" {
		pin = u.Query().Get("pin")
	}
	q.Set("pin", pin)
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: signaling.Path, RawQuery: q.Encode()}).String(), nil
}

// sanitizeName reduces an offered filename to a single safe path element,
// falling back to "<id>.bin".
func sanitizeName(name string, id uint32) string {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	switch name {
	case "", ".", "..", "/":
		return fmt.Sprintf("%08x.bin", id)
	}
	return name
}
