// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package downloadpool

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/alessio/shellescape"

	"github.com/vidsync/vidsync/internal/log"
)

// instanceOptions configures one aria2c child process.
type instanceOptions struct {
	BinaryPath string
	MaxConnectionsPerServer int
	Split                   int
}

// instance is one live aria2c worker: its process handle, RPC client, and
// load counter. Exported methods are safe for concurrent use.
type instance struct {
	id       int
	cmd      *exec.Cmd
	client   *rpcClient
	threads  int
	endpoint string

	mu   sync.Mutex
	load int
}

// randomToken returns a hex-encoded random per-instance RPC auth token.
func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// freePort binds a transient listener to find an available TCP port, then
// releases it immediately for aria2c to bind.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// spawnInstance launches one aria2c child bound to a fresh port and random
// token, then probes aria2.getVersion for up to 5s before returning.
//
// The port and token values are run through shellescape even though
// exec.Command takes an argv slice with no shell involved: the token ends up
// in process-listing output verbatim, and escaping keeps that output
// copy-pastable without quoting surprises. No download URL is part of this
// argv, and the argv itself is not logged; the readiness log line records
// only the instance id, port and thread count.
func spawnInstance(ctx context.Context, id int, opts instanceOptions, threads int) (*instance, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("allocate rpc port: %w", err)
	}
	token, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate rpc token: %w", err)
	}

	args := []string{
		"--enable-rpc=true",
		"--rpc-listen-port=" + shellescape.Quote(fmt.Sprint(port)),
		"--rpc-secret=" + shellescape.Quote(token),
		"--rpc-listen-all=false",
		fmt.Sprintf("--max-connection-per-server=%d", opts.MaxConnectionsPerServer),
		fmt.Sprintf("--split=%d", opts.Split),
		fmt.Sprintf("--max-concurrent-downloads=%d", threads),
	}

	cmd := exec.CommandContext(ctx, opts.BinaryPath, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start aria2c: %w", err)
	}

	endpoint := fmt.Sprintf("http://127.0.0.1:%d/jsonrpc", port)
	client := newRPCClient(endpoint, token)

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var lastErr error
	for {
		if _, err := client.GetVersion(probeCtx); err == nil {
			break
		} else {
			lastErr = err
		}
		select {
		case <-probeCtx.Done():
			_ = cmd.Process.Kill()
			return nil, fmt.Errorf("instance %d did not become ready: %w", id, lastErr)
		case <-time.After(100 * time.Millisecond):
		}
	}

	log.WithComponent("downloadpool").Info().Int("instance", id).Int("port", port).Int("threads", threads).Msg("aria2 instance ready")

	return &instance{id: id, cmd: cmd, client: client, threads: threads, endpoint: endpoint}, nil
}

// alive reports whether the child process has not exited.
func (i *instance) alive() bool {
	if i.cmd.ProcessState != nil {
		return false
	}
	return processAlive(i.cmd.Process.Pid)
}

func (i *instance) incrLoad() {
	i.mu.Lock()
	i.load++
	i.mu.Unlock()
}

func (i *instance) decrLoad() {
	i.mu.Lock()
	if i.load > 0 {
		i.load--
	}
	i.mu.Unlock()
}

func (i *instance) currentLoad() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.load
}

// shutdown performs the graceful-then-forceful teardown from spec §4.4: RPC
// shutdown, wait 1s, then kill.
func (i *instance) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = i.client.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		_ = i.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		_ = i.cmd.Process.Kill()
		<-done
	}
}
