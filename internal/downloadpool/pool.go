// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package downloadpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/vidsync/vidsync/internal/log"
)

// ErrNoHealthyInstance is returned when every worker instance has died and
// the caller should fall back to a single-connection HTTP path.
var ErrNoHealthyInstance = errors.New("downloadpool: no healthy instance available")

// Config configures the pool at construction time.
type Config struct {
	BinaryPath              string
	TotalThreads            int
	MaxConnectionsPerServer int
	Split                   int
	HealthCheckInterval     time.Duration
}

// Pool manages a fleet of aria2c worker instances and load-balances task
// submissions across the live set, per spec §4.4.
type Pool struct {
	cfg Config

	mu        sync.Mutex
	instances []*instance
	nextID    int

	supervisor *suture.Supervisor
	cancel     context.CancelFunc
}

// New sweeps stray daemons of the same binary name, computes the instance
// count and per-instance thread budget from cfg.TotalThreads, and launches
// every instance under a suture supervisor tree so a crashed child is
// restarted independently of the health-check poll.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 10 * time.Second
	}

	sweepStrayProcesses(cfg.BinaryPath)

	count := InstanceCount(cfg.TotalThreads)
	threads := ThreadsPerInstance(cfg.TotalThreads, count)

	supCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		cfg:        cfg,
		supervisor: suture.New("downloadpool", suture.Spec{}),
		cancel:     cancel,
	}

	for i := 0; i < count; i++ {
		inst, err := spawnInstance(ctx, i, instanceOptions{
			BinaryPath:              cfg.BinaryPath,
			MaxConnectionsPerServer: cfg.MaxConnectionsPerServer,
			Split:                   cfg.Split,
		}, threads)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("spawn instance %d: %w", i, err)
		}
		p.instances = append(p.instances, inst)
		p.nextID = i + 1
		p.supervisor.Add(&instanceWatchdog{pool: p, id: inst.id})
	}

	p.writePIDFile()

	go p.supervisor.Serve(supCtx)
	go p.healthCheckLoop(supCtx)

	return p, nil
}

// pidFilePath is where the live instance set's PIDs are recorded so the
// next startup's stray sweep can find them even after an unclean exit.
func (p *Pool) pidFilePath() string {
	return p.cfg.BinaryPath + ".pool.pid"
}

func (p *Pool) writePIDFile() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	for _, inst := range p.instances {
		fmt.Fprintln(&buf, inst.cmd.Process.Pid)
	}
	if err := os.WriteFile(p.pidFilePath(), buf.Bytes(), 0o600); err != nil {
		log.WithComponent("downloadpool").Warn().Err(err).Msg("failed to write pool pid file")
	}
}

// sweepStrayProcesses best-effort kills any leftover daemon from a previous
// run before launching new instances, per spec §4.4 step 2.
func sweepStrayProcesses(binaryPath string) {
	pids, err := listProcessesByName(binaryPath)
	if err != nil {
		log.WithComponent("downloadpool").Warn().Err(err).Msg("stray process sweep failed")
		return
	}
	for _, pid := range pids {
		if err := killStray(pid); err != nil {
			log.WithComponent("downloadpool").Warn().Int("pid", pid).Err(err).Msg("failed to kill stray process")
		}
	}
}

// listProcessesByName is a conservative best-effort stray scan: without a
// portable process-table library in the dependency set, it only checks the
// well-known PID file written by the previous pool instance set, if present.
func listProcessesByName(binaryPath string) ([]int, error) {
	pidFile := binaryPath + ".pool.pid"
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var pids []int
	for _, line := range strings.Fields(string(data)) {
		var pid int
		if _, err := fmt.Sscanf(line, "%d", &pid); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// instanceWatchdog adapts one pool instance to suture.Service: it blocks
// until the underlying process dies, then returns so suture restarts it by
// re-invoking Serve (which respawns a replacement instance in place).
type instanceWatchdog struct {
	pool *Pool
	id   int
}

func (w *instanceWatchdog) String() string { return fmt.Sprintf("aria2-instance-%d", w.id) }

func (w *instanceWatchdog) Serve(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			inst := w.pool.findInstance(w.id)
			if inst == nil || !inst.alive() {
				w.pool.respawn(ctx, w.id)
				return fmt.Errorf("instance %d died, restarting", w.id)
			}
		}
	}
}

func (p *Pool) findInstance(id int) *instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, inst := range p.instances {
		if inst.id == id {
			return inst
		}
	}
	return nil
}

// respawn replaces a dead instance in place with a freshly launched one,
// preserving its id and thread budget.
func (p *Pool) respawn(ctx context.Context, id int) {
	p.mu.Lock()
	var threads int
	idx := -1
	for i, inst := range p.instances {
		if inst.id == id {
			threads = inst.threads
			idx = i
			break
		}
	}
	p.mu.Unlock()
	if idx < 0 {
		return
	}

	inst, err := spawnInstance(ctx, id, instanceOptions{
		BinaryPath:              p.cfg.BinaryPath,
		MaxConnectionsPerServer: p.cfg.MaxConnectionsPerServer,
		Split:                   p.cfg.Split,
	}, threads)
	if err != nil {
		log.WithComponent("downloadpool").Error().Int("instance", id).Err(err).Msg("failed to respawn instance")
		return
	}

	p.mu.Lock()
	p.instances[idx] = inst
	p.mu.Unlock()
}

// healthCheckLoop periodically removes dead instances from the live set.
// check_process_status from spec §4.4: replacement happens via the suture
// watchdog goroutine above, not here — this loop only prunes.
func (p *Pool) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pruneDead()
		}
	}
}

func (p *Pool) pruneDead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	live := p.instances[:0]
	for _, inst := range p.instances {
		if inst.alive() {
			live = append(live, inst)
		} else {
			log.WithComponent("downloadpool").Warn().Int("instance", inst.id).Msg("removing dead instance from live set")
		}
	}
	p.instances = live
}

// leastLoaded returns the healthy instance with the smallest current load,
// ties broken by iteration order (arbitrary per spec §4.4).
func (p *Pool) leastLoaded() *instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *instance
	for _, inst := range p.instances {
		if !inst.alive() {
			continue
		}
		if best == nil || inst.currentLoad() < best.currentLoad() {
			best = inst
		}
	}
	return best
}

// contentLength issues a HEAD request to discover the remote file size used
// by the file-size-aware thread tuning table.
func contentLength(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.ContentLength, nil
}

// FetchWithFallback submits urls to the least-loaded healthy instance,
// polls its status at 1Hz, and returns once the task reaches a terminal
// state. On complete, it verifies targetPath exists before returning nil.
func (p *Pool) FetchWithFallback(ctx context.Context, urls []string, targetPath string) error {
	inst := p.leastLoaded()
	if inst == nil {
		return ErrNoHealthyInstance
	}

	threads := inst.threads
	if len(urls) > 0 {
		if size, err := contentLength(ctx, urls[0]); err == nil && size > 0 {
			threads = ThreadsForFileSize(inst.threads, size, p.cfg.TotalThreads)
		}
	}

	options := map[string]string{
		"dir":   filepath.Dir(targetPath),
		"out":   filepath.Base(targetPath),
		"split": fmt.Sprint(threads),
	}

	inst.incrLoad()
	defer inst.decrLoad()

	gid, err := inst.client.AddURI(ctx, urls, options)
	if err != nil {
		return fmt.Errorf("submit task: %w", err)
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := inst.client.TellStatus(ctx, gid)
			if err != nil {
				return fmt.Errorf("poll task status: %w", err)
			}
			if !status.IsTerminal() {
				continue
			}
			switch status.Status {
			case "complete":
				if _, err := os.Stat(targetPath); err != nil {
					return fmt.Errorf("task reported complete but file missing: %w", err)
				}
				return nil
			default:
				return fmt.Errorf("task %s: %s", gid, status.ErrorMessage)
			}
		}
	}
}

// Shutdown gracefully tears down every instance: RPC shutdown, 1s grace
// period, then kill, followed by an OS-level sweep for stragglers.
func (p *Pool) Shutdown(ctx context.Context) {
	p.cancel()

	p.mu.Lock()
	instances := append([]*instance(nil), p.instances...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(inst *instance) {
			defer wg.Done()
			inst.shutdown(ctx)
		}(inst)
	}
	wg.Wait()

	_ = os.Remove(p.pidFilePath())
	sweepStrayProcesses(p.cfg.BinaryPath)
}
