// opbus hosts a host/guest operation bus: a shared-memory record queue, a
// resource table of host-owned streams, and a dispatcher that routes drained
// records to op handlers (read, write, fetch, run/run_status/kill,
// resources, get_random_values, format_error, apply_source_map).
//
// Startup sequence:
//  1. Initialize the logger and load configuration (JSON file or defaults).
//  2. Load the permission policy and proxy list (optional).
//  3. Select the fingerprint profile (optional) and initialize metrics.
//  4. Allocate the shared queue and resource table; install stdin/stdout/
//     stderr at handles 0/1/2; start the worker pool.
//  5. Build the dispatcher and register every op handler.
//  6. Start the inspector HTTP server (optional).
//  7. Run the drain loop, pumping queued records to their handlers.
//  8. Block until OS signals SIGINT or SIGTERM, then perform a clean
//     shutdown.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arfaz/opbus/bus/dispatch"
	"github.com/arfaz/opbus/bus/permission"
	"github.com/arfaz/opbus/bus/queue"
	"github.com/arfaz/opbus/bus/reslock"
	"github.com/arfaz/opbus/bus/resource"
	"github.com/arfaz/opbus/bus/stream"
	"github.com/arfaz/opbus/bus/timer"
	"github.com/arfaz/opbus/config"
	"github.com/arfaz/opbus/httpclient"
	"github.com/arfaz/opbus/inspector"
	"github.com/arfaz/opbus/logger"
	"github.com/arfaz/opbus/metrics"
	"github.com/arfaz/opbus/ops"
	"github.com/arfaz/opbus/proxy"
	"github.com/arfaz/opbus/schema"
	"github.com/arfaz/opbus/worker"
)

// Numeric op ids. Stable across the process lifetime; the guest and host
// must agree on this table out of band (it is not negotiated over the
// bus itself).
const (
	opRead            uint32 = 1
	opWrite           uint32 = 2
	opFetch           uint32 = 3
	opRun             uint32 = 4
	opRunStatus       uint32 = 5
	opKill            uint32 = 6
	opResources       uint32 = 7
	opGetRandomValues uint32 = 8
	opFormatError     uint32 = 9
	opApplySourceMap  uint32 = 10
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional; uses defaults if omitted)")
	inspectorAddr := flag.String("inspector", "", "Address for the introspection HTTP server, overrides config (e.g. :8090)")
	flag.Parse()

	log := logger.New(logger.LevelInfo)
	log.Info("opbus starting up")

	// ── Configuration ──────────────────────────────────────────────────────
	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			log.Errorf("failed to load config from %q: %v", *configFile, err)
			os.Exit(1)
		}
		log.Infof("configuration loaded from %q", *configFile)
	} else {
		cfg = config.DefaultConfig()
		log.Info("using default configuration")
	}
	if *inspectorAddr != "" {
		cfg.InspectorAddr = *inspectorAddr
	}

	// ── Permission policy ──────────────────────────────────────────────────
	var policy *permission.Policy
	if cfg.PermissionFile != "" {
		var err error
		policy, err = permission.LoadFile(cfg.PermissionFile)
		if err != nil {
			log.Errorf("failed to load permission policy from %q: %v", cfg.PermissionFile, err)
			os.Exit(1)
		}
		log.Infof("permission policy loaded from %q", cfg.PermissionFile)
	} else {
		policy = permission.Default()
		log.Info("using default (permissive) permission policy")
	}

	// ── Proxy manager ──────────────────────────────────────────────────────
	pm := &proxy.ProxyManager{}
	if cfg.ProxyFile != "" {
		if err := pm.LoadProxies(cfg.ProxyFile); err != nil {
			log.Errorf("failed to load proxies from %q: %v", cfg.ProxyFile, err)
			os.Exit(1)
		}
		log.Infof("loaded %d proxies from %q", pm.Count(), cfg.ProxyFile)
	} else {
		log.Info("no proxy file configured; fetch will connect directly")
	}

	// ── Fingerprint profile ────────────────────────────────────────────────
	var profile *httpclient.Profile
	switch cfg.ImpersonationProfile {
	case "chrome":
		profile = httpclient.ChromeProfile()
	case "firefox":
		profile = httpclient.FirefoxProfile()
	case "":
		// no impersonation; fetch uses the stdlib transport shape
	default:
		log.Errorf("unknown impersonation_profile %q; continuing without impersonation", cfg.ImpersonationProfile)
	}

	// ── Metrics ────────────────────────────────────────────────────────────
	m := metrics.New()

	// ── Bus core: queue, resource table, stdio, global timer ──────────────
	q := queue.New(cfg.QueueSize)
	table := resource.New()
	table.AddAt(0, stream.TagStdin, stream.Stdin())
	if stdout, err := stream.CloneStdout(); err == nil {
		table.AddAt(1, stream.TagStdout, stdout)
	} else {
		log.Errorf("failed to clone stdout: %v", err)
	}
	if stderr, err := stream.CloneStderr(); err == nil {
		table.AddAt(2, stream.TagStderr, stderr)
	} else {
		log.Errorf("failed to clone stderr: %v", err)
	}
	gt := timer.New()

	// ── Worker pool ─────────────────────────────────────────────────────────
	wp := worker.NewWorkerPool(cfg.FetchWorkers)
	wp.Start()
	log.Infof("worker pool started with %d workers", cfg.FetchWorkers)

	// ── Dispatcher and op registration ─────────────────────────────────────
	d := dispatch.New(q, cfg.MaxConcurrentAsync, m)

	io := &ops.IO{Table: table, Locks: reslock.New()}
	fetch := &ops.Fetch{Table: table, Policy: policy, Pool: wp, Proxies: pm, Profile: profile, Schemas: schema.NewRegistry(), Timeout: cfg.FetchTimeout}
	proc := &ops.Process{Table: table, Policy: policy, Pool: wp}
	resources := &ops.Resources{Table: table}
	random := ops.NewRandom(cfg.RandomSeed)
	sourceMaps := ops.NewSourceMaps()

	d.RegisterMinimal(opRead, "read", io.Read)
	d.RegisterMinimal(opWrite, "write", io.Write)
	d.Register(opFetch, "fetch", fetch.Do)
	d.Register(opRun, "run", proc.Run)
	d.Register(opRunStatus, "run_status", proc.RunStatus)
	d.Register(opKill, "kill", proc.Kill)
	d.Register(opResources, "resources", resources.List)
	d.RegisterMinimal(opGetRandomValues, "get_random_values", random.GetRandomValues)
	d.Register(opFormatError, "format_error", sourceMaps.FormatError)
	d.Register(opApplySourceMap, "apply_source_map", sourceMaps.ApplySourceMap)
	log.Info("registered 10 op handlers")

	// ── Inspector server ────────────────────────────────────────────────────
	var insp *inspector.Server
	if cfg.InspectorAddr != "" {
		insp = inspector.New(m, q, table, gt, pm)
		go func() {
			if err := insp.ListenAndServe(cfg.InspectorAddr); err != nil {
				log.Errorf("inspector server error: %v", err)
			}
		}()
		log.Infof("inspector server starting on %s", cfg.InspectorAddr)
	}

	// ── Drain loop ──────────────────────────────────────────────────────────
	stopDrain := make(chan struct{})
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopDrain:
				d.Drain()
				return
			case <-ticker.C:
				d.Drain()
			}
		}
	}()

	// ── Metrics monitor ──────────────────────────────────────────────────────
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			snap := m.Snapshot()
			log.Infof("metrics - dispatched: %d | sync: %d | async: %d | overflow retries: %d",
				snap.Dispatched, snap.Sync, snap.Async, snap.OverflowRetry)
			if insp != nil {
				insp.AddLog("INFO", fmt.Sprintf("dispatched=%d sync=%d async=%d overflowRetry=%d",
					snap.Dispatched, snap.Sync, snap.Async, snap.OverflowRetry))
			}
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Println()
	log.Infof("received signal %s; shutting down", sig)

	close(stopDrain)
	<-drainDone

	if err := d.Wait(); err != nil {
		log.Errorf("error while waiting for in-flight async ops: %v", err)
	}
	wp.Stop()

	snap := m.Snapshot()
	log.Infof("final metrics - dispatched: %d | sync: %d | async: %d | overflow retries: %d",
		snap.Dispatched, snap.Sync, snap.Async, snap.OverflowRetry)
	log.Info("opbus shut down cleanly")
}
