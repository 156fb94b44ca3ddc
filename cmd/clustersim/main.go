package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devrev/clusterkit/internal/config"
	"github.com/devrev/clusterkit/internal/metrics"
	"github.com/devrev/clusterkit/internal/placement"
	"github.com/devrev/clusterkit/internal/timerwheel"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("ring", cfg.Ring.Name),
		zap.String("strategy", cfg.Ring.Strategy),
		zap.Int("nodes", len(cfg.Nodes)))

	m := metrics.NewMetrics(cfg.Ring.Name)

	// Build the ring
	strategy, _ := placement.ParseStrategy(cfg.Ring.Strategy)
	quorum := quorumPreset(cfg.Ring.Quorum)
	ring, err := placement.New(placement.Config{
		Name:          cfg.Ring.Name,
		Strategy:      strategy,
		DefaultQuorum: &quorum,
		Vnodes: placement.VnodeConfig{
			Multiplier: cfg.Ring.VnodeMultiplier,
			Min:        cfg.Ring.VnodeMin,
			Max:        cfg.Ring.VnodeMax,
		},
		ExpectedNodeCount: cfg.Ring.ExpectedNodeCount,
		HashSeed:          cfg.Ring.HashSeed,
		Logger:            logger,
		Metrics:           m,
	})
	if err != nil {
		logger.Fatal("Failed to create ring", zap.Error(err))
	}
	defer ring.Close()

	ring.SetNodeStateCallback(func(node *placement.Node, oldState, newState placement.NodeState) {
		logger.Debug("node state transition",
			zap.Uint64("node_id", node.ID()),
			zap.String("from", oldState.String()),
			zap.String("to", newState.String()))
	})

	var nodeCfgs []placement.NodeConfig
	for _, n := range cfg.Nodes {
		nodeCfgs = append(nodeCfgs, placement.NodeConfig{
			ID:      n.ID,
			Name:    n.Name,
			Address: n.Address,
			Location: placement.Location{
				NodeID: n.ID,
				Rack:   n.Rack,
				AZ:     n.AZ,
				Region: n.Region,
			},
			Weight:   n.Weight,
			Capacity: n.Capacity,
			State:    placement.NodeUp,
		})
	}
	if err := ring.AddNodes(nodeCfgs); err != nil {
		logger.Fatal("Failed to add nodes", zap.Error(err))
	}

	for _, ks := range cfg.KeySpaces {
		q := quorumPreset(ks.Quorum)
		if err := ring.AddKeySpace(ks.Name, q, strategy, nil); err != nil {
			logger.Fatal("Failed to add keyspace", zap.String("keyspace", ks.Name), zap.Error(err))
		}
	}

	// Build the timer wheel that drives the simulation
	mode := timerwheel.RepeatStrict
	if cfg.Wheel.RepeatMode == "drift" {
		mode = timerwheel.RepeatDrift
	}
	wheel := timerwheel.New(
		timerwheel.WithRepeatMode(mode),
		timerwheel.WithLogger(logger),
		timerwheel.WithMetrics(m),
	)

	if cfg.Workload.Enabled {
		ring.SetHealthProvider(&syntheticProvider{
			rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		})
		registerWorkload(wheel, ring, cfg, logger)
	}

	_, err = wheel.Register(cfg.Wheel.HealthInterval, cfg.Wheel.HealthInterval,
		func(id uint64, data interface{}) bool {
			ring.RefreshHealth()
			return true
		}, nil)
	if err != nil {
		logger.Fatal("Failed to register health timer", zap.Error(err))
	}

	// Ring stats only: wheel stats cannot be read from inside a wheel
	// callback, so those are logged at shutdown.
	_, err = wheel.Register(cfg.Wheel.StatsInterval, cfg.Wheel.StatsInterval,
		func(id uint64, data interface{}) bool {
			st := ring.GetStats()
			logger.Info("ring stats",
				zap.Int("nodes", st.NodeCount),
				zap.Int("healthy", st.HealthyNodeCount),
				zap.Uint64("locate_ops", st.LocateOps),
				zap.Float64("load_max_ratio", st.LoadMaxRatio),
				zap.Int64("p99_locate_ns", st.P99LocateNs))
			return true
		}, nil)
	if err != nil {
		logger.Fatal("Failed to register stats timer", zap.Error(err))
	}

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Metrics endpoint starting", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	logger.Info("Simulator running",
		zap.String("ring", cfg.Ring.Name),
		zap.Int("timers", wheel.Count()))

	// Drive the wheel until interrupted
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Wheel.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			wheel.Process()
		case <-sigChan:
			logger.Info("Shutting down gracefully...")
			ws := wheel.GetStats()
			logger.Info("wheel stats",
				zap.Uint64("registrations", ws.Registrations),
				zap.Uint64("expirations", ws.Expirations),
				zap.Uint64("cascades", ws.Cascades))
			wheel.StopAll()
			return
		}
	}
}

// registerWorkload schedules the synthetic traffic and node flapping
// timers.
func registerWorkload(wheel *timerwheel.Wheel, ring *placement.Ring, cfg *config.Config, logger *zap.Logger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	_, err := wheel.Register(cfg.Workload.Interval, cfg.Workload.Interval,
		func(id uint64, data interface{}) bool {
			key := []byte(fmt.Sprintf("key-%d", rng.Intn(cfg.Workload.KeyCount)))
			p, err := ring.Locate(key)
			if err != nil {
				logger.Warn("locate failed", zap.Error(err))
				return true
			}
			if _, err := ring.PlanWrite(p, nil); err != nil {
				logger.Debug("write quorum unavailable", zap.Error(err))
			}
			if _, err := ring.PlanRead(p, nil); err != nil {
				logger.Debug("read quorum unavailable", zap.Error(err))
			}
			return true
		}, nil)
	if err != nil {
		logger.Fatal("Failed to register workload timer", zap.Error(err))
	}

	if !cfg.Workload.FlapNodes || len(cfg.Nodes) == 0 {
		return
	}
	_, err = wheel.Register(cfg.Workload.FlapEvery, cfg.Workload.FlapEvery,
		func(id uint64, data interface{}) bool {
			target := cfg.Nodes[rng.Intn(len(cfg.Nodes))].ID
			node, err := ring.GetNode(target)
			if err != nil {
				return true
			}
			next := placement.NodeDown
			if node.State() == placement.NodeDown {
				next = placement.NodeUp
			}
			if err := ring.SetNodeState(target, next); err != nil {
				logger.Warn("flap failed", zap.Uint64("node_id", target), zap.Error(err))
			}
			return true
		}, nil)
	if err != nil {
		logger.Fatal("Failed to register flap timer", zap.Error(err))
	}
}

// syntheticProvider feeds the ring plausible health and load samples
// so load-aware routing has something to chew on.
type syntheticProvider struct {
	rng *rand.Rand
}

func (p *syntheticProvider) CheckHealth(nodeID uint64) placement.NodeHealth {
	return placement.NodeHealth{
		Reachable: true,
		LatencyMs: 0.2 + p.rng.Float64()*2,
		ErrorRate: p.rng.Float64() * 0.01,
	}
}

func (p *syntheticProvider) SampleLoad(nodeID uint64) placement.NodeLoad {
	return placement.NodeLoad{
		CPUUsage:          p.rng.Float64() * 0.8,
		MemoryUsage:       p.rng.Float64() * 0.6,
		DiskUsage:         p.rng.Float64() * 0.5,
		ActiveConnections: uint32(p.rng.Intn(512)),
		RequestQueueDepth: uint32(p.rng.Intn(64)),
	}
}

func quorumPreset(name string) placement.Quorum {
	switch name {
	case "strong":
		return placement.QuorumStrong
	case "eventual":
		return placement.QuorumEventual
	case "read_heavy":
		return placement.QuorumReadHeavy
	case "write_heavy":
		return placement.QuorumWriteHeavy
	default:
		return placement.QuorumBalanced
	}
}

// initLogger initializes the zap logger
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}
