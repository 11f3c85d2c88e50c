package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"bazaarcraft/internal/market"
	"bazaarcraft/internal/metrics"
	"bazaarcraft/internal/persistence/shopdb"
	"bazaarcraft/internal/persistence/tradelog"
	"bazaarcraft/internal/sim"
	"bazaarcraft/internal/transport/ws"
	"bazaarcraft/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable sqlite persistence")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	cfg := tune.MarketConfig()

	_ = os.MkdirAll(*dataDir, 0o755)

	registry := market.NewRegistry()
	world := sim.NewWorld()
	territory := sim.NewTerritory(world, regionsFromTuning(tune, logger))

	ledger := market.NewLedger(world, world, logger)
	engine := market.NewEngine(registry, world, world, world, ledger)
	engine.SetTerritory(territory)

	manager := market.NewManager(registry, cfg)
	manager.SetTerritory(territory)

	m := metrics.New()
	engine.SetMetrics(m)

	audit := tradelog.New(filepath.Join(*dataDir, "trades"))
	defer audit.Close()
	engine.SetTradeRecorder(audit)

	rt := market.NewRuntime(logger, cfg, registry, manager, engine, ledger)
	rt.SetMetrics(m)

	var store *shopdb.Store
	if !*disableDB {
		store, err = shopdb.Open(filepath.Join(*dataDir, "market.db"), logger)
		if err != nil {
			logger.Fatalf("open market db: %v", err)
		}
		defer store.Close()

		shops, listings, err := store.LoadAll(catalogResolver(tune))
		if err != nil {
			logger.Fatalf("load market db: %v", err)
		}
		for _, s := range shops {
			registry.RegisterShop(s)
		}
		for _, l := range listings {
			registry.RegisterListing(l)
		}
		logger.Printf("loaded %d shops, %d listings", len(shops), len(listings))

		rt.SetStore(store)
	}
	m.SetListings(len(registry.AllListings()))

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := rt.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("market stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())
	if envBool("BZ_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(rt, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func regionsFromTuning(t tuning.Tuning, logger *log.Logger) []sim.Region {
	regions := make([]sim.Region, 0, len(t.Territories))
	for _, tr := range t.Territories {
		treasury, err := uuid.Parse(tr.Treasury)
		if err != nil {
			logger.Printf("territory %q: bad treasury id %q, tax will be burned", tr.Name, tr.Treasury)
			treasury = uuid.Nil
		}
		members := make(map[uuid.UUID]bool, len(tr.Members))
		for _, ms := range tr.Members {
			id, err := uuid.Parse(ms)
			if err != nil {
				logger.Printf("territory %q: skipping bad member id %q", tr.Name, ms)
				continue
			}
			members[id] = true
		}
		regions = append(regions, sim.Region{
			Name:           tr.Name,
			World:          tr.World,
			MinX:           tr.MinX,
			MinZ:           tr.MinZ,
			MaxX:           tr.MaxX,
			MaxZ:           tr.MaxZ,
			TransactionTax: tr.TransactionTax,
			ShopTax:        tr.ShopTax,
			Treasury:       treasury,
			Members:        members,
		})
	}
	return regions
}

// catalogResolver gates persistence loading on the tuning catalog. Empty
// lists accept everything.
type catalogResolver tuning.Tuning

func (c catalogResolver) KnownWorld(world string) bool {
	if len(c.Worlds) == 0 {
		return true
	}
	for _, w := range c.Worlds {
		if w == world {
			return true
		}
	}
	return false
}

func (c catalogResolver) KnownItem(item string) bool {
	if len(c.Items) == 0 {
		return true
	}
	for _, it := range c.Items {
		if it == item {
			return true
		}
	}
	return false
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
