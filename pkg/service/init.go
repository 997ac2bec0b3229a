package service

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/free5gc/ocs/internal/balance"
	"github.com/free5gc/ocs/internal/charging"
	ocs_context "github.com/free5gc/ocs/internal/context"
	"github.com/free5gc/ocs/internal/diameter"
	"github.com/free5gc/ocs/internal/logger"
	"github.com/free5gc/ocs/internal/metrics"
	"github.com/free5gc/ocs/internal/oam"
	"github.com/free5gc/ocs/internal/quota"
	"github.com/free5gc/ocs/internal/sessionstore"
	"github.com/free5gc/ocs/internal/util"
	"github.com/free5gc/ocs/pkg/app"
	"github.com/free5gc/ocs/pkg/factory"
)

var _ app.App = &OcsApp{}

type OcsApp struct {
	cfg    *factory.Config
	ocsCtx *ocs_context.OCSContext
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	registry  *prometheus.Registry
	sessions  sessionstore.Store
	balances  balance.Store
	engine    *charging.Engine
	diamSrv   *diameter.Server
	oamSrv    *oam.Server
	closers   []func(context.Context) error
	terminate sync.Once
}

func NewApp(ctx context.Context, cfg *factory.Config) (*OcsApp, error) {
	ocs := &OcsApp{
		cfg: cfg,
		wg:  sync.WaitGroup{},
	}
	ocs.SetLogEnable(cfg.GetLogEnable())
	ocs.SetLogLevel(cfg.GetLogLevel())
	ocs.SetReportCaller(cfg.GetLogReportCaller())
	if err := logger.LogFileHook(cfg.GetLogFile()); err != nil {
		return nil, errors.Wrap(err, "log file")
	}

	ocs.ocsCtx = ocs_context.OCS_Self()
	util.InitOcsContext(ocs.ocsCtx, cfg)

	ocs.ctx, ocs.cancel = context.WithCancel(ctx)

	if err := ocs.build(); err != nil {
		ocs.cancel()
		ocs.close()
		return nil, err
	}
	return ocs, nil
}

func (a *OcsApp) Context() *ocs_context.OCSContext {
	return a.ocsCtx
}

func (a *OcsApp) Config() *factory.Config {
	return a.cfg
}

func (a *OcsApp) Engine() *charging.Engine {
	return a.engine
}

func (a *OcsApp) Diameter() *diameter.Server {
	return a.diamSrv
}

func (a *OcsApp) SetLogEnable(enable bool) {
	logger.MainLog.Infof("Log enable is set to [%v]", enable)
	if enable && logger.Log.Out == os.Stderr {
		return
	} else if !enable && logger.Log.Out == io.Discard {
		return
	}

	a.cfg.SetLogEnable(enable)
	logger.SetLogEnable(enable)
}

func (a *OcsApp) SetLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.MainLog.Warnf("Log level [%s] is invalid", level)
		return
	}

	logger.MainLog.Infof("Log level is set to [%s]", level)
	if lvl == logger.Log.GetLevel() {
		return
	}

	a.cfg.SetLogLevel(level)
	logger.SetLogLevel(lvl)
}

func (a *OcsApp) SetReportCaller(reportCaller bool) {
	logger.MainLog.Infof("Report Caller is set to [%v]", reportCaller)
	if reportCaller == logger.Log.ReportCaller {
		return
	}

	a.cfg.SetLogReportCaller(reportCaller)
	logger.SetReportCaller(reportCaller)
}

// build wires stores, engine and servers from the configuration.
func (a *OcsApp) build() error {
	self := a.ocsCtx
	configuration := a.cfg.Configuration

	sessions, err := a.newSessionStore(configuration.Session)
	if err != nil {
		return err
	}
	a.sessions = sessions

	balances, err := a.newBalanceStore(configuration.Balance)
	if err != nil {
		return err
	}
	a.balances = balances

	a.registry = prometheus.NewRegistry()
	m := metrics.New(a.registry)

	manager := quota.NewManager(balances, self.DefaultBucketSize, self.DefaultValidityTime)
	a.engine = charging.NewEngine(sessions, manager, self.RequestTimeout, m)

	handler := diameter.NewHandler(a.engine,
		diameter.Origin{Host: self.OriginHost, Realm: self.OriginRealm}, m)
	a.diamSrv = diameter.NewServer(self.DiameterNetwork, self.DiameterAddr, self.DiameterCfg, handler)

	checks := map[string]oam.Pinger{"sessionStore": sessions}
	if p, ok := balances.(oam.Pinger); ok {
		checks["balanceStore"] = p
	}
	a.oamSrv, err = oam.NewServer(self.OamAddr, a.registry, checks)
	return err
}

func (a *OcsApp) newSessionStore(cfg *factory.Session) (sessionstore.Store, error) {
	ttl := a.cfg.GetSessionTTL()
	if cfg == nil || cfg.Store == factory.SessionStoreMemory {
		logger.InitLog.Warnf("Session state kept in memory, it is lost on restart")
		return sessionstore.NewMemoryStore(ttl), nil
	}

	client, err := sessionstore.NewRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	logger.InitLog.Infof("Session store: redis [%s]", cfg.Redis.Addr)
	return sessionstore.NewRedisStore(client, ttl), nil
}

func (a *OcsApp) newBalanceStore(cfg *factory.Balance) (balance.Store, error) {
	if cfg == nil {
		return balance.NewMemoryStore(nil), nil
	}

	switch cfg.DataSource {
	case factory.DataSourceMongoDB:
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		store, err := balance.NewMongoStore(ctx, cfg.Mongodb)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		for _, s := range cfg.Subscribers {
			if err := store.Seed(ctx, s.Msisdn, s.Balance); err != nil {
				return nil, errors.Wrapf(err, "seed subscriber %s", s.Msisdn)
			}
		}
		logger.InitLog.Infof("Balance store: mongodb [%s]", cfg.Mongodb.Name)
		return balance.NewBreaker(store, cfg.Breaker), nil
	default:
		logger.InitLog.Infof("Balance store: local, %d subscribers", len(cfg.Subscribers))
		return balance.NewMemoryStore(cfg.Subscribers), nil
	}
}

func (a *OcsApp) Start() error {
	logger.InitLog.Infoln("Server started")

	if err := a.diamSrv.Start(); err != nil {
		return err
	}
	a.oamSrv.Run(&a.wg)

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
	a.wg.Add(1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				// Print stack for panic to log. Fatalf() will let program exit.
				logger.InitLog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
			}
			a.wg.Done()
		}()

		select {
		case <-signalChannel:
			a.Terminate()
		case <-a.ctx.Done():
		}
	}()
	return nil
}

func (a *OcsApp) Terminate() {
	a.terminate.Do(func() {
		logger.InitLog.Infof("Terminating OCS...")
		a.cancel()
		if a.diamSrv != nil {
			a.diamSrv.Stop()
		}
		if a.oamSrv != nil {
			a.oamSrv.Stop()
		}
		a.close()
		logger.InitLog.Infof("OCS terminated")
	})
}

func (a *OcsApp) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.InitLog.Warnf("Close backend: %+v", err)
		}
	}
	a.closers = nil
}

func (a *OcsApp) WaitRoutineStopped() {
	a.wg.Wait()
	logger.MainLog.Infof("OCS App is terminated")
}
