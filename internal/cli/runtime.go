package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/netguard/auth"
	"github.com/jonwraymond/netguard/cache"
	"github.com/jonwraymond/netguard/config"
	"github.com/jonwraymond/netguard/gateway"
	"github.com/jonwraymond/netguard/health"
	"github.com/jonwraymond/netguard/observe"
	"github.com/jonwraymond/netguard/queue"
	"github.com/jonwraymond/netguard/transport"
)

// runtime holds the components built from a Config.
type runtime struct {
	cfg      *config.Config
	observer observe.Observer
	logger   observe.Logger
	tracker  *health.Tracker
	queue    *queue.Queue
	gateway  *gateway.Gateway
	verifier *auth.Verifier
}

type runtimeOptions struct {
	logOut     io.Writer
	registerer promclient.Registerer
	onOutcome  func(queue.Outcome)
}

func newRuntime(ctx context.Context, cfg *config.Config, ro runtimeOptions) (*runtime, error) {
	oc := cfg.ObserverConfig()
	oc.Logging.Writer = ro.logOut
	if ro.registerer != nil {
		oc.Metrics.Registerer = ro.registerer
	}
	obs, err := observe.NewObserver(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("middleware: %w", err), obs.Shutdown(ctx))
	}

	rt := &runtime{cfg: cfg, observer: obs, logger: obs.Logger()}

	var tokens auth.TokenSource
	if cfg.Auth.Enabled {
		key := []byte(cfg.Auth.SigningKey)
		src, err := auth.NewJWTSource(cfg.Auth.JWTConfig(), key)
		if err != nil {
			return nil, errors.Join(err, obs.Shutdown(ctx))
		}
		tokens = src
		rt.verifier = auth.NewVerifier(cfg.Auth.JWTConfig(), auth.NewStaticKeyProvider(key))
	}

	var probeClient *http.Client
	if tokens != nil {
		probeClient = &http.Client{Transport: &auth.Transport{Source: tokens}}
	}
	rt.tracker = health.NewTracker(cfg.Recovery.TrackerConfig(probeClient), health.WithLogger(rt.logger), health.WithMetrics(mw.Metrics()))

	httpDoer, err := transport.NewHTTP(cfg.Backend.HTTPConfig())
	if err != nil {
		return nil, errors.Join(err, rt.tracker.Close(), obs.Shutdown(ctx))
	}
	var doer transport.Doer = httpDoer
	if tokens != nil {
		doer = auth.Doer(tokens, doer)
	}

	qc := cfg.Recovery.QueueConfig()
	qc.OnOutcome = ro.onOutcome
	rt.queue = queue.New(qc, doer, rt.tracker, queue.WithLogger(rt.logger), queue.WithMiddleware(mw))

	opts := []gateway.Option{gateway.WithLogger(rt.logger), gateway.WithMiddleware(mw)}
	if cfg.Cache.Enabled {
		responses, err := cache.NewResponses(cache.NewMemoryCache(cfg.Cache.MaxEntries), cache.NewDefaultKeyer(), cfg.Cache.Policy())
		if err != nil {
			return nil, errors.Join(err, rt.close(ctx))
		}
		opts = append(opts, gateway.WithCache(responses))
	}
	if cfg.Recovery.Queue.RequestTimeout > 0 {
		opts = append(opts, gateway.WithAttemptTimeout(cfg.Recovery.Queue.RequestTimeout))
	}

	gw, err := gateway.New(rt.tracker, rt.queue, doer, qc.Retry, opts...)
	if err != nil {
		return nil, errors.Join(err, rt.close(ctx))
	}
	rt.gateway = gw
	return rt, nil
}

// settle establishes an initial status: a probe when one is configured,
// otherwise the platform signal, otherwise online.
func (rt *runtime) settle(ctx context.Context) health.Status {
	if rt.cfg.Recovery.Probe.URL != "" {
		return rt.tracker.Check(ctx)
	}
	if s := rt.tracker.Current(); s != health.StatusUnknown {
		return s
	}
	return rt.tracker.SetConnectivity(ctx, true)
}

func (rt *runtime) close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if rt.queue != nil {
		errs = append(errs, rt.queue.Close())
	}
	if rt.tracker != nil {
		errs = append(errs, rt.tracker.Close())
	}
	errs = append(errs, rt.observer.Shutdown(ctx))
	return errors.Join(errs...)
}
