// Package health tracks whether the backend is reachable.
//
// A Tracker classifies reachability as online, degraded or offline from
// periodic liveness probes and platform connectivity signals, and notifies
// subscribers on every change.
//
//	tracker := health.NewTracker(health.TrackerConfig{
//	    Prober:            &health.HTTPProber{URL: "https://api.example.com/healthz"},
//	    CheckInterval:     30 * time.Second,
//	    Timeout:           10 * time.Second,
//	    DegradedThreshold: 5 * time.Second,
//	    Connectivity:      health.InterfaceConnectivity{},
//	})
//	defer tracker.Close()
//
//	unsubscribe := tracker.Subscribe(func(from, to health.Status) {
//	    log.Printf("network %s -> %s", from, to)
//	})
//	defer unsubscribe()
//
//	tracker.Start(ctx)
//
// Several endpoints can be combined with an Aggregator, which is itself a
// Prober.
//
// # HTTP Endpoints
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/status", health.StatusHandler(tracker, nil))
package health
