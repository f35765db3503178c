package cli

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/netguard/health"
)

func newWatchCommand(flags *globalFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Track backend reachability and print every status change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := start(cmd, flags, runtimeOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			out := cmd.OutOrStdout()
			var seen atomic.Int64
			changes := make(chan struct{}, 1)
			unsubscribe := rt.tracker.Subscribe(func(from, to health.Status) {
				_, _ = fmt.Fprintf(out, "%s %s -> %s\n", time.Now().Format(time.RFC3339), from, to)
				seen.Add(1)
				select {
				case changes <- struct{}{}:
				default:
				}
			})
			defer unsubscribe()

			_, _ = fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.RFC3339), rt.tracker.Current())
			if rt.cfg.Recovery.Probe.URL == "" {
				rt.settle(cmd.Context())
			}
			rt.tracker.Start(cmd.Context())

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-changes:
					if count > 0 && seen.Load() >= int64(count) {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many status changes (0 runs until interrupted)")
	return cmd
}
