package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/netguard/health"
)

var errOffline = errors.New("backend offline")

func newProbeCommand(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the backend once and print its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := start(cmd, flags, runtimeOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			rt.settle(cmd.Context())
			snap := rt.tracker.Snapshot()

			out := cmd.OutOrStdout()
			if asJSON {
				body := map[string]any{
					"status":     snap.Status,
					"reachable":  snap.Status.Reachable(),
					"latency_ms": snap.Latency.Milliseconds(),
				}
				if snap.Err != nil {
					body["error"] = snap.Err.Error()
				}
				if err := json.NewEncoder(out).Encode(body); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "%s latency=%s", snap.Status, snap.Latency)
				if snap.Err != nil {
					_, _ = fmt.Fprintf(out, " error=%q", snap.Err)
				}
				_, _ = fmt.Fprintln(out)
			}

			if snap.Status == health.StatusOffline {
				return errOffline
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
