package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/netguard/gateway"
	"github.com/jonwraymond/netguard/queue"
	"github.com/jonwraymond/netguard/transport"
)

type issueFlags struct {
	data     string
	headers  []string
	priority string
	noQueue  bool
	wait     time.Duration
	include  bool
}

func newIssueCommand(flags *globalFlags) *cobra.Command {
	var f issueFlags

	cmd := &cobra.Command{
		Use:   "issue [METHOD] TARGET",
		Short: "Send a request through the gateway",
		Long: `Send one request with retries. While the backend is offline the request is
queued instead; with --wait the command keeps the queue running until the
request is delivered or dropped.`,
		Example: `  netguard issue /videos
  netguard issue POST /uploads -d '{"name":"clip"}' -H 'Content-Type: application/json' --priority high --wait 2m`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args, f)
			if err != nil {
				return err
			}
			priority, err := queue.ParsePriority(f.priority)
			if err != nil {
				return err
			}

			outcomes := make(chan queue.Outcome, 16)
			rt, err := start(cmd, flags, runtimeOptions{
				onOutcome: func(o queue.Outcome) {
					select {
					case outcomes <- o:
					default:
					}
				},
			})
			if err != nil {
				return err
			}
			defer func() { _ = rt.close(cmd.Context()) }()

			rt.settle(cmd.Context())

			opts := []gateway.IssueOption{gateway.WithPriority(priority)}
			if f.noQueue {
				opts = append(opts, gateway.NoQueue())
			}
			res, err := rt.gateway.Issue(cmd.Context(), req, opts...)
			if err != nil {
				return describeFailure(err)
			}

			out := cmd.OutOrStdout()
			if !res.Queued {
				return printResponse(cmd, res.Response, res.Attempts, res.FromCache, f.include)
			}

			_, _ = fmt.Fprintf(out, "queued %s (backend %s)\n", res.QueueID, rt.gateway.Status())
			if f.wait <= 0 {
				return nil
			}

			ctx := cmd.Context()
			rt.tracker.Start(ctx)
			rt.queue.Start(ctx)
			timeout := time.NewTimer(f.wait)
			defer timeout.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-timeout.C:
					return fmt.Errorf("request %s still queued after %s", res.QueueID, f.wait)
				case o := <-outcomes:
					if o.Item.ID != res.QueueID {
						continue
					}
					switch {
					case o.Kind == queue.Delivered:
					case o.Err != nil:
						return fmt.Errorf("request %s %s: %w", o.Item.ID, o.Kind, o.Err)
					default:
						return fmt.Errorf("request %s %s", o.Item.ID, o.Kind)
					}
					return printResponse(cmd, o.Response, o.Item.RetryCount+1, false, f.include)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&f.data, "data", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	cmd.Flags().StringVar(&f.priority, "priority", "normal", "queue priority if deferred: high, normal or low")
	cmd.Flags().BoolVar(&f.noQueue, "no-queue", false, "attempt the request even while offline")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "when queued, wait this long for delivery")
	cmd.Flags().BoolVarP(&f.include, "include", "i", false, "print the status line and headers")
	return cmd
}

func buildRequest(args []string, f issueFlags) (transport.Request, error) {
	req := transport.Request{Target: args[len(args)-1]}
	if len(args) == 2 {
		req.Method = strings.ToUpper(args[0])
	}
	if f.data != "" {
		req.Body = []byte(f.data)
		if req.Method == "" {
			req.Method = http.MethodPost
		}
	}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return transport.Request{}, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return req, nil
}

func printResponse(cmd *cobra.Command, resp *transport.Response, attempts int, cached, include bool) error {
	out := cmd.OutOrStdout()
	if include {
		_, _ = fmt.Fprintf(out, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		_ = resp.Header.Write(out)
		_, _ = fmt.Fprintln(out)
	}
	_, _ = out.Write(resp.Body)
	if len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		_, _ = fmt.Fprintln(out)
	}

	note := fmt.Sprintf("attempts=%d", attempts)
	if cached {
		note = "served from cache"
	}
	cmd.PrintErrf("%d %s\n", resp.StatusCode, note)

	if !resp.OK() {
		return fmt.Errorf("backend answered %d", resp.StatusCode)
	}
	return nil
}

func describeFailure(err error) error {
	var offline *gateway.OfflineError
	var failure *gateway.FailureError
	switch {
	case errors.As(err, &offline):
		return fmt.Errorf("backend went offline after %d attempts: %w", offline.Attempts, err)
	case errors.As(err, &failure):
		return fmt.Errorf("request failed after %d attempts: %w", failure.Attempts, err)
	default:
		return err
	}
}
