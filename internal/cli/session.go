package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-freightsync/session"
)

type sessionStatus struct {
	State    session.State `json:"state"`
	Allow    bool          `json:"allow"`
	Redirect string        `json:"redirect,omitempty"`
	Cause    string        `json:"cause,omitempty"`
	Profile  any           `json:"profile,omitempty"`
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the session",
	}

	var wait time.Duration
	status := &cobra.Command{
		Use:   "status",
		Short: "Resolve the session and print the guard decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if wait <= 0 {
				wait = c.Config().Session.ResolveTimeout + time.Second
			}

			gate := c.Gate()
			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			state, err := gate.Settled(ctx)
			if err != nil {
				return fmt.Errorf("session still %s: %w", state, err)
			}

			decision := session.Guard(state)
			out := sessionStatus{
				State:    state,
				Allow:    decision.Allow,
				Redirect: decision.Redirect,
			}
			if cause := gate.Cause(); cause != nil {
				out.Cause = cause.Error()
			}
			if profile, ok := c.Auth().Profile(); ok {
				out.Profile = profile
			}

			return a.print(cmd.OutOrStdout(), out, func() {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "state:    %s\n", out.State)
				if out.Allow {
					fmt.Fprintln(w, "decision: allow")
				} else {
					fmt.Fprintf(w, "decision: redirect to %s\n", out.Redirect)
				}
				if out.Cause != "" {
					fmt.Fprintf(w, "cause:    %s\n", out.Cause)
				}
			})
		},
	}
	status.Flags().DurationVar(&wait, "wait", 0, "how long to wait for the session to settle (default resolve timeout + 1s)")

	cmd.AddCommand(status)
	return cmd
}
