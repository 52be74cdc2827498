package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/offsoc/libsecret/internal/config"
	apperrors "github.com/offsoc/libsecret/internal/errors"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name       string
	Status     string // ok, error, skipped
	Message    string
	Suggestion string
}

func NewDoctorCommand(cfg *config.Config, connect Connector) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and secret service connectivity",
		Long: `Verify that secretpass can talk to the secret service.

This command checks:
- Configuration file validity and declared schemas
- Session bus connectivity
- Transfer session negotiation (encrypted or plain)

With --verbose, call metrics collected during the checks are shown when
metrics are enabled in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var results []CheckResult

			if err := cfg.Load(); err != nil {
				results = append(results, failed("configuration", err))
				displayCheckResults(out, results)
				return fmt.Errorf("failed to load config: %w", err)
			}
			results = append(results, CheckResult{Name: "configuration", Status: "ok", Message: cfg.Path})

			results = append(results, CheckResult{
				Name:    "schemas",
				Status:  "ok",
				Message: strings.Join(cfg.Definition.SchemaNames(), ", "),
			})

			client, err := connect(cmd.Context(), cfg)
			if err != nil {
				results = append(results, failed("bus", apperrors.SecretServiceError("connect", err)))
				results = append(results, CheckResult{Name: "session", Status: "skipped"})
				displayCheckResults(out, results)
				return fmt.Errorf("secret service not reachable")
			}
			defer client.Close()
			busMessage := cfg.Definition.BusAddress
			if busMessage == "" {
				busMessage = "session bus"
			}
			results = append(results, CheckResult{Name: "bus", Status: "ok", Message: busMessage})

			algorithm, err := client.EnsureSession(cmd.Context())
			if err != nil {
				results = append(results, failed("session", apperrors.SecretServiceError("open session", err)))
				displayCheckResults(out, results)
				return fmt.Errorf("secret service not usable")
			}
			results = append(results, CheckResult{Name: "session", Status: "ok", Message: algorithm})

			displayCheckResults(out, results)
			if verbose && cfg.Definition.Metrics.Enabled {
				if err := displayMetrics(out); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "\n✓ All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show call metrics")

	return cmd
}

func failed(name string, err error) CheckResult {
	r := CheckResult{Name: name, Status: "error", Message: err.Error()}
	if ue, ok := err.(apperrors.UserError); ok {
		r.Message = ue.Message + ": " + ue.Details
		r.Suggestion = ue.Suggestion
	}
	if r.Suggestion == "" && apperrors.IsRetryable(err) {
		r.Suggestion = "This looks transient; run the command again"
	}
	return r
}

// displayCheckResults shows check results in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tDETAILS\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, r := range results {
		status := r.Status
		switch r.Status {
		case "ok":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Message)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n💡 %s: %s\n", r.Name, r.Suggestion)
		}
	}
}

// displayMetrics prints the secretpass counters from the default registry.
func displayMetrics(out io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "\nMETRIC\tLABELS\tVALUE\n")
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "secretpass_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return w.Flush()
}
