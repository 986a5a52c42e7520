package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"github.com/yeyushilai/VMware-Manager/internal/service"
)

type MetricsOptions struct {
	GlobalOptions

	Counters []string
	Since    time.Duration
	Instance string
	Output   string
}

func DefaultMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Since:         service.DefaultMetricsWindow,
	}
}

func NewCmdMetrics() *cobra.Command {
	o := DefaultMetricsOptions()
	cmd := &cobra.Command{
		Use:   "metrics UUID --counter NAME...",
		Short: "Query real-time performance samples of a vm.",
		Long:  "Query real-time performance samples of a vm. Counter names look like cpu.usage.average, see \"get counters\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *MetricsOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringSliceVar(&o.Counters, "counter", o.Counters, "Counter to query, repeatable.")
	fs.DurationVar(&o.Since, "since", o.Since, "Length of the window ending now.")
	fs.StringVar(&o.Instance, "instance", o.Instance, "Counter instance, \"*\" for all, empty for the aggregate.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *MetricsOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *MetricsOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if len(o.Counters) == 0 {
		return fmt.Errorf("at least one --counter is required")
	}
	if o.Since <= 0 {
		return fmt.Errorf("--since must be positive")
	}
	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *MetricsOptions) Run(ctx context.Context, args []string) error {
	svc, closeFn := o.Service()
	defer closeFn()

	samples, err := svc.QueryMetrics(ctx, args[0], service.MetricsRequest{
		Counters: o.Counters,
		Since:    o.Since,
		Instance: o.Instance,
	})
	if err != nil {
		return fmt.Errorf("querying metrics of vm/%s: %w", args[0], err)
	}
	return processResponse(os.Stdout, samples, nil, "sample", args[0], o.Output)
}
