package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type CheckOptions struct {
	GlobalOptions
}

func DefaultCheckOptions() *CheckOptions {
	return &CheckOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdCheck() *cobra.Command {
	o := DefaultCheckOptions()
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that vSphere accepts the configured credentials.",
		Args:  cobra.NoArgs,
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

func (o *CheckOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *CheckOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *CheckOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *CheckOptions) Run(ctx context.Context, args []string) error {
	svc, closeFn := o.Service()
	defer closeFn()

	if !svc.Check(ctx) {
		return fmt.Errorf("cannot connect to %s", o.config.VSphere.URL)
	}
	version, err := svc.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s (vSphere API %s)\n", o.config.VSphere.URL, version)
	return nil
}
