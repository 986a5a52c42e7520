package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
)

type OperateOptions struct {
	GlobalOptions
}

func DefaultOperateOptions() *OperateOptions {
	return &OperateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdOperate() *cobra.Command {
	o := DefaultOperateOptions()
	ops := make([]string, 0, len(vsphere.Operations()))
	for _, op := range vsphere.Operations() {
		ops = append(ops, op.String())
	}
	cmd := &cobra.Command{
		Use:       "operate UUID OPERATION",
		Short:     "Run a power operation on a vm and wait for it.",
		Long:      fmt.Sprintf("Run a power operation on a vm and wait for it. OPERATION is one of: %s.", strings.Join(ops, ", ")),
		Args:      cobra.ExactArgs(2),
		ValidArgs: ops,
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

func (o *OperateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
}

func (o *OperateOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *OperateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if _, err := vsphere.ParseOperation(args[1]); err != nil {
		return err
	}
	return nil
}

func (o *OperateOptions) Run(ctx context.Context, args []string) error {
	svc, closeFn := o.Service()
	defer closeFn()

	uuid, operation := args[0], args[1]
	if err := svc.Operate(ctx, uuid, operation); err != nil {
		return fmt.Errorf("%s vm/%s: %w", operation, uuid, err)
	}
	fmt.Printf("vm/%s %s done\n", uuid, operation)
	return nil
}
