package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yeyushilai/VMware-Manager/internal/server"
	"github.com/yeyushilai/VMware-Manager/pkg/log"
	"go.uber.org/zap"
)

type ServeOptions struct {
	GlobalOptions

	Address    string
	PathPrefix string
}

func DefaultServeOptions() *ServeOptions {
	return &ServeOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdServe() *cobra.Command {
	o := DefaultServeOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and prometheus metrics.",
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

func (o *ServeOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Address, "address", o.Address, "Listen address (env VMWARE_MANAGER_ADDRESS).")
	fs.StringVar(&o.PathPrefix, "path-prefix", o.PathPrefix, "Prefix stripped from every request path (env VMWARE_MANAGER_PATH_PREFIX).")
}

func (o *ServeOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if cmd.Flags().Changed("address") {
		o.config.Service.Address = o.Address
	}
	if cmd.Flags().Changed("path-prefix") {
		o.config.Service.PathPrefix = o.PathPrefix
	}
	return nil
}

func (o *ServeOptions) Validate(args []string) error {
	return o.GlobalOptions.Validate(args)
}

func (o *ServeOptions) Run(ctx context.Context, args []string) error {
	logger := log.InitLog(log.ParseLevel(o.config.Service.LogLevel), o.config.Service.LogFormat)
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	zap.S().Infof("Using config: %s", o.config)

	svc, closeFn := o.Service()
	defer closeFn()

	listener, err := net.Listen("tcp", o.config.Service.Address)
	if err != nil {
		return fmt.Errorf("creating listener: %w", err)
	}

	if err := server.New(o.config.Service, svc, listener).Run(ctx); err != nil {
		return fmt.Errorf("running server: %w", err)
	}
	return nil
}
