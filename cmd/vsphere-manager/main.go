package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yeyushilai/VMware-Manager/internal/cli"
	"github.com/yeyushilai/VMware-Manager/pkg/log"
	"go.uber.org/zap"
)

func main() {
	logger := log.InitLog(log.ParseLevel(os.Getenv("VMWARE_MANAGER_LOG_LEVEL")), os.Getenv("VMWARE_MANAGER_LOG_FORMAT"))
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	command := NewVSphereManagerCommand()
	if err := command.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func NewVSphereManagerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vsphere-manager [flags] [options]",
		Short: "vsphere-manager reads and operates virtual machines of a vSphere endpoint.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(cli.NewCmdGet())
	cmd.AddCommand(cli.NewCmdOperate())
	cmd.AddCommand(cli.NewCmdUpdate())
	cmd.AddCommand(cli.NewCmdMetrics())
	cmd.AddCommand(cli.NewCmdCheck())
	cmd.AddCommand(cli.NewCmdServe())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
