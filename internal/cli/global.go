package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yeyushilai/VMware-Manager/internal/config"
	"github.com/yeyushilai/VMware-Manager/internal/service"
	"github.com/yeyushilai/VMware-Manager/internal/util"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"go.uber.org/zap"
)

type GlobalOptions struct {
	ConfigFile string
	URL        string
	Username   string
	Password   string
	Insecure   bool
	Timeout    time.Duration

	config *config.Config
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Timeout: vsphere.DefaultTimeout,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, fmt.Sprintf("Path to the configuration file (default %s when present).", config.DefaultConfigFile))
	fs.StringVarP(&o.URL, "url", "u", o.URL, "vSphere endpoint, e.g. https://vcenter.example.com/sdk (env VSPHERE_URL).")
	fs.StringVar(&o.Username, "username", o.Username, "vSphere user name (env VSPHERE_USERNAME).")
	fs.StringVar(&o.Password, "password", o.Password, "vSphere password (env VSPHERE_PASSWORD).")
	fs.BoolVar(&o.Insecure, "insecure", o.Insecure, "Skip certificate verification for the vSphere connection.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Timeout of every vSphere request.")
}

// Complete loads the configuration. Flags set on the command line win over
// the file, which wins over the environment.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	fs := cmd.Flags()
	if fs.Changed("url") {
		cfg.VSphere.URL = o.URL
	}
	if fs.Changed("username") {
		cfg.VSphere.Username = o.Username
	}
	if fs.Changed("password") {
		cfg.VSphere.Password = o.Password
	}
	if fs.Changed("insecure") {
		cfg.VSphere.Insecure = o.Insecure
	}
	if fs.Changed("timeout") {
		cfg.VSphere.Timeout = util.Duration(o.Timeout)
	}
	o.config = cfg
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return o.config.Validate()
}

// Service opens the vSphere session described by the loaded configuration.
// The returned close function logs out.
func (o *GlobalOptions) Service() (*service.VMService, func()) {
	session := vsphere.NewSession(o.config.SessionConfig())
	svc := service.NewVMService(session, service.WithGracePeriod(o.config.GracePeriod()))
	return svc, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Close(ctx); err != nil {
			zap.S().Named("cli").Debugf("logout: %v", err)
		}
	}
}
