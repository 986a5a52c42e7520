package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
	"github.com/yeyushilai/VMware-Manager/pkg/version"
	"sigs.k8s.io/yaml"
)

type VersionOptions struct {
	Output string
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print vsphere-manager version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
				return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
			}
			return o.Run(cmd.Context(), args)
		},
	}
	cmd.Flags().StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	return cmd
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	versionInfo := version.Get()
	switch o.Output {
	case jsonFormat:
		out, err := json.Marshal(versionInfo)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case yamlFormat:
		out, err := yaml.Marshal(versionInfo)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		fmt.Printf("vsphere-manager Version: %s\n", versionInfo.String())
	}
	return nil
}
