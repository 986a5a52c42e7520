package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"github.com/yeyushilai/VMware-Manager/internal/service"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"

	defaultWatchInterval = 30 * time.Second
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

type GetOptions struct {
	GlobalOptions

	Output        string
	Cluster       string
	Watch         bool
	WatchInterval time.Duration
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
		WatchInterval: defaultWatchInterval,
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:   "get (TYPE | vm/UUID)",
		Short: "Display one or many resources.",
		Long:  fmt.Sprintf("Display one or many resources. TYPE is one of: %s.", strings.Join(kindNames(), ", ")),
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVar(&o.Cluster, "cluster", o.Cluster, "Only list the vms of this cluster.")
	fs.BoolVarP(&o.Watch, "watch", "w", o.Watch, "Keep printing the resource on every interval.")
	fs.DurationVar(&o.WatchInterval, "watch-interval", o.WatchInterval, "Mean interval between two reads with --watch.")
}

func (o *GetOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	return nil
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}

	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}
	if o.Cluster != "" && (kind != VMKind || id != "") {
		return fmt.Errorf("--cluster only applies to listing vms")
	}

	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	if o.Watch && o.WatchInterval <= 0 {
		return fmt.Errorf("--watch-interval must be positive")
	}

	return nil
}

func (o *GetOptions) Run(ctx context.Context, args []string) error {
	svc, closeFn := o.Service()
	defer closeFn()

	kind, id, err := parseAndValidateKindId(args[0])
	if err != nil {
		return err
	}

	if !o.Watch {
		return o.print(ctx, svc, kind, id)
	}

	ticker := jitterbug.New(o.WatchInterval, &jitterbug.Norm{Stdev: o.WatchInterval / 10})
	defer ticker.Stop()
	for {
		if err := o.print(ctx, svc, kind, id); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Println()
		}
	}
}

func (o *GetOptions) print(ctx context.Context, svc *service.VMService, kind, id string) error {
	var (
		response any
		err      error
	)
	switch {
	case kind == VMKind && id != "":
		response, err = svc.GetVM(ctx, id)
	case kind == VMKind:
		response, err = svc.ListVMs(ctx, o.Cluster)
	case kind == CounterKind:
		response, err = svc.Counters(ctx)
	default:
		response, err = svc.Entities(ctx, plural(kind))
	}
	return processResponse(os.Stdout, response, err, kind, id, o.Output)
}

func processResponse(w io.Writer, response any, err error, kind, id, output string) error {
	errorPrefix := fmt.Sprintf("reading %s/%s", kind, id)
	if id == "" {
		errorPrefix = fmt.Sprintf("listing %s", plural(kind))
	}

	if err != nil {
		return fmt.Errorf(errorPrefix+": %w", err)
	}

	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
		return nil
	case yamlFormat:
		marshalled, err := yaml.Marshal(response)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		fmt.Fprintf(w, "%s\n", string(marshalled))
		return nil
	default:
		return printTable(w, response)
	}
}

func printTable(out io.Writer, response any) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	switch r := response.(type) {
	case []vsphere.VirtualMachine:
		printVMsTable(w, r...)
	case vsphere.VirtualMachine:
		printVMsTable(w, r)
	case []vsphere.Node:
		printNodesTable(w, r)
	case map[string]int32:
		printCountersTable(w, r)
	case []vsphere.Sample:
		printSamplesTable(w, r)
	default:
		return fmt.Errorf("unknown resource type %T", response)
	}
	return w.Flush()
}

func printVMsTable(w io.Writer, vms ...vsphere.VirtualMachine) {
	fmt.Fprintln(w, "UUID\tNAME\tSTATUS\tOS\tCPU\tMEMORY\tIP\tHOST\tCLUSTER")
	for _, vm := range vms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			vm.UUID, vm.Name, vm.Status, vm.OSType, vm.CPU, vm.Memory, vm.IPAddress, vm.Host, vm.Cluster)
	}
}

func printNodesTable(w io.Writer, nodes []vsphere.Node) {
	fmt.Fprintln(w, "ID\tNAME")
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%s\n", n.ID, n.Name)
	}
}

func printCountersTable(w io.Writer, catalog map[string]int32) {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "NAME\tID")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, catalog[name])
	}
}

func printSamplesTable(w io.Writer, samples []vsphere.Sample) {
	fmt.Fprintln(w, "TIMESTAMP\tCOUNTER\tINSTANCE\tVALUE")
	for _, s := range samples {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", s.Timestamp.Format(time.RFC3339), s.CounterID, s.Instance, s.Value)
	}
}
