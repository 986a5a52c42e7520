package cli

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yeyushilai/VMware-Manager/internal/vsphere"
)

type UpdateOptions struct {
	GlobalOptions

	Name string
	Note string

	fields vsphere.ReconfigureFields
}

func DefaultUpdateOptions() *UpdateOptions {
	return &UpdateOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdUpdate() *cobra.Command {
	o := DefaultUpdateOptions()
	cmd := &cobra.Command{
		Use:   "update UUID [--name NAME] [--note NOTE]",
		Short: "Rename a vm or replace its note.",
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

func (o *UpdateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Name, "name", o.Name, "New name of the vm.")
	fs.StringVar(&o.Note, "note", o.Note, "New note (annotation) of the vm.")
}

func (o *UpdateOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.fields = fieldsFromFlags(cmd.Flags(), o.Name, o.Note)
	return nil
}

// fieldsFromFlags sets only the fields whose flag was given.
func fieldsFromFlags(fs *pflag.FlagSet, name, note string) vsphere.ReconfigureFields {
	var fields vsphere.ReconfigureFields
	if fs.Changed("name") {
		fields.Name = &name
	}
	if fs.Changed("note") {
		fields.Note = &note
	}
	return fields
}

func (o *UpdateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.fields.Empty() {
		return fmt.Errorf("one of --name or --note is required")
	}
	if err := validator.New().Struct(o.fields); err != nil {
		return fmt.Errorf("invalid fields: %w", err)
	}
	return nil
}

func (o *UpdateOptions) Run(ctx context.Context, args []string) error {
	svc, closeFn := o.Service()
	defer closeFn()

	if err := svc.Update(ctx, args[0], o.fields); err != nil {
		return fmt.Errorf("updating vm/%s: %w", args[0], err)
	}
	fmt.Printf("vm/%s updated\n", args[0])
	return nil
}
