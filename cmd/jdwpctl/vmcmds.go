package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danmuck/jdwpctl/internal/vm"
)

func versionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the target VM and JDWP versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				v, err := c.Version(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "VM name:     %s\n", v.VMName)
				fmt.Fprintf(out, "VM version:  %s\n", v.VMVersion)
				fmt.Fprintf(out, "JDWP:        %d.%d\n", v.JDWPMajor, v.JDWPMinor)
				fmt.Fprintf(out, "Description: %s\n", v.Description)
				return nil
			})
		},
	}
}

func sizesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "Print identifier widths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				s, err := c.Sizes()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "fieldID=%d methodID=%d objectID=%d referenceTypeID=%d frameID=%d\n",
					s.FieldID, s.MethodID, s.ObjectID, s.ReferenceTypeID, s.FrameID)
				return nil
			})
		},
	}
}

func classesCmd(opts *globalOptions) *cobra.Command {
	var (
		detail    bool
		generic   bool
		signature string
	)
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List loaded classes",
		Long: `List loaded classes. By default prints the sorted top-level class
names; --detail prints one row per reference type.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				out := cmd.OutOrStdout()
				if !detail && !generic && signature == "" {
					names, err := c.LoadedClassNames(ctx)
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(out, name)
					}
					return nil
				}

				var (
					classes []vm.ClassInfo
					err     error
				)
				switch {
				case signature != "":
					classes, err = c.ClassesBySignature(ctx, signature)
				case generic:
					classes, err = c.AllClassesWithGeneric(ctx)
				default:
					classes, err = c.AllClasses(ctx)
				}
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TAG\tID\tNAME\tSTATUS\tGENERIC")
				for _, cls := range classes {
					fmt.Fprintf(tw, "%s\t%#x\t%s\t%s\t%s\n",
						cls.RefTypeTag, cls.TypeID, vm.ClassName(cls.Signature), cls.Status, cls.GenericSignature)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "print tag, id and status per type")
	cmd.Flags().BoolVar(&generic, "generic", false, "include generic signatures")
	cmd.Flags().StringVar(&signature, "signature", "", "only types matching this JNI signature")
	return cmd
}

func idListCmd(opts *globalOptions, use, short string, fetch func(*vm.Client, context.Context) ([]uint64, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				ids, err := fetch(c, ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", id)
				}
				return nil
			})
		},
	}
}

func threadsCmd(opts *globalOptions) *cobra.Command {
	return idListCmd(opts, "threads", "List live thread IDs", (*vm.Client).AllThreads)
}

func threadGroupsCmd(opts *globalOptions) *cobra.Command {
	return idListCmd(opts, "threadgroups", "List top-level thread group IDs", (*vm.Client).TopLevelThreadGroups)
}

func capabilitiesCmd(opts *globalOptions) *cobra.Command {
	var (
		extended    bool
		onlyEnabled bool
		required    []string
	)
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Print the debugger capabilities the VM supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				fetch := c.Capabilities
				if extended {
					fetch = c.CapabilitiesNew
				}
				caps, err := fetch(ctx)
				if err != nil {
					return err
				}
				var missing []string
				for _, name := range required {
					if !caps.Has(name) {
						missing = append(missing, name)
					}
				}
				if len(missing) > 0 {
					return fmt.Errorf("vm lacks capabilities: %s", strings.Join(missing, ", "))
				}
				if onlyEnabled {
					for _, name := range caps.Enabled() {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, cp := range caps {
					fmt.Fprintf(tw, "%s\t%t\n", cp.Name, cp.Enabled)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&extended, "new", false, "use CapabilitiesNew (all 32 flags)")
	cmd.Flags().BoolVar(&onlyEnabled, "enabled", false, "print only the names of supported capabilities")
	cmd.Flags().StringSliceVar(&required, "require", nil, "fail unless every named capability is supported")
	return cmd
}

func classPathsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classpaths",
		Short: "Print the base directory, classpath and bootclasspath",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				info, err := c.ClassPaths(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "base: %s\n", info.BaseDir)
				for _, p := range info.ClassPaths {
					fmt.Fprintf(out, "classpath: %s\n", p)
				}
				for _, p := range info.BootClassPaths {
					fmt.Fprintf(out, "bootclasspath: %s\n", p)
				}
				return nil
			})
		},
	}
}

func actionCmd(opts *globalOptions, use, short, done string, act func(*vm.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				if err := act(c, ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), done)
				return nil
			})
		},
	}
}

func suspendCmd(opts *globalOptions) *cobra.Command {
	return actionCmd(opts, "suspend", "Suspend every thread in the VM", "suspended", (*vm.Client).Suspend)
}

func resumeCmd(opts *globalOptions) *cobra.Command {
	return actionCmd(opts, "resume", "Resume every thread in the VM", "resumed", (*vm.Client).Resume)
}

func disposeCmd(opts *globalOptions) *cobra.Command {
	return actionCmd(opts, "dispose", "End the debugging session, leaving the VM running", "disposed", (*vm.Client).Dispose)
}

func createStringCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create-string TEXT",
		Short: "Create a string in the target VM and print its object ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				id, err := c.CreateString(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%#x\n", id)
				return nil
			})
		},
	}
}

func exitVMCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exit-vm [CODE]",
		Short: "Terminate the target VM",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code int32
			if len(args) == 1 {
				v, err := strconv.ParseInt(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("exit code: %w", err)
				}
				code = int32(v)
			}
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				if err := c.Exit(ctx, code); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exit %d sent\n", code)
				return nil
			})
		},
	}
}
