package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danmuck/jdwpctl/internal/config"
	"github.com/danmuck/jdwpctl/internal/protocol"
	"github.com/danmuck/jdwpctl/internal/protocol/codec"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
	"github.com/danmuck/jdwpctl/internal/vm"
)

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands [NAME|SET/CMD]",
		Short: "List the command names raw accepts, or resolve one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			names := commands.Names()
			if len(args) == 1 {
				name, err := resolveCommand(args[0])
				if err != nil {
					return err
				}
				names = []string{name}
			}
			for _, name := range names {
				id, _ := commands.Lookup(name)
				fmt.Fprintf(tw, "%s\t%s\n", id, name)
			}
			return tw.Flush()
		},
	}
}

// resolveCommand accepts a command name or its wire identity, e.g. "1/7".
func resolveCommand(arg string) (string, error) {
	set, command, ok := strings.Cut(arg, "/")
	if !ok {
		if _, err := commands.Lookup(arg); err != nil {
			return "", err
		}
		return arg, nil
	}
	s, serr := strconv.ParseUint(set, 10, 8)
	c, cerr := strconv.ParseUint(command, 10, 8)
	if serr != nil || cerr != nil {
		return "", fmt.Errorf("%w: %q is not SET/CMD", protocol.ErrUnknownCommand, arg)
	}
	name, found := commands.NameOf(commands.ID{Set: uint8(s), Command: uint8(c)})
	if !found {
		return "", fmt.Errorf("%w: no command %s", protocol.ErrUnknownCommand, arg)
	}
	return name, nil
}

func rawCmd(opts *globalOptions) *cobra.Command {
	var (
		payloadHex string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "raw COMMAND",
		Short: "Send any VirtualMachine command and dump or decode the reply",
		Long: `Send a command by name with an optional hex payload. Without --format
the reply body is printed as hex; with --format it is decoded as a
comma-separated list of kinds, e.g. --format int32,string,objectID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := commands.Lookup(name); err != nil {
				return err
			}
			payload, err := hex.DecodeString(strings.ReplaceAll(payloadHex, " ", ""))
			if err != nil {
				return fmt.Errorf("payload: %w", err)
			}
			var decodeAs codec.Format
			if format != "" {
				if decodeAs, err = codec.ParseFormat(format); err != nil {
					return err
				}
			}
			return opts.run(cmd, func(ctx context.Context, c *vm.Client) error {
				body, err := c.Send(ctx, name, payload)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if decodeAs == nil {
					fmt.Fprintln(out, hex.EncodeToString(body))
					return nil
				}
				values, n, err := c.Decode(body, decodeAs)
				if err != nil {
					return err
				}
				for i, v := range values {
					fmt.Fprintf(out, "%s\t%s\n", decodeAs[i], v)
				}
				if rest := len(body) - n; rest > 0 {
					fmt.Fprintf(out, "rest\t%s\n", hex.EncodeToString(body[n:]))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payloadHex, "payload", "", "request body as hex")
	cmd.Flags().StringVar(&format, "format", "", "decode the reply with these kinds")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the jdwpctl config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [PATH|-]",
		Short: "Write a commented config template",
		Long:  "Write a commented config template to PATH, or to stdout when PATH is -.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "jdwpctl.toml"
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), config.Template())
				return err
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
