package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danmuck/jdwpctl/internal/logging"
	"github.com/danmuck/jdwpctl/internal/protocol"
)

func main() {
	logging.ConfigureRuntime()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jdwpctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps usage mistakes to 2 and a broken session to 3. Reply errors
// and everything else exit 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case protocol.IsCallerError(err):
		return 2
	case protocol.IsFatal(err):
		return 3
	default:
		return 1
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "jdwpctl",
		Short: "Inspect and control a JVM over the Java Debug Wire Protocol",
		Long: `jdwpctl attaches to a JVM started with the JDWP agent, runs one
VirtualMachine command and prints the decoded reply.

  java -agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address=*:8000 ...
  jdwpctl --address localhost:8000 classes`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	opts.bind(root)

	root.AddCommand(
		versionCmd(opts),
		sizesCmd(opts),
		classesCmd(opts),
		threadsCmd(opts),
		threadGroupsCmd(opts),
		capabilitiesCmd(opts),
		classPathsCmd(opts),
		suspendCmd(opts),
		resumeCmd(opts),
		createStringCmd(opts),
		exitVMCmd(opts),
		disposeCmd(opts),
		commandsCmd(),
		rawCmd(opts),
		configCmd(),
	)
	return root
}
