package main

import (
	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

// NewRootCommand builds the kubeobserve command tree: current-cluster-id
// style kubectl flag handling, plus watch and resources subcommands that
// each stand up their own Engine for the duration of the command.
func NewRootCommand() *cobra.Command {
	kubeFlags := genericclioptions.NewConfigFlags(false)

	cmd := &cobra.Command{
		Use:          "kubeobserve",
		Short:        "Watch Kubernetes API resources without a local cache",
		SilenceUsage: true,
	}

	pflags := cmd.PersistentFlags()
	kubeFlags.AddFlags(pflags)

	cmd.AddCommand(newResourcesCommand(kubeFlags))
	cmd.AddCommand(newWatchCommand(kubeFlags))
	return cmd
}
