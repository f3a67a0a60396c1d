package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

func newResourcesCommand(kubeFlags *genericclioptions.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the API resources a cluster exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, shutdown, err := openFacade(ctx, kubeFlags, false)
			if err != nil {
				return err
			}
			defer shutdown()

			resources, err := f.ListApiResources(ctx)
			if err != nil {
				return err
			}
			for _, r := range resources {
				endpoint := r.Group.Endpoint
				if endpoint == "" {
					endpoint = "/api/v1"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-30s %-10v %s\n", r.Plural, r.Namespaced, endpoint)
			}
			return nil
		},
	}
}
