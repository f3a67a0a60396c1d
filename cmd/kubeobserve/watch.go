package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericclioptions"

	"github.com/kubeobserve/kubeobserve/internal/model"
)

func newWatchCommand(kubeFlags *genericclioptions.ConfigFlags) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "watch <resource-plural>",
		Short: "List then watch one API resource, printing events as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			plural := args[0]

			f, shutdown, err := openFacade(ctx, kubeFlags, false)
			if err != nil {
				return err
			}
			defer shutdown()

			resources, err := f.ListApiResources(ctx)
			if err != nil {
				return err
			}
			var target *model.ApiResource
			for i := range resources {
				if resources[i].Plural == plural {
					target = &resources[i]
					break
				}
			}
			if target == nil {
				return fmt.Errorf("no such API resource %q", plural)
			}

			selector, err := model.NewObjectSelector(*target, namespace)
			if err != nil {
				return err
			}

			queue, err := f.ListThenWatch(ctx, selector)
			if err != nil {
				return err
			}
			defer f.StopWatching(ctx, selector)

			for {
				event, ok := queue.RecvContext(ctx)
				if !ok {
					return ctx.Err()
				}
				if event.Action == model.ActionError {
					return fmt.Errorf("watch failed: %w", event.Err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", event.Action, selector.Pretty())
			}
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace to watch (omit for non-namespaced resources)")
	return cmd
}
