package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"containernerd-mcp-server/internal/container"

	"github.com/spf13/cobra"
)

func newContainersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "List the browser's containers and their tab counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, "containers")
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rt.registry.List())
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var (
		id      string
		name    string
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete one container and close the tabs it owns",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, "delete")
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if err := rt.connect(cmd.Context()); err != nil {
				return err
			}

			o := rt.deleter.Delete(cmd.Context(), deleteRequest(cfg.Containers.IDAttribute, cfg.Containers.NameAttribute, cmd.Flags().Changed("id"), id, name, confirm))
			if err := writeJSON(cmd.OutOrStdout(), o); err != nil {
				return err
			}
			if o.State == container.StateDeleted {
				return rt.registry.Save(cfg.Containers.RegistryStore)
			}
			if errors.Is(o.Err, container.ErrCancelled) {
				return nil
			}
			return fmt.Errorf("container not deleted: %s", o.Reason)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Browser context id of the container")
	cmd.Flags().StringVar(&name, "name", "", "Display name used in the notice")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the deletion")
	return cmd
}

// deleteRequest builds the interaction a command line invocation stands for.
// An --id flag that was passed empty is kept so the validator rejects it.
func deleteRequest(idAttr, nameAttr string, idSet bool, id, name string, confirm bool) container.DeleteRequest {
	if idAttr == "" {
		idAttr = container.DefaultIDAttribute
	}
	if nameAttr == "" {
		nameAttr = container.DefaultNameAttribute
	}
	attrs := map[string]string{}
	if idSet {
		attrs[idAttr] = id
	}
	if name != "" {
		attrs[nameAttr] = name
	}
	return container.DeleteRequest{
		Interaction: container.InteractionContext{Attributes: attrs},
		Confirmed:   confirm,
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
