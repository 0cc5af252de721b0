package main

import (
	"fmt"
	"os"

	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/handlers"
	"github.com/OctopusSolutionsEngineering/GitOpsManifestUpdater/internal/domain/models"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "manifestupdater",
		Short:         "Rewrites GitOps deployment manifests to reference newly built container images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newUpdateCommand(), newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "update SERVICE REPOSITORY TAG",
		Short:                 "Point a service's deployment manifest at a new image and push the change",
		Args:                  cobra.ExactArgs(3),
		DisableFlagsInUseLine: true,
		RunE: func(c *cobra.Command, args []string) error {
			updateHandler, err := handlers.NewUpdateManifestHandler()

			if err != nil {
				return err
			}

			result, err := updateHandler.UpdateManifest(c.Context(), models.ManifestUpdateRequest{
				Service:    args[0],
				Repository: args[1],
				Tag:        args[2],
			})

			if err != nil {
				return err
			}

			if result.NoOp {
				fmt.Println("Nothing to update: the manifest already references the requested image")
				return nil
			}

			fmt.Println("Pushed commit " + result.CommitSha)
			return nil
		},
	}
}
