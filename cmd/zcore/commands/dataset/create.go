package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var (
	createType    string
	createProps   []string
	createVolsize string
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a filesystem or volume",
	Long: `Create a filesystem or volume.

Volumes require a size, given either with --volsize or as a volsize
property.

Examples:
  # Create a filesystem
  zcore dataset create tank/data

  # Create a filesystem with properties
  zcore dataset create tank/data --prop compression=zstd

  # Create a 10 GiB volume
  zcore dataset create tank/vol --type volume --volsize 10Gi`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", "filesystem", "Dataset type (filesystem|volume)")
	createCmd.Flags().StringArrayVar(&createProps, "prop", nil, "Property to set (key=value, repeatable)")
	createCmd.Flags().StringVar(&createVolsize, "volsize", "", "Volume size (volumes only, e.g. 10Gi)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	var typ zfs.DatasetType
	switch createType {
	case "filesystem", "fs":
		typ = zfs.DatasetFilesystem
	case "volume", "vol":
		typ = zfs.DatasetVolume
	default:
		return fmt.Errorf("invalid dataset type %q: want filesystem or volume", createType)
	}

	props, err := cmdutil.ParseProperties(createProps)
	if err != nil {
		return err
	}
	if createVolsize != "" {
		size, err := bytesize.ParseByteSize(createVolsize)
		if err != nil {
			return fmt.Errorf("invalid volsize: %w", err)
		}
		if props == nil {
			props = make(map[string]any, 1)
		}
		props["volsize"] = size.Uint64()
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Create(ctx, name, &zfs.CreateOptions{Type: typ, Properties: props}); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Dataset %q created", name))
		return nil
	})
}
