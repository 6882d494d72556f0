package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dunamismax/voteframe/internal/assets"
	"github.com/dunamismax/voteframe/internal/domain"
	"github.com/dunamismax/voteframe/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func framesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "List the frame catalog and which asset each frame resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := newResolver()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tASSET\tSTATUS")
			for _, id := range domain.Frames {
				asset, err := resolver.Resolve(cmd.Context(), id)
				switch {
				case err != nil:
					fmt.Fprintf(tw, "%s\t%s\t-\tunavailable\n", id, id.Label())
					logger.WithField("frame", id).Debugf("%v", err)
				case asset.Fallback:
					fmt.Fprintf(tw, "%s\t%s\t%s\tfallback\n", id, id.Label(), asset.Name)
				default:
					fmt.Fprintf(tw, "%s\t%s\t%s\tok\n", id, id.Label(), asset.Name)
				}
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(framesPushCmd())
	return cmd
}

// framesPushCmd uploads a local frames directory to the configured bucket so
// the s3 asset source can serve it.
func framesPushCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "push DIR",
		Short: "Upload frame assets from DIR to object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := newStorageClient()
			if err != nil {
				return err
			}
			if err := client.EnsureBucket(ctx); err != nil {
				return err
			}

			files, err := frameFiles(args[0], cfg.Assets.Formats)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no frame assets found")
			}

			var total uint64
			for _, name := range files {
				key := assets.ObjectKey(cfg.Assets.Prefix, name)
				if !force {
					exists, err := client.ObjectExists(ctx, key)
					if err != nil {
						return err
					}
					if exists {
						fmt.Fprintf(cmd.OutOrStdout(), "skip %s (exists)\n", key)
						continue
					}
				}

				data, err := os.ReadFile(filepath.Join(args[0], name))
				if err != nil {
					return fmt.Errorf("read frame asset: %w", err)
				}
				if err := client.WriteObject(ctx, key, data, storage.ContentType(filepath.Ext(name))); err != nil {
					return err
				}
				total += uint64(len(data))
				fmt.Fprintf(cmd.OutOrStdout(), "put %s (%s)\n", key, humanize.Bytes(uint64(len(data))))
			}

			keys, err := client.ListObjects(ctx, cfg.Assets.Prefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s, %d objects under s3://%s/%s\n",
				humanize.Bytes(total), len(keys), client.Bucket(), cfg.Assets.Prefix)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite objects that already exist")
	return cmd
}

// frameFiles returns the catalog files present in dir for every format of the
// fallback chain.
func frameFiles(dir string, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = assets.DefaultFormats
	}

	var out []string
	for _, id := range domain.Frames {
		for _, ext := range formats {
			name := id.AssetName() + "." + strings.TrimPrefix(ext, ".")
			info, err := os.Stat(filepath.Join(dir, name))
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", name, err)
			}
			if info.Mode().IsRegular() {
				out = append(out, name)
			}
		}
	}
	return out, nil
}
