package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	obscurcore "github.com/zenith-nz/ObscurCore"
)

var (
	packOutput    string
	packKeyFile   string
	packIdentity  string
	packPeer      string
	packLayout    string
	packPadMin    int
	packPadMax    int
	packRecursive bool
)

var packCmd = &cobra.Command{
	Use:   "pack <file-or-dir>...",
	Short: "Write files and directories into an encrypted package",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := resolveKeying(packKeyFile, packIdentity, packPeer)
		if err != nil {
			return err
		}

		var w *obscurcore.Writer
		if keys.hybridMode {
			w, err = obscurcore.NewHybridWriter(keys.curve, keys.ownPriv, keys.peerPub)
		} else {
			w, err = obscurcore.NewSymmetricWriter(keys.symmetric)
		}
		if err != nil {
			return err
		}

		layout := packLayout
		if !cmd.Flags().Changed("layout") && viper.IsSet("layout") {
			layout = viper.GetString("layout")
		}
		if err := w.SetPayloadLayout(layout, packPadMin, packPadMax); err != nil {
			return err
		}

		count := 0
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				items, err := w.AddDirectory(path, packRecursive)
				if err != nil {
					return err
				}
				count += len(items)
			} else {
				if _, err := w.AddFile(path); err != nil {
					return err
				}
				count++
			}
		}
		logger.Debugw("items staged", "count", count)

		out, err := os.Create(packOutput)
		if err != nil {
			return err
		}
		if err := w.WriteAndClose(out); err != nil {
			os.Remove(packOutput)
			return fmt.Errorf("write package: %w", err)
		}
		logger.Infow("package written", "output", packOutput, "items", count, "layout", layout)
		return nil
	},
}

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "out.ocpkg", "output package path")
	packCmd.Flags().StringVar(&packKeyFile, "key", "", "symmetric pre-key file (base64url)")
	packCmd.Flags().StringVar(&packIdentity, "identity", "", "sender identity JSON (UM1)")
	packCmd.Flags().StringVar(&packPeer, "peer", "", "recipient public identity JSON (UM1)")
	packCmd.Flags().StringVar(&packLayout, "layout", obscurcore.LayoutFrameshift, "payload layout: Simple or Frameshift")
	packCmd.Flags().IntVar(&packPadMin, "pad-min", 0, "frameshift minimum padding run (pad-min and pad-max both 0 = defaults)")
	packCmd.Flags().IntVar(&packPadMax, "pad-max", 0, "frameshift maximum padding run (pad-min and pad-max both 0 = defaults)")
	packCmd.Flags().BoolVarP(&packRecursive, "recursive", "r", true, "recurse into directories")
	viper.BindPFlag("layout", packCmd.Flags().Lookup("layout"))
	rootCmd.AddCommand(packCmd)
}
