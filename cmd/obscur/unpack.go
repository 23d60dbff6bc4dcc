package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	obscurcore "github.com/zenith-nz/ObscurCore"
)

var (
	unpackDest     string
	unpackKeyFile  string
	unpackIdentity string
	unpackPeer     string
)

func newReader(keyFile, identityFile, peerFile string) (*obscurcore.Reader, error) {
	keys, err := resolveKeying(keyFile, identityFile, peerFile)
	if err != nil {
		return nil, err
	}
	if keys.hybridMode {
		return obscurcore.NewHybridReader(keys.curve, keys.ownPriv, keys.peerPub)
	}
	return obscurcore.NewSymmetricReader(keys.symmetric)
}

var unpackCmd = &cobra.Command{
	Use:   "unpack <package>",
	Short: "Extract a package into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newReader(unpackKeyFile, unpackIdentity, unpackPeer)
		if err != nil {
			return err
		}
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		view, err := r.ReadManifest(in)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		logger.Debugw("manifest opened", "scheme", view.Scheme, "items", len(view.Items))

		if err := r.ExtractAll(unpackDest); err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		logger.Infow("package extracted", "destination", unpackDest, "items", len(view.Items))
		return nil
	},
}

var (
	inspectKeyFile  string
	inspectIdentity string
	inspectPeer     string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <package>",
	Short: "Authenticate a package and list its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newReader(inspectKeyFile, inspectIdentity, inspectPeer)
		if err != nil {
			return err
		}
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		view, err := r.ReadManifest(in)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "PATH\tTYPE\tSIZE\tSTORED\n")
		for _, it := range view.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", it.RelativePath, itemTypeName(it.Type), it.ExternalLength, it.InternalLength)
		}
		return tw.Flush()
	},
}

func itemTypeName(t obscurcore.ItemType) string {
	switch t {
	case obscurcore.ItemTypeUTF8Text:
		return "text"
	case obscurcore.ItemTypeKeyAction:
		return "key-action"
	default:
		return "binary"
	}
}

func init() {
	unpackCmd.Flags().StringVarP(&unpackDest, "dest", "d", ".", "destination directory")
	unpackCmd.Flags().StringVar(&unpackKeyFile, "key", "", "symmetric pre-key file (base64url)")
	unpackCmd.Flags().StringVar(&unpackIdentity, "identity", "", "recipient identity JSON (UM1)")
	unpackCmd.Flags().StringVar(&unpackPeer, "peer", "", "sender public identity JSON (UM1)")
	rootCmd.AddCommand(unpackCmd)

	inspectCmd.Flags().StringVar(&inspectKeyFile, "key", "", "symmetric pre-key file (base64url)")
	inspectCmd.Flags().StringVar(&inspectIdentity, "identity", "", "recipient identity JSON (UM1)")
	inspectCmd.Flags().StringVar(&inspectPeer, "peer", "", "sender public identity JSON (UM1)")
	rootCmd.AddCommand(inspectCmd)
}
