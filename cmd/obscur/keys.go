package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	obscurcore "github.com/zenith-nz/ObscurCore"
)

// keying is the resolved key arrangement shared by pack and unpack.
type keying struct {
	symmetric []byte

	curve      string
	ownPriv    []byte
	peerPub    []byte
	hybridMode bool
}

// resolveKeying turns the key flags into a concrete arrangement: either a
// symmetric pre-key file or a local identity plus peer public identity.
func resolveKeying(keyFile, identityFile, peerFile string) (*keying, error) {
	switch {
	case keyFile != "" && identityFile == "" && peerFile == "":
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, err
		}
		key, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("key file is not base64url: %w", err)
		}
		return &keying{symmetric: key}, nil

	case keyFile == "" && identityFile != "" && peerFile != "":
		own, err := loadIdentity(identityFile)
		if err != nil {
			return nil, err
		}
		peer, err := loadIdentity(peerFile)
		if err != nil {
			return nil, err
		}
		if own.Curve != peer.Curve {
			return nil, fmt.Errorf("identity curves differ: %s vs %s", own.Curve, peer.Curve)
		}
		ownPriv, _, err := own.Keys()
		if err != nil {
			return nil, err
		}
		if ownPriv == nil {
			return nil, fmt.Errorf("identity %s has no private key", identityFile)
		}
		_, peerPub, err := peer.Keys()
		if err != nil {
			return nil, err
		}
		return &keying{
			curve:      own.Curve,
			ownPriv:    ownPriv,
			peerPub:    peerPub,
			hybridMode: true,
		}, nil

	default:
		return nil, fmt.Errorf("supply either --key, or --identity with --peer")
	}
}

func loadIdentity(path string) (*obscurcore.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return obscurcore.ImportIdentity(data)
}

var keygenCurve string

var keygenCmd = &cobra.Command{
	Use:   "keygen <output.json>",
	Short: "Generate a UM1 identity keypair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := obscurcore.GenerateIdentity(keygenCurve)
		if err != nil {
			return err
		}
		data, err := id.Export()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o600); err != nil {
			return err
		}
		pubData, err := id.Public().Export()
		if err != nil {
			return err
		}
		pubPath := strings.TrimSuffix(args[0], ".json") + ".pub.json"
		if err := os.WriteFile(pubPath, pubData, 0o644); err != nil {
			return err
		}
		logger.Infow("identity generated", "curve", keygenCurve, "identity", args[0], "public", pubPath)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenCurve, "curve", "secp256r1", "elliptic curve for the identity")
	rootCmd.AddCommand(keygenCmd)
}
