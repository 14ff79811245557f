package commands

import (
	"fmt"
	"path/filepath"

	"github.com/mosaicnetworks/crosswalk/src/config"
	"github.com/mosaicnetworks/crosswalk/src/crosswalk"
	"github.com/mosaicnetworks/crosswalk/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	pubKeyFile            string
	defaultPrivateKeyFile = filepath.Join(_config.DataDir, config.DefaultKeyfile)
	defaultPublicKeyFile  = filepath.Join(_config.DataDir, config.DefaultPubKeyfile)
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", defaultPublicKeyFile, "File where the public key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	key, err := crosswalk.Keygen(privKeyFile, pubKeyFile)
	if err != nil {
		return err
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)
	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)
	fmt.Println(keys.PublicKeyHex(&key.PublicKey))

	return nil
}
