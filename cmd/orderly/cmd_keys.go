package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/orderly/pkg/auth"
)

var (
	keysDir  string
	keysBits int
)

// orderly keys:generate writes the RSA pair used to sign tokens.
var keysGenerateCmd = &cobra.Command{
	Use:   "keys:generate",
	Short: "Generate an RSA key pair for signing access tokens",
	RunE: func(cmd *cobra.Command, _ []string) error {
		private, public, err := auth.GenerateKeyPair(keysBits)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(keysDir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", keysDir, err)
		}
		privPath := filepath.Join(keysDir, "private.pem")
		pubPath := filepath.Join(keysDir, "public.pem")

		if _, err := os.Stat(privPath); err == nil {
			return fmt.Errorf("%s already exists; remove it first", privPath)
		}
		if err := os.WriteFile(privPath, private, 0o600); err != nil {
			return err
		}
		if err := os.WriteFile(pubPath, public, 0o644); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %s and %s\n\n", privPath, pubPath)
		fmt.Fprintln(out, "Add to .env:")
		fmt.Fprintf(out, "  SECRET_JWT_PRIVATE_KEY_FILE=%s\n", privPath)
		fmt.Fprintf(out, "  SECRET_JWT_PUBLIC_KEY_FILE=%s\n", pubPath)
		return nil
	},
}

func init() {
	keysGenerateCmd.Flags().StringVar(&keysDir, "dir", "storage/keys", "directory to write private.pem and public.pem")
	keysGenerateCmd.Flags().IntVar(&keysBits, "bits", 2048, "RSA modulus size")
}
