// Command keyvox is the voice-biometric authentication CLI.
//
// Usage:
//
//	keyvox [flags] <command> [args]
//
// Commands:
//
//	enroll     - Enroll a user's voiceprint from a WAV recording
//	verify     - Verify a recording against a user's stored voiceprint
//	selfcheck  - Compare two recordings of the same speaker
//	users      - Manage user profiles
//
// Configuration:
//
//	The CLI stores configuration and data in ~/.keyvox/
//	Edit ~/.keyvox/config.yaml to point at the embedding model and to
//	override pipeline tunables.
package main

import (
	"fmt"
	"os"

	"github.com/keyvox/keyvox/cmd/keyvox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
