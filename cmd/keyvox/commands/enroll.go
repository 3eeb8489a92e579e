package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyvox/keyvox/pkg/audio"
	"github.com/keyvox/keyvox/pkg/profile"
	"github.com/keyvox/keyvox/pkg/verify"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <username> <recording.wav>",
	Short: "Enroll a user's voiceprint from a recording",
	Long: `Enroll builds a voiceprint from a WAV recording and stores it.

The recording should be at least 2 seconds of clear speech. An existing
voiceprint for the same username is replaced wholesale.

Example:
  keyvox enroll alice samples/alice_enroll.wav`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		username, wavPath := args[0], args[1]

		rec, err := loadWAV(wavPath)
		if err != nil {
			return err
		}

		a, closeApp, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp()

		g, closeModel, err := a.gateway()
		if err != nil {
			return err
		}
		defer closeModel()

		ctx := cmd.Context()
		if err := g.Enroll(ctx, username, rec); err != nil {
			switch {
			case errors.Is(err, audio.ErrTooSilent):
				return fmt.Errorf("recording is too silent, speak louder and closer to the microphone")
			case errors.Is(err, audio.ErrTooShort):
				return fmt.Errorf("recording is too short, speak for the whole duration")
			case errors.Is(err, verify.ErrInsufficientAudio):
				return fmt.Errorf("recording is too short or noisy, please try again")
			}
			return err
		}

		if err := profile.SetVoiceEnrolled(ctx, a.profiles, username, true); err != nil {
			return fmt.Errorf("voiceprint stored but profile update failed: %w", err)
		}

		fmt.Printf("Enrolled voiceprint for %q\n", username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}
