package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyvox/keyvox/pkg/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <username> <recording.wav>",
	Short: "Verify a recording against a user's stored voiceprint",
	Long: `Verify scores a WAV recording against the claimed identity's
voiceprint and prints the decision with its score breakdown.

Exit status is 0 on accept and 1 on reject.

Example:
  keyvox verify alice samples/alice_probe.wav`,
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

		res, err := g.Verify(cmd.Context(), username, rec)
		if err != nil {
			return err
		}

		if res.Rejected() {
			switch res.Rejection {
			case verify.RejectTooSilent:
				return fmt.Errorf("recording is too silent, speak louder and closer to the microphone")
			case verify.RejectTooShort:
				return fmt.Errorf("recording is too short, speak for the whole duration")
			case verify.RejectInsufficientAudio:
				return fmt.Errorf("recording is too short or noisy, please try again")
			case verify.RejectVoiceprintNotFound:
				return fmt.Errorf("no voiceprint enrolled for %q", username)
			}
			return fmt.Errorf("verification rejected: %s", res.Rejection)
		}

		printResult(res)
		if !res.Accepted {
			return fmt.Errorf("verification failed for %q", username)
		}
		fmt.Printf("Verified %q\n", username)
		return nil
	},
}

func printResult(res verify.Result) {
	fmt.Printf("full=%.3f seg=%.3f fused=%.3f", res.FullCos, res.SegCos, res.Fused)
	if res.ZNormalized {
		fmt.Printf(" z=%.3f (cohort=%d med=%.3f mad=%.3f)",
			res.FinalScore, res.CohortSize, res.CohortMedian, res.CohortMAD)
	}
	fmt.Printf(" | score=%.3f thr=%.3f -> %s\n",
		res.FinalScore, res.Threshold, passFail(res.Accepted))
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
