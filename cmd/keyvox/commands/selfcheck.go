package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyvox/keyvox/pkg/audio"
)

var selfcheckCmd = &cobra.Command{
	Use:   "selfcheck <first.wav> <second.wav>",
	Short: "Compare two recordings of the same speaker",
	Long: `Selfcheck runs two recordings through the verification pipeline
and scores them against each other. Use it to sanity-check microphone
and environment quality before enrolling: two takes of the same phrase
by the same speaker should pass.

Example:
  keyvox selfcheck take1.wav take2.wav`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := loadWAV(args[0])
		if err != nil {
			return err
		}
		second, err := loadWAV(args[1])
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

		res, err := g.Compare(cmd.Context(), first, second)
		if err != nil {
			switch {
			case errors.Is(err, audio.ErrTooSilent):
				return fmt.Errorf("a recording is too silent, speak louder and closer to the microphone")
			case errors.Is(err, audio.ErrTooShort):
				return fmt.Errorf("a recording is too short, speak for the whole duration")
			}
			return err
		}

		fmt.Printf("full=%.3f seg=%.3f fused=%.3f thr=%.3f -> %s\n",
			res.FullCos, res.SegCos, res.Fused, res.Threshold, passFail(res.Accepted))
		if !res.Accepted {
			return fmt.Errorf("self-check failed; adjust your microphone or environment")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selfcheckCmd)
}
