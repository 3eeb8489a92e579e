// Package commands implements the keyvox CLI command tree.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyvox/keyvox/pkg/cli"
	"github.com/keyvox/keyvox/pkg/embedding"
	"github.com/keyvox/keyvox/pkg/kv"
	"github.com/keyvox/keyvox/pkg/profile"
	"github.com/keyvox/keyvox/pkg/verify"
	"github.com/keyvox/keyvox/pkg/voiceprint"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "keyvox",
	Short: "Voice-biometric authentication gateway",
	Long: `keyvox enrolls voiceprints and verifies speakers against them.

A voiceprint is a speaker embedding derived from a short recording.
Verification fuses a full-utterance similarity with a segment-level
one and, when enough users are enrolled, normalizes the score against
the cohort of other identities.

Data and configuration live under ~/.keyvox/`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.keyvox/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// app bundles the stores every command needs. The embedding model is
// loaded separately because profile-only commands should not pay for it.
type app struct {
	cfg      *cli.Config
	store    kv.Store
	prints   *voiceprint.KV
	profiles *profile.KV
}

func openApp() (*app, func(), error) {
	cfg, err := cli.LoadConfigWithPath(configPath)
	if err != nil {
		return nil, nil, err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, nil, err
		}
		if err := paths.EnsureDataDir(); err != nil {
			return nil, nil, err
		}
		dataDir = paths.DataDir()
	}

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dataDir})
	if err != nil {
		return nil, nil, fmt.Errorf("open store at %s: %w", dataDir, err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		prints:   voiceprint.NewKV(store, voiceprint.WithModelTag("eres2net")),
		profiles: profile.NewKV(store),
	}
	closer := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing store", "err", err)
		}
	}
	return a, closer, nil
}

// gateway loads the embedding model and builds the verification
// pipeline. The returned closer releases the model session.
func (a *app) gateway() (*verify.Gateway, func(), error) {
	mc := a.cfg.Model
	if mc.Path == "" {
		paths, err := cli.NewPaths()
		if err != nil {
			return nil, nil, err
		}
		mc.Path = paths.ModelDir() + "/eres2net.onnx"
	}

	model, err := embedding.NewONNXModel(embedding.ONNXConfig{
		ModelPath:         mc.Path,
		InputName:         mc.InputName,
		OutputName:        mc.OutputName,
		Dim:               mc.Dim,
		SampleRate:        mc.SampleRate,
		SharedLibraryPath: mc.SharedLibrary,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load embedding model: %w", err)
	}

	g := verify.New(model, a.prints,
		verify.WithParams(a.cfg.Verify.Params()),
		verify.WithLogger(slog.Default()))
	closer := func() {
		if err := model.Close(); err != nil {
			slog.Warn("closing model", "err", err)
		}
	}
	return g, closer, nil
}
