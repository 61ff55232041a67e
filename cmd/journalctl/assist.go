package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a question about past entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().Ask(cmd.Context(), userFlag, strings.Join(args, " "))
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
}

func newTranscribeCmd() *cobra.Command {
	var mime string
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe a voice recording (FILE may be - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			audio, err := readAudio(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(audio) == 0 {
				return fmt.Errorf("recording is empty")
			}
			if mime == "" {
				mime = audioMime(args[0])
			}
			raw, err := newClient().Transcribe(cmd.Context(), userFlag, audio, mime)
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
	cmd.Flags().StringVarP(&mime, "mime", "m", "", "Content type (guessed from the extension when empty)")
	return cmd
}

func audioMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/webm"
	}
}

func newMaintainCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Show maintenance status, or start a pass with --run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			c := newClient()
			if run {
				raw, err := c.RunMaintenance(cmd.Context(), userFlag)
				return printRaw(cmd.OutOrStdout(), raw, err)
			}
			raw, err := c.Maintenance(cmd.Context(), userFlag)
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "Start retrofit and backfill now")
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := newClient().Health(cmd.Context())
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
}
