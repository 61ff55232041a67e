package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/echovault/echovault/internal/client"
)

// printRaw writes a response body followed by a newline.
func printRaw(w io.Writer, raw json.RawMessage, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

func newSubmitCmd() *cobra.Command {
	var reply, category string
	cmd := &cobra.Command{
		Use:   "submit [TEXT]",
		Short: "Submit a journal entry (reads stdin when TEXT is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			text, err := entryText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			raw, err := newClient().Submit(cmd.Context(), userFlag, client.SubmitRequest{
				Text:         text,
				ReplyContext: reply,
				Category:     category,
			})
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
	cmd.Flags().StringVarP(&reply, "reply", "r", "", "Prompt this entry answers")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category (personal, work)")
	return cmd
}

func entryText(args []string, in io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("entry text cannot be empty")
	}
	return text, nil
}

func newListCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().List(cmd.Context(), userFlag, opts)
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "Maximum entries to return")
	cmd.Flags().StringVar(&opts.Before, "before", "", "Only entries created before this RFC3339 time")
	cmd.Flags().StringVar(&opts.After, "after", "", "Only entries created after this RFC3339 time")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ENTRY_ID",
		Short: "Get one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().Get(cmd.Context(), userFlag, args[0])
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
}

func newEditCmd() *cobra.Command {
	var title, category string
	cmd := &cobra.Command{
		Use:   "edit ENTRY_ID",
		Short: "Edit an entry's title or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			var req client.EditRequest
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("category") {
				req.Category = &category
			}
			if req.Title == nil && req.Category == nil {
				return fmt.Errorf("--title or --category required")
			}
			raw, err := newClient().Edit(cmd.Context(), userFlag, args[0], req)
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	return cmd
}

func newResolveCmd() *cobra.Command {
	resolveCmd := &cobra.Command{Use: "resolve", Short: "Answer a pending safety or date prompt"}

	gateCmd := &cobra.Command{
		Use:   "gate PENDING_ID okay|support|crisis",
		Short: "Answer the safety check-in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().ResolveGate(cmd.Context(), userFlag, args[0], args[1])
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}

	temporalCmd := &cobra.Command{
		Use:   "temporal PENDING_ID use-detected|use-today",
		Short: "Confirm or reject the detected entry date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().ResolveTemporal(cmd.Context(), userFlag, args[0], args[1])
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}

	resolveCmd.AddCommand(gateCmd, temporalCmd)
	return resolveCmd
}

func newDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss PENDING_ID",
		Short: "Dismiss a pending prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().Dismiss(cmd.Context(), userFlag, args[0])
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
}

func newOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Show entries queued while the store was unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			raw, err := newClient().Offline(cmd.Context(), userFlag)
			return printRaw(cmd.OutOrStdout(), raw, err)
		},
	}
}

// readAudio loads a recording from path, or stdin for "-".
func readAudio(path string, in io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}
