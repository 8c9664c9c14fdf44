// main package for the voicedesign-client
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"

	"github.com/di-osc/qwen3-design-api/internal/client"
)

var errTextArgRequired = errors.New("text argument is required unless --list-audio is given")

// Flag defaults.
const (
	defaultHost    = "localhost"
	defaultPort    = 8867
	defaultTimeout = 60 * time.Second
)

// flags holds the parsed command-line flag values.
type flags struct {
	instruct  string
	language  string
	output    string
	host      string
	port      int
	timeout   time.Duration
	listAudio string
}

func newRootCommand() *cobra.Command {
	var opts flags

	cmd := &cobra.Command{
		Use:   "voicedesign-client [text]",
		Short: "Client for the voice design API",
		Long: `Client for the voice design API.

Generates speech from text with a natural-language voice description,
or lists audio files in a directory with --list-audio.

Examples:
  voicedesign-client "你好，世界"
  voicedesign-client "hello" -l English -i "deep male voice" -o hello.wav
  voicedesign-client --list-audio ./batch_output`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return run(opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.instruct, "instruct", "i", client.DefaultInstruct,
		"voice description, e.g. 温柔的女声")
	cmd.Flags().StringVarP(&opts.language, "language", "l", client.DefaultLanguage,
		"text language")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"output file path")
	cmd.Flags().StringVar(&opts.host, "host", defaultHost,
		"service host")
	cmd.Flags().IntVar(&opts.port, "port", defaultPort,
		"service port")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultTimeout,
		"request timeout")
	cmd.Flags().StringVar(&opts.listAudio, "list-audio", "",
		"list audio files in the given directory instead of generating")

	return cmd
}

func run(opts flags, args []string) error {
	log, err := logger.New(os.TempDir(), "voicedesign-client.log")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		_ = log.Close()
	}()

	baseURL := fmt.Sprintf("http://%s:%d", opts.host, opts.port)
	c := client.New(baseURL, opts.timeout, log)

	if opts.listAudio != "" {
		return listAudioFiles(c, opts.listAudio)
	}

	if len(args) == 0 {
		return errTextArgRequired
	}

	return generate(c, opts, args[0])
}

func listAudioFiles(c *client.Client, directory string) error {
	files, err := c.ListAudioFiles(directory)
	if err != nil {
		return fmt.Errorf("failed to list audio files: %w", err)
	}

	fmt.Printf("Audio files in %s:\n", directory)

	for _, file := range files {
		fmt.Printf("  %s\n", file)
	}

	return nil
}

func generate(c *client.Client, opts flags, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	path, err := c.GenerateAudio(ctx, client.GenerateOptions{
		Text:       text,
		Language:   opts.language,
		Instruct:   opts.instruct,
		OutputFile: opts.output,
	})
	if err != nil {
		return fmt.Errorf("failed to generate audio: %w", err)
	}

	fmt.Printf("Generated: %s\n", path)

	return nil
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
