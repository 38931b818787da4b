package main

import (
	"fmt"
	"os"

	"github.com/asrlabs/asr-gateway/internal/client"
	"github.com/asrlabs/asr-gateway/internal/engine"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "asrctl",
	Short: "Streaming transcription client for the ASR gateway",
}

func init() {
	rootCmd.AddCommand(
		pingCmd(),
		transcribeCmd(),
	)
}

func pingCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the gateway is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg, err := loadFileConfig()
			if err != nil {
				return err
			}
			if server == "" {
				server = fileCfg.Server
			}
			if server == "" {
				server = "http://localhost:8000"
			}

			if err := client.New(server).Ping(cmd.Context()); err != nil {
				return fmt.Errorf("gateway unreachable at %s: %w", server, err)
			}
			fmt.Printf("gateway reachable at %s\n", server)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "gateway base URL")
	return cmd
}

func transcribeCmd() *cobra.Command {
	var (
		server      string
		modelSize   string
		device      string
		computeType string
		beamSize    int
		language    string
		upload      bool
		useWS       bool
		savePath    string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <media>",
		Short: "Transcribe a media file, streaming results live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mediaPath := args[0]

			fileCfg, err := loadFileConfig()
			if err != nil {
				return err
			}
			fileCfg.apply(&server, &modelSize, &device, &computeType, &language, &beamSize)

			opts := engine.Options{
				ModelSize:   modelSize,
				Device:      device,
				ComputeType: computeType,
				BeamSize:    beamSize,
				Language:    language,
			}

			renderer := client.NewRenderer(os.Stdout)
			c := client.New(server)
			c.OnEvent = renderer.Render

			if err := c.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("gateway unreachable at %s: %w", server, err)
			}

			var transcript *client.Transcript
			switch {
			case upload:
				transcript, err = c.Upload(cmd.Context(), mediaPath, opts)
			case useWS:
				transcript, err = c.TranscribeWS(cmd.Context(), mediaPath, opts)
			default:
				transcript, err = c.Transcribe(cmd.Context(), mediaPath, opts)
			}
			if err != nil {
				// A protocol violation still carries the partial transcript.
				if transcript != nil && len(transcript.Segments) > 0 {
					fmt.Fprintf(os.Stderr, "received %d segments before failure\n", len(transcript.Segments))
				}
				return err
			}

			renderer.Report(transcript)

			if savePath != "" {
				jsonPath, err := transcript.Save(savePath)
				if err != nil {
					return fmt.Errorf("save transcript: %w", err)
				}
				fmt.Printf("transcript saved to %s\n", savePath)
				fmt.Printf("details saved to %s\n", jsonPath)
			}

			if transcript.Outcome() != client.OutcomeComplete {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "gateway base URL")
	cmd.Flags().StringVar(&modelSize, "model", "", "model size (small, medium, large-v3)")
	cmd.Flags().StringVar(&device, "device", "", "device (cuda, cpu)")
	cmd.Flags().StringVar(&computeType, "compute-type", "", "compute precision (float16, int8_float16, int8)")
	cmd.Flags().IntVar(&beamSize, "beam-size", 0, "beam search width")
	cmd.Flags().StringVar(&language, "language", "", "language code, or auto to detect")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload the file instead of passing a server path")
	cmd.Flags().BoolVar(&useWS, "ws", false, "stream over WebSocket instead of SSE")
	cmd.Flags().StringVar(&savePath, "save", "", "write the transcript to this file")
	return cmd
}
