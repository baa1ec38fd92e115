package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"chatstream/internal/mockserver"
)

var (
	flagMockPort  int
	flagMockReply string
	flagMockStyle string
	flagMockDelay time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a local mock OpenAI-compatible provider",
	Long: `Run a local provider that streams canned replies over SSE.
Useful for developing against the client without network access or API
keys. Point a profile's endpoint at http://localhost:<port>.`,
	RunE: runMock,
}

func init() {
	mockCmd.Flags().IntVar(&flagMockPort, "port", 8080, "port to listen on")
	mockCmd.Flags().StringVar(&flagMockReply, "reply", "", "canned reply text (empty echoes the user message)")
	mockCmd.Flags().StringVar(&flagMockStyle, "style", "chat", "stream frame style: chat, bare, or plain")
	mockCmd.Flags().DurationVar(&flagMockDelay, "delay", 50*time.Millisecond, "delay between streamed words")
	rootCmd.AddCommand(mockCmd)
}

func runMock(cmd *cobra.Command, args []string) error {
	srv, err := mockserver.New(mockserver.Options{
		Port:       flagMockPort,
		Reply:      flagMockReply,
		Style:      mockserver.FrameStyle(flagMockStyle),
		TokenDelay: flagMockDelay,
	})
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
