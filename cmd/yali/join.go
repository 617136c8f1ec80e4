package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/logging"
	"github.com/cagdaskarabulut/yali-speak/internal/media"
	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
	"github.com/cagdaskarabulut/yali-speak/internal/roomname"
	"github.com/cagdaskarabulut/yali-speak/internal/signalclient"
	"github.com/cagdaskarabulut/yali-speak/internal/ui"
)

const connectTimeout = 15 * time.Second

var (
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagCodec    string
	flagCapture  string
	flagRecord   string
	flagHeadless bool
	flagMuted    bool
	flagVolume   float64

	flagMemorable bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a voice room",
	Long: `Join a voice room and link with everyone in it.

Examples:
  yali join 6f1c2d7e
  yali join https://yali.example.com/room/6f1c2d7e
  yali join lobby --headless --record ./calls`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return joinRoom(cmd.Context(), roomID)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new room and join it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := uuid.NewString()
		if flagMemorable {
			roomID = memorableRoomID(cmd.Context())
		}
		ui.PrintSuccessf("Created room %s", roomID)
		return joinRoom(cmd.Context(), roomID)
	},
}

// memorableRoomID picks a word-based id that no active room uses. The
// server's room list is best effort; without it any id is accepted.
func memorableRoomID(ctx context.Context) string {
	taken := map[string]bool{}
	cfg, err := config.Load(config.Options{ServerURL: flagServer, Domain: flagDomain})
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if rooms, err := fetchRooms(ctx, http.DefaultClient, cfg.RoomsURL()); err == nil {
			for _, r := range rooms {
				taken[r.ID] = true
			}
		}
	}
	return roomname.Unique(func(id string) bool { return taken[id] })
}

func joinRoom(ctx context.Context, roomID string) error {
	cfg, err := config.Load(config.Options{
		ServerURL:   flagServer,
		Domain:      flagDomain,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		ForceRelay:  flagRelay,
		Codec:       flagCodec,
		CaptureFile: flagCapture,
		RecordDir:   flagRecord,
	})
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	fallback := slog.LevelError
	if flagHeadless {
		fallback = slog.LevelInfo
	}
	log := logging.Init(flagLogLevel, fallback)

	if cfg.CaptureFile == "" {
		ui.PrintWarning("No capture file given, others will hear silence")
	}
	if cfg.RecordDir != "" {
		ui.PrintInfof("Recording participants to %s", cfg.RecordDir)
	}

	spinner := ui.NewConnectionSpinner("Connecting to server...")
	spinner.Start()

	client := signalclient.NewClient(cfg.ServerURL, codec, log)
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		spinner.Error("Could not reach the signaling server")
		return err
	}

	coord := mesh.New(mesh.Options{
		Signaler: client,
		Media:    media.NewEngine(cfg, log),
		Logger:   log,
		Volume:   flagVolume,
		Muted:    flagMuted,
	})
	if flagVolume == 0 {
		// A zero Options.Volume selects the default.
		coord.SetVolume(0)
	}
	go signalclient.NewHandler(client, coord).Start()

	spinner.UpdateMessage("Joining room...")
	if err := coord.Join(ctx, roomID); err != nil {
		spinner.Error("Could not join the room")
		coord.Leave()
		if errors.Is(err, mesh.ErrCaptureUnavailable) {
			return fmt.Errorf("%w (check --capture)", err)
		}
		return err
	}
	spinner.Success(fmt.Sprintf("Joined room %s", roomID))

	if flagHeadless {
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runHeadless(sigCtx, coord, log)
	}
	return ui.RunRoom(coord)
}

// runHeadless logs membership and link changes until interrupted or the
// connection drops.
func runHeadless(ctx context.Context, coord *mesh.Coordinator, log *slog.Logger) error {
	prev := coord.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return coord.Leave()
		case <-coord.Done():
			return coord.Err()
		case <-coord.Updates():
			cur := coord.Snapshot()
			for _, line := range describeChanges(prev, cur) {
				log.Info(line)
			}
			prev = cur
		}
	}
}

// describeChanges lists what differs between two snapshots in a form fit
// for a log line.
func describeChanges(prev, cur mesh.Status) []string {
	var out []string
	for _, id := range cur.Members {
		if id != cur.SelfID && !slices.Contains(prev.Members, id) {
			out = append(out, "participant joined: "+id)
		}
	}
	for _, id := range prev.Members {
		if id != prev.SelfID && !slices.Contains(cur.Members, id) {
			out = append(out, "participant left: "+id)
		}
	}
	for _, l := range cur.Links {
		old, ok := prev.Link(l.Remote)
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("link %s: %s as %s", l.Remote, l.State, l.Role))
		case old.State != l.State:
			out = append(out, fmt.Sprintf("link %s: %s", l.Remote, l.State))
		}
	}
	for _, l := range prev.Links {
		if _, ok := cur.Link(l.Remote); !ok {
			out = append(out, fmt.Sprintf("link %s: closed", l.Remote))
		}
	}
	if prev.Muted != cur.Muted {
		out = append(out, fmt.Sprintf("muted: %t", cur.Muted))
	}
	return out
}

// parseRoomInput accepts a bare room id or a room URL.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") {
		roomID, err := extractRoomIDFromURL(input)
		if err != nil {
			return "", err
		}
		return roomID, nil
	}

	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "room" && i+1 < len(parts) && parts[i+1] != "" {
			return url.PathUnescape(parts[i+1])
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

func init() {
	rootCmd.AddCommand(joinCmd, createCmd)

	for _, c := range []*cobra.Command{joinCmd, createCmd} {
		c.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
		c.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
		c.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
		c.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
		c.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
		c.Flags().StringVar(&flagCodec, "codec", "", "Signaling codec: json or msgpack")
		c.Flags().StringVar(&flagCapture, "capture", "", "Ogg/Opus file to send as the microphone (default: silence)")
		c.Flags().StringVar(&flagRecord, "record", "", "Directory to record each participant's audio into")
		c.Flags().BoolVar(&flagHeadless, "headless", false, "Log events instead of showing the room view")
		c.Flags().BoolVarP(&flagMuted, "muted", "m", false, "Start with the microphone muted")
		c.Flags().Float64Var(&flagVolume, "volume", mesh.DefaultVolume, "Initial playback volume (0-1)")
	}
	createCmd.Flags().BoolVarP(&flagMemorable, "words", "w", false, "Use a word-based room id instead of a UUID")
}
