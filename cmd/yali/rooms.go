package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
	"github.com/cagdaskarabulut/yali-speak/internal/ui"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List active rooms on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ServerURL: flagServer, Domain: flagDomain})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		rooms, err := fetchRooms(ctx, http.DefaultClient, cfg.RoomsURL())
		if err != nil {
			return err
		}
		ui.RenderRoomsTable(os.Stdout, rooms)
		return nil
	},
}

func fetchRooms(ctx context.Context, client *http.Client, url string) ([]signaling.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rooms: server returned %s", resp.Status)
	}

	var rooms []signaling.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return rooms, nil
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
