package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/danmuck/boatlink/internal/geo"
	"github.com/danmuck/boatlink/internal/protocol/payload"
	"github.com/danmuck/boatlink/internal/registry"
	"github.com/spf13/cobra"
)

type sendResult struct {
	Link     string `json:"link" yaml:"link"`
	Points   int    `json:"points" yaml:"points"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Checksum uint16 `json:"checksum" yaml:"checksum"`
}

func (c *cli) sendPathCmd() *cobra.Command {
	var (
		link       string
		gatewayURL string
		token      string
	)
	cmd := &cobra.Command{
		Use:   "send-path <file.geojson>",
		Short: "Upload a sampling path to a boat",
		Long: `send-path reads a path FeatureCollection (a LineString track plus a
MultiPoint of sample points) and uploads the sample points to one boat.

With --gateway the upload goes through a running "boatlink serve", which
owns the serial ports; otherwise the ports are opened directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			path, err := geo.ParsePath(raw)
			if err != nil {
				return err
			}

			var res sendResult
			if gatewayURL != "" {
				if token == "" {
					token = c.cfg.Gateway.Token
				}
				res, err = sendViaGateway(cmd.Context(), gatewayURL, token, link, raw)
			} else {
				res, err = c.sendDirect(cmd.Context(), link, path.PathData())
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), c.formatter.Format(res))
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "target port; may be omitted when exactly one boat answers")
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "base URL of a running gateway, e.g. http://127.0.0.1:9400")
	cmd.Flags().StringVar(&token, "token", "", "gateway bearer token (default gateway.token)")
	return cmd
}

func (c *cli) sendDirect(ctx context.Context, link string, data payload.PathData) (sendResult, error) {
	reg := registry.New(c.portSource(), c.cfg.Session(), nil)
	defer reg.Close()

	names, err := reg.Discover(ctx)
	if err != nil {
		return sendResult{}, err
	}
	if link == "" {
		if len(names) != 1 {
			return sendResult{}, fmt.Errorf("--link is required when %d boats answer", len(names))
		}
		link = names[0]
	}

	attempts, err := reg.SendPath(ctx, link, data)
	if err != nil {
		return sendResult{}, fmt.Errorf("send path to %s after %d attempts: %w", link, attempts, err)
	}
	return sendResult{
		Link:     link,
		Points:   len(data.Points),
		Attempts: attempts,
		Checksum: payload.Checksum(data),
	}, nil
}

func sendViaGateway(ctx context.Context, base, token, link string, body []byte) (sendResult, error) {
	if link == "" {
		return sendResult{}, errors.New("--link is required with --gateway")
	}
	target := strings.TrimRight(base, "/") + "/api/v1/links/" + url.PathEscape(link) + "/path"

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return sendResult{}, err
	}
	req.Header.Set("Content-Type", "application/geo+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return sendResult{}, err
	}
	defer resp.Body.Close()

	var out struct {
		sendResult
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sendResult{}, fmt.Errorf("gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return sendResult{}, fmt.Errorf("gateway returned %s: %s", resp.Status, out.Error)
	}
	return out.sendResult, nil
}
