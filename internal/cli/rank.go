package cli

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/rpc"
	"github.com/GenLoc-2025/GenLoc/internal/rpc/localize"
)

// NewRankCmd localizes one bug report, in process or through the daemon.
func NewRankCmd(opts *Options) *cobra.Command {
	var req rpc.RankFilesRequest
	var descriptionFile string
	var sourceRoot string
	var outPath string
	var remote bool

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the files most likely to contain a reported bug",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if descriptionFile != "" {
				data, err := os.ReadFile(descriptionFile)
				if err != nil {
					return fmt.Errorf("read description: %w", err)
				}
				req.Description = string(data)
			}

			var resp rpc.RankFilesResponse
			if remote {
				resp, err = rankRemote(cmd.Context(), daemonURL(cfg.Server.Addr), req)
			} else {
				if sourceRoot != "" {
					cfg.Codebase.SourceRoot = sourceRoot
				}
				logger, lerr := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
				if lerr != nil {
					return lerr
				}
				defer logger.Sync() //nolint:errcheck // best-effort

				runner, rerr := localize.NewLocalizerRunner(cmd.Context(), cfg, logger, nil)
				if rerr != nil {
					return rerr
				}
				defer func() {
					if cerr := runner.Close(); cerr != nil {
						logger.Warn("closing trace logs", zap.Error(cerr))
					}
				}()
				resp, err = runner.Rank(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return writeResponse(cmd.OutOrStdout(), outPath, resp)
		},
	}

	cmd.Flags().StringVar(&req.Project, "project", "", "Project the bug belongs to")
	cmd.Flags().StringVar(&req.BugID, "bug-id", "", "Bug identifier, used in the trace file name")
	cmd.Flags().StringVar(&req.Summary, "summary", "", "Bug report summary")
	cmd.Flags().StringVar(&req.Description, "description", "", "Bug report description")
	cmd.Flags().StringVar(&descriptionFile, "description-file", "", "Read the description from a file")
	cmd.Flags().StringVar(&req.Model, "model", "", "Override the localizer model for this run")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Java source tree to inspect (overrides codebase.source_root)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write the ranking JSON to a file instead of stdout")
	cmd.Flags().BoolVar(&remote, "remote", false, "Send the report to the daemon at server.addr")
	return cmd
}

func rankRemote(ctx context.Context, baseURL string, req rpc.RankFilesRequest) (rpc.RankFilesResponse, error) {
	client := localize.NewClient(buildH2CClient(), baseURL)
	resp, err := client.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return rpc.RankFilesResponse{}, err
	}
	return *resp.Msg, nil
}

func writeResponse(stdout io.Writer, outPath string, resp rpc.RankFilesResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if outPath == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write ranking: %w", err)
	}
	fmt.Fprintf(stdout, "Ranking written to %s\n", outPath)
	return nil
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
