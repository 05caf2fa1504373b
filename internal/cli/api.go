package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/TashanGKD/Tashan-TopicLab/internal/config"
	"github.com/TashanGKD/Tashan-TopicLab/internal/daemon"
	"github.com/TashanGKD/Tashan-TopicLab/pkg/client"
	"github.com/spf13/cobra"
)

// apiClient builds a client for the running daemon. The address comes from the
// daemon's addr file unless --addr is set; the API key from TOPICLAB_API_KEY.
func apiClient(cmd *cobra.Command, addrOverride string) (*client.Client, error) {
	addr := addrOverride
	if addr == "" {
		home := config.MustHomeFrom(cmd.Context())
		st, err := daemon.Status(cmd.Context(), home)
		if err != nil {
			return nil, err
		}
		if !st.Running {
			return nil, fmt.Errorf("topiclab is not running; start it with `topiclab start`")
		}
		addr = st.Addr
	}
	// The daemon binds 0.0.0.0; clients dial localhost.
	addr = strings.Replace(addr, "0.0.0.0", "localhost", 1)
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return client.New(addr, os.Getenv("TOPICLAB_API_KEY")), nil
}
