/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package replay is the "replay" cobra command: it runs the pipeline
// over a previously captured pcap file instead of a live interface.
package replay

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pkgcapture "jinr.ru/greenlab/zwiftwatch/pkg/capture"
	pkgconfig "jinr.ru/greenlab/zwiftwatch/pkg/config"
	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/session"
)

const companionOptionName = "companion"

// NewCommand creates the "replay" cobra command.
func NewCommand(cfg *pkgconfig.Config, router *events.Router) *cobra.Command {
	var companion bool

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay a pcap file through the decode pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			if _, err := os.Stat(file); err != nil {
				return fmt.Errorf("replay: %w", err)
			}

			if companion {
				cfg.Capture.Companion = true
			}

			var sink diag.Sink = diag.Noop{}
			if cfg.Diag != nil && cfg.Diag.Dir != "" {
				sink = diag.NewFileSink(cfg.Diag.Dir, cfg.Diag.SampleCap)
			}

			sess := session.New(router, sink)

			log.Info("replay: reading %s (companion=%v)", file, cfg.Capture.Companion)
			err := sess.Start(context.Background(), pkgcapture.Options{
				ReplayFile: file,
				Companion:  cfg.Capture.Companion,
				SnapLen:    cfg.Capture.SnapLen,
			})
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&companion, companionOptionName, false, "also decode the companion-app TCP lane")
	return cmd
}
