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

// Package capture is the "capture" cobra command: it opens a live
// interface and runs the pipeline until interrupted.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	pkgcapture "jinr.ru/greenlab/zwiftwatch/pkg/capture"
	pkgconfig "jinr.ru/greenlab/zwiftwatch/pkg/config"
	"jinr.ru/greenlab/zwiftwatch/pkg/diag"
	"jinr.ru/greenlab/zwiftwatch/pkg/events"
	"jinr.ru/greenlab/zwiftwatch/pkg/log"
	"jinr.ru/greenlab/zwiftwatch/pkg/session"
)

const (
	interfaceOptionName = "interface"
	companionOptionName = "companion"
)

// NewCommand creates the "capture" cobra command.
func NewCommand(cfg *pkgconfig.Config, router *events.Router) *cobra.Command {
	var iface string
	var companion bool

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture and decode live traffic on a network interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			if iface != "" {
				cfg.Capture.Interface = iface
			}
			if companion {
				cfg.Capture.Companion = true
			}

			var sink diag.Sink = diag.Noop{}
			if cfg.Diag != nil && cfg.Diag.Dir != "" {
				sink = diag.NewFileSink(cfg.Diag.Dir, cfg.Diag.SampleCap)
			}

			sess := session.New(router, sink)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			log.Info("capture: starting on interface %q (companion=%v)", cfg.Capture.Interface, cfg.Capture.Companion)
			err := sess.Start(ctx, pkgcapture.Options{
				Interface: cfg.Capture.Interface,
				Companion: cfg.Capture.Companion,
				SnapLen:   cfg.Capture.SnapLen,
			})
			if err != nil {
				return fmt.Errorf("capture: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&iface, interfaceOptionName, "", "network interface to capture on (device name, address, or display name)")
	cmd.Flags().BoolVar(&companion, companionOptionName, false, "also capture the companion-app TCP lane")
	return cmd
}
