package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/xhad/hybridrag/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries over HTTP and WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		// the server always logs
		verbose = true

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		engine, err := a.engine(cmd.Context())
		if err != nil {
			return err
		}

		addr := a.config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		s := server.NewWSServer(engine, server.Config{Addr: addr, Logger: a.logger})
		if err := s.ListenAndServe(cmd.Context()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
