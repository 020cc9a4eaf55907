package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/soyeahso/helix/internal/channel"
	"github.com/soyeahso/helix/internal/channel/irc"
	"github.com/soyeahso/helix/internal/gateway"
	"github.com/soyeahso/helix/internal/routing"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server (and IRC when configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				c.Gateway.Port = port
			}
			if bind != "" {
				c.Gateway.Bind = bind
			}

			a, err := newApp(c, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channels := channel.NewRegistry(log)
			if c.Channels.IRC != nil {
				if err := channels.Register(irc.New(*c.Channels.IRC, log)); err != nil {
					return err
				}
			}
			if channels.Count() > 0 {
				routing.NewRouter(channels, a.service, log).Wire()
				a.notifier.Add(routing.NewNotifier(channels, log))
				if err := channels.StartAll(ctx); err != nil {
					return err
				}
				defer channels.StopAll(context.Background())
				log.Info().Strs("channels", channels.List()).Msg("message routing active")
			}

			srv := gateway.New(c.Gateway, a.service, log,
				gateway.WithChannels(channels),
				gateway.WithHooks(a.hooks),
			)
			a.notifier.Add(srv)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
