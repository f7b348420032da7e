package console

import (
	"context"
	"fmt"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	wishlogging "github.com/charmbracelet/wish/logging"

	"github.com/signalsfoundry/td-engine/internal/logging"
)

// Middleware serves the console on an SSH session. A session started with
// a command ("ssh host list") runs just that command.
func (c *Console) Middleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			c.log.Info(context.Background(), "console session opened",
				logging.String("user", sess.User()),
				logging.String("remote", sess.RemoteAddr().String()),
			)
			if cmd := sess.Command(); len(cmd) > 0 {
				if err := c.Exec(cmd, sess); err != nil {
					fmt.Fprintln(sess.Stderr(), err)
					_ = sess.Exit(1)
					return
				}
				next(sess)
				return
			}
			if err := c.Run(sess, sess); err != nil {
				c.log.Warn(context.Background(), "console session failed", logging.Err(err))
			}
			next(sess)
		}
	}
}

// NewSSHServer builds the operator SSH server. An empty hostKeyPath lets
// wish generate an ephemeral key.
func NewSSHServer(addr, hostKeyPath string, c *Console) (*ssh.Server, error) {
	opts := []ssh.Option{
		wish.WithAddress(addr),
		wish.WithMiddleware(
			c.Middleware(),
			wishlogging.Middleware(),
		),
	}
	if hostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(hostKeyPath))
	}
	return wish.NewServer(opts...)
}
