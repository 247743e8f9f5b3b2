package token

import (
	"fmt"
	"time"

	"github.com/broady/surface"
)

type Cmd struct {
	Subject string        `arg:"" help:"Subject (user ID) of the token."`
	Secret  string        `help:"Signing secret." env:"JWT_SECRET" required:""`
	TTL     time.Duration `help:"Token lifetime, 0 for none." default:"24h"`
}

func (c *Cmd) Run() error {
	h, err := surface.NewHMAC([]byte(c.Secret))
	if err != nil {
		return err
	}
	tok, err := h.WithTTL(c.TTL).Issue(c.Subject)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
