// Command harp-demo is a sample producer exercising the harp client agent:
// a handful of simulated players periodically emitting join/leave/move
// actions, mirroring the original crate's example service.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"harp"
)

// playerAction implements harp.Kind over a small fixed vocabulary.
type playerAction string

const (
	actionJoin playerAction = "player_join"
	actionMove playerAction = "player_move"
	actionLeft playerAction = "player_left"
)

func (a playerAction) Key() string { return string(a) }

// player implements harp.Loggable.
type player struct {
	addr netip.Addr
	id   uint32
}

func (p player) Identifier() harp.HarpID {
	return harp.HarpID{Addr: p.addr, ID: p.id}
}

func main() {
	host := flag.String("host", "127.0.0.1", "collector host")
	port := flag.Uint("port", 7777, "collector port")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := harp.StartService(ctx, harp.Options{Host: *host, Port: uint16(*port), Logger: logger})
	if err != nil {
		logger.Fatal("harp-demo: connect failed", zap.Error(err))
	}

	players := []player{
		{addr: netip.MustParseAddr("127.0.0.1"), id: 1},
		{addr: netip.MustParseAddr("127.0.0.1"), id: 2},
		{addr: netip.MustParseAddr("::1"), id: 3},
	}

	for _, p := range players {
		sender.Send(harp.New(p.Identifier(), actionJoin))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := players[rand.Intn(len(players))]
			if rand.Intn(5) == 0 {
				action, err := harp.WithDetail(p.Identifier(), actionLeft, map[string]string{"reason": "lost connection"})
				if err != nil {
					logger.Warn("harp-demo: build action failed", zap.Error(err))
					continue
				}
				sender.Send(action)
				continue
			}
			sender.Send(harp.New(p.Identifier(), actionMove))
		}
	}
}
