package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sw33tLie/ghrenew/pkg/notify"
	"github.com/sw33tLie/ghrenew/pkg/panel"
	"github.com/sw33tLie/ghrenew/pkg/renewal"
	"github.com/sw33tLie/ghrenew/pkg/transport"
)

func main() {
	// Usage: go run *.go -email you@example.com -password secret -server loveMC

	emailFlag := flag.String("email", "", "GreatHost account email")
	passFlag := flag.String("password", "", "GreatHost account password")
	serverFlag := flag.String("server", "", "Server name")
	flag.Parse()

	if *emailFlag == "" || *passFlag == "" || *serverFlag == "" {
		fmt.Println("Email, password and server are required.")
		return
	}

	ctx := context.Background()
	t, err := transport.NewHTTPTransport(transport.HTTPConfig{})
	if err != nil {
		log.Fatal(err)
	}
	defer t.Close()

	if err := t.Login(ctx, transport.Credentials{Email: *emailFlag, Password: *passFlag}); err != nil {
		log.Fatal(err)
	}

	cfg := renewal.DefaultConfig()
	cfg.TargetName = *serverFlag

	// Any notify.Sink works; this one just rewrites a Markdown file.
	sink := notify.StatusFileSink{Path: "status.md"}

	engine := renewal.NewEngine(cfg, panel.NewClient(t, cfg.FallbackWindow, nil), sink, nil)
	rep, err := engine.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run failed:", err)
		os.Exit(1)
	}
	fmt.Println(rep.Outcome, rep.BeforeHours, "->", rep.AfterHours)
}
