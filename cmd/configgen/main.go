package main

import (
	"flag"
	"log"

	"github.com/danmuck/serialmux/internal/config"
)

func main() {
	kind := flag.String("kind", "serialmuxd", "config kind: serialmuxd|edge")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to cmd/serialmuxd/config.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if _, err := config.Template(*kind); err != nil {
		log.Fatal(err)
	}

	if *validate {
		path := *input
		if path == "" {
			path = "cmd/serialmuxd/config.toml"
		}
		cfg, err := config.LoadDaemonConfig(path)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (protocol=%s device=%s)", *kind, path, cfg.Protocol, cfg.Device)
		return
	}

	target := *output
	if target == "" {
		target = "cmd/serialmuxd/config.toml"
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
