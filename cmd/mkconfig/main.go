//go:build !tinygo

// Command mkconfig writes the default boot configuration, or checks an
// existing one.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"hearth/app"
)

const defaultConfigPath = "hearth.yaml"

func main() {
	var outPath string
	var checkPath string
	var force bool
	flag.StringVar(&outPath, "out", defaultConfigPath, "Output path, - for stdout.")
	flag.StringVar(&checkPath, "check", "", "Validate this file instead of writing one.")
	flag.BoolVar(&force, "f", false, "Overwrite an existing file.")
	flag.Parse()

	if checkPath != "" {
		cfg, err := app.LoadConfig(checkPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if err := write(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(outPath, force); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(outPath string, force bool) error {
	if outPath == "-" {
		return write(os.Stdout, app.DefaultConfig())
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %q: %w", outPath, err)
	}
	if err := write(f, app.DefaultConfig()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func write(w io.Writer, cfg app.Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = w.Write(b)
	return err
}
