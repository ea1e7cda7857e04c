// Command tui is a terminal photo gallery.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mhbvr/shutter/config"
	"github.com/mhbvr/shutter/controller"
	"github.com/mhbvr/shutter/rpc"
	"k8s.io/klog/v2"
)

var (
	serverAddr = flag.String("server", "", "gRPC server address; empty opens the library locally")
	logFile    = flag.String("log", "shutter-tui.log", "Log file; the terminal belongs to the gallery")
	refresh    = flag.Duration("refresh", 500*time.Millisecond, "How often to redraw the photo list")
)

func main() {
	klog.InitFlags(nil)
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	flag.Set("logtostderr", "false")
	flag.Set("alsologtostderr", "false")
	flag.Set("log_file", *logFile)
	defer klog.Flush()

	if err := run(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
}

func run(flags *config.Flags) error {
	var lib controller.Library

	if *serverAddr != "" {
		client, err := rpc.Dial(*serverAddr)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		updates, err := client.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", *serverAddr, err)
		}
		go func() {
			for range updates {
			}
		}()
		lib = client
	} else {
		cfg, err := flags.Resolve(flag.CommandLine)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		local, store, err := cfg.OpenLibrary()
		if err != nil {
			return err
		}
		defer store.Close()
		lib = local
	}

	ctrl := controller.New(lib)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := ctrl.Activate(ctx)
	cancel()
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewModel(ctrl, *refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
