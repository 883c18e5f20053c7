// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Entry point

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/OpenPrinting/go-papp/abstract"
	"github.com/OpenPrinting/go-papp/argv"
	"github.com/OpenPrinting/go-papp/log"
	"github.com/OpenPrinting/go-papp/papp"
	"github.com/OpenPrinting/go-papp/transport"
)

// DefaultIPPPort is the default plaintext IPP port.
const DefaultIPPPort = 8000

// DefaultIPPSPort is the default TLS-encrypted IPPS port, used when
// transport.NewAutoTLSListener detects a TLS ClientHello.
const DefaultIPPSPort = 8001

var command = argv.Command{
	Name: "papp-server",
	Help: "Printer Application server",
	Description: "" +
		"This command runs a Printer Application: an IPP print service\n" +
		"fronting one or more printer queues served by a built-in or\n" +
		"plugged-in driver.\n",
	Options: []argv.Option{
		{
			Name:    "-d",
			Aliases: []string{"--debug"},
			Help:    "Enable debug output",
		},
		{
			Name:    "-v",
			Aliases: []string{"--verbose"},
			Help:    "Enable verbose debug output",
		},
		{
			Name:     "-p",
			Aliases:  []string{"--port"},
			HelpArg:  "port",
			Help:     fmt.Sprintf("IPP port. Default: %d", DefaultIPPPort),
			Validate: argv.ValidateUint16,
		},
		{
			Name:    "-n",
			Aliases: []string{"--name"},
			HelpArg: "name",
			Help:    "Printer name for the demo printer. Default: \"Example-Printer\"",
		},
		argv.HelpOption,
	},
	Handler: serverMain,
}

func main() {
	inv, err := command.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := command.Handler(ctx, inv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serverMain(ctx context.Context, inv *argv.Invocation) error {
	_, dbg := inv.Get("-d")
	_, vrb := inv.Get("-v")

	level := log.LevelInfo
	if dbg {
		level = log.LevelDebug
	}
	if vrb {
		level = log.LevelTrace
	}

	logger := log.NewLogger(level, log.Console)
	ctx = log.NewContext(ctx, logger)

	port := DefaultIPPPort
	if portname, ok := inv.Get("-p"); ok {
		port, _ = strconv.Atoi(portname)
	}

	name := "Example-Printer"
	if n, ok := inv.Get("-n"); ok {
		name = n
	}

	hostname, _ := os.Hostname()

	sys, err := papp.NewSystem(papp.SystemConfig{
		Name:      "papp-server",
		Hostname:  hostname,
		IPPPort:   port,
		IPPSPort:  port + 1,
		Singleton: true,
		Callbacks: papp.DummyCallbacks(),
		Drivers:   []abstract.Driver{papp.DummyDriver},
	})
	if err != nil {
		return err
	}

	if _, err := sys.CreatePrinter(ctx, name, "dummy://localhost/", "dummy"); err != nil {
		return fmt.Errorf("creating demo printer: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	plain, encrypted := transport.NewAutoTLSListener(ln)

	handler := papp.NewDispatcher(sys)

	srv := &http.Server{
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.Info(ctx, "papp-server: serving plaintext IPP on :%d", port)
		srv.Serve(plain)
	}()
	go func() {
		log.Info(ctx, "papp-server: serving IPP-over-TLS on :%d", port)
		srv.Serve(encrypted)
	}()

	<-ctx.Done()
	log.Info(ctx, "papp-server: shutting down")
	srv.Close()

	return nil
}
