/*Command irpcd is the server half of the protocol: it listens for TCP
connections and serves each with rpcserver.Server, against either a real
USB bus via usbadapter.GousbAdapter or an in-memory usbadapter.Mock. Its
subcommand surface (run/help/conf/mkconf/version) mirrors the teacher
repository's cmd/multiserver.
*/
package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/irpcd/config"
	"github.com/nasa-jpl/irpcd/rpcserver"
	"github.com/nasa-jpl/irpcd/usbadapter"
	"github.com/nasa-jpl/irpcd/util"
)

// opsPerSecond bounds how fast dispatched operations reach the USB
// adapter, the same courtesy the teacher's nkt driver gives a source
// that dislikes being connection-thrashed.
const opsPerSecond = 50

// Version is the build version, typically injected via ldflags.
var Version = "dev"

// ConfigFileName is the default config file irpcd looks for in the
// working directory, same convention multiserver.yml uses.
const ConfigFileName = "irpcd.yml"

func root() {
	fmt.Println(`irpcd serves the USB-over-TCP RPC protocol to one client connection at a time.

Usage:
	irpcd <command>

Commands:
	run
	help
	conf
	mkconf
	version`)
}

func help() {
	fmt.Println(`irpcd is configured via irpcd.yml in the working directory. mkconf writes out
the default configuration; conf prints the configuration currently in effect.
Set mock: true to run irpcd against an in-memory fake USB adapter with no bus present.`)
}

func mkconf() {
	if err := config.WriteDefaultServer(ConfigFileName); err != nil {
		log.Fatalf("irpcd: writing default config: %v", err)
	}
}

func printConf() {
	cfg, err := config.LoadServer(ConfigFileName)
	if err != nil {
		log.Fatalf("irpcd: loading config: %v", err)
	}
	fmt.Printf("%+v\n", cfg)
}

func printVersion() {
	fmt.Printf("irpcd version %s\n", Version)
}

func run() {
	cfg, err := config.LoadServer(ConfigFileName)
	if err != nil {
		log.Fatalf("irpcd: loading config: %v", err)
	}

	var adapter usbadapter.Adapter
	if cfg.Mock {
		adapter = usbadapter.NewMock()
	} else {
		adapter = usbadapter.NewGousbAdapter()
	}

	logger := log.New(os.Stdout, "irpcd: ", log.LstdFlags)
	srv := rpcserver.NewServer(adapter, cfg.StrictHandleRouting, logger)
	srv.Limiter = rate.NewLimiter(opsPerSecond, opsPerSecond)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Fatalf("irpcd: listen %s: %v", cfg.Addr, err)
	}
	logger.Printf("listening on %s (mock=%v verbose=%v)", cfg.Addr, cfg.Mock, cfg.Verbose)

	var diagErrCh chan error
	if cfg.DiagAddr != "" {
		diagErrCh = make(chan error, 1)
		go func() {
			diagErrCh <- http.ListenAndServe(cfg.DiagAddr, buildDiagMux(srv))
		}()
		logger.Printf("diagnostics sidecar listening on %s", cfg.DiagAddr)
	}

	connErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				connErrCh <- err
				return
			}
			logger.Printf("accepted connection from %s", conn.RemoteAddr())
			if err := srv.Serve(conn); err != nil {
				logger.Printf("connection closed: %v", err)
			}
		}
	}()

	var errs []error
	select {
	case err := <-connErrCh:
		errs = append(errs, err)
	case err := <-diagErrCh:
		errs = append(errs, err)
	}
	if err := util.MergeErrors(errs); err != nil {
		log.Fatalf("irpcd: %v", err)
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printConf()
	case "run":
		run()
	case "version":
		printVersion()
	default:
		log.Fatalf("irpcd: unknown command %q", args[1])
	}
}
